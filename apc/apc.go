// Package apc implements the asynchronous procedure-call mechanism
// (component C6) that lets a scheduler worker (package scheduler) fetch
// and tessellate a tile off the main thread, then hand the result back
// through a single non-blocking receive queue the main thread drains
// once per frame.
package apc

import (
	"context"
	"errors"

	"github.com/gogpu/maptile/coords"
)

// HttpClient is the tile transport contract (spec.md §3: "The HTTP
// client and on-disk response cache. Contract: fetch(url) -> bytes |
// error."). The default implementation lives in package httpsource;
// this package only depends on the interface, so tests can supply a
// fake transport without a network.
type HttpClient interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ErrSendOnClosed is returned by Context.Send once the owning Channel has
// been closed (spec.md §4.3's Result<(), Send>).
var ErrSendOnClosed = errors.New("apc: send on closed channel")

// Context is handed to every procedure: a way to report results back to
// the main thread and a handle on the shared HTTP client.
type Context struct {
	ch     *Channel
	client HttpClient
}

// Send delivers msg to the owning Channel's receive queue. Safe to call
// from any goroutine; many procedures share one Channel (MPSC).
func (c Context) Send(msg Message) error {
	return c.ch.send(msg)
}

// SourceClient returns the HTTP client procedures should fetch through.
func (c Context) SourceClient() HttpClient {
	return c.client
}

// Procedure is one scheduled unit of work: given an Input and a Context
// to report through, it runs to completion (spec.md §4.3: "Cancellation:
// none at the procedure level").
type Procedure[Input any] func(ctx context.Context, input Input, apcCtx Context)

// scheduleFunc abstracts scheduler.Scheduler.Schedule so this package
// does not need to import package scheduler directly (it would be the
// only consumer-side import scheduler has, an import cycle scheduler
// does not need).
type scheduleFunc func(task func(ctx context.Context)) error

// Channel owns the main-thread side of the APC mechanism: the
// single receive queue every procedure's Context.Send feeds, and the
// Call entry point that dispatches a procedure onto a scheduler.
type Channel struct {
	client   HttpClient
	schedule scheduleFunc
	queue    chan Message
	closed   chan struct{}
}

// NewChannel creates a Channel backed by schedule (typically a closure
// that forwards to (*scheduler.Pool).Schedule, whose scheduler.Task
// parameter is a distinct named type) and client. queueCapacity bounds how many
// undelivered messages may accumulate before Send blocks — tune to the
// expected in-flight tile count.
func NewChannel(schedule scheduleFunc, client HttpClient, queueCapacity int) *Channel {
	if queueCapacity <= 0 {
		queueCapacity = 64
	}
	return &Channel{
		client:   client,
		schedule: schedule,
		queue:    make(chan Message, queueCapacity),
		closed:   make(chan struct{}),
	}
}

// Call enqueues procedure on the scheduler with a fresh Context whose
// Send is wired to this channel's receive queue (spec.md §4.3).
func Call[Input any](ch *Channel, input Input, procedure Procedure[Input]) error {
	return ch.schedule(func(ctx context.Context) {
		procedure(ctx, input, Context{ch: ch, client: ch.client})
	})
}

// Receive returns the next pending message, non-blocking. The main
// thread calls this in a loop once per frame to drain everything that
// arrived since the last frame.
func (ch *Channel) Receive() (Message, bool) {
	select {
	case msg := <-ch.queue:
		return msg, true
	default:
		return nil, false
	}
}

func (ch *Channel) send(msg Message) error {
	select {
	case <-ch.closed:
		return ErrSendOnClosed
	default:
	}
	select {
	case ch.queue <- msg:
		return nil
	case <-ch.closed:
		return ErrSendOnClosed
	}
}

// Close marks the channel closed; further Send calls fail with
// ErrSendOnClosed. Already-queued messages remain available to Receive.
func (ch *Channel) Close() {
	select {
	case <-ch.closed:
	default:
		close(ch.closed)
	}
}

// TileCoords is re-exported for message payload convenience so callers
// building apc.Message values don't also need to import package coords
// directly for the common case.
type TileCoords = coords.TileCoords
