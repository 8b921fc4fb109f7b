package apc

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/maptile/coords"
)

// inlineSchedule runs a task synchronously, standing in for a real
// scheduler.Pool so these tests don't depend on package scheduler.
func inlineSchedule(task func(ctx context.Context)) error {
	task(context.Background())
	return nil
}

type fakeClient struct{}

func (fakeClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	return []byte("fake:" + url), nil
}

func TestCallAndReceive(t *testing.T) {
	ch := NewChannel(inlineSchedule, fakeClient{}, 0)
	c := coords.TileCoords{X: 1, Y: 2, Z: 3}

	err := Call(ch, c, func(ctx context.Context, input coords.TileCoords, apcCtx Context) {
		data, fetchErr := apcCtx.SourceClient().Fetch(ctx, "https://example/tile.pbf")
		if fetchErr != nil {
			t.Fatal(fetchErr)
		}
		if string(data) != "fake:https://example/tile.pbf" {
			t.Errorf("got %q", data)
		}
		if sendErr := apcCtx.Send(TileTessellated{Coords: input}); sendErr != nil {
			t.Fatal(sendErr)
		}
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	msg, ok := ch.Receive()
	if !ok {
		t.Fatal("expected a pending message")
	}
	tt, ok := msg.(TileTessellated)
	if !ok {
		t.Fatalf("got %T, want TileTessellated", msg)
	}
	if tt.Coords != c {
		t.Errorf("got %v, want %v", tt.Coords, c)
	}

	if _, ok := ch.Receive(); ok {
		t.Error("expected no further pending messages")
	}
}

func TestSendAfterClose(t *testing.T) {
	ch := NewChannel(inlineSchedule, fakeClient{}, 0)
	ch.Close()

	err := Call(ch, coords.TileCoords{}, func(ctx context.Context, input coords.TileCoords, apcCtx Context) {
		if sendErr := apcCtx.Send(TileTessellated{}); !errors.Is(sendErr, ErrSendOnClosed) {
			t.Errorf("Send after Close = %v, want ErrSendOnClosed", sendErr)
		}
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
}
