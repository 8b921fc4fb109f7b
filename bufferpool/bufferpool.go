// Package bufferpool implements the ring-buffered GPU buffer pool
// (component C7): four fixed-capacity backing buffers — vertices,
// indices, layer metadata, feature metadata — managed as one FIFO deque
// of allocations so the render schedule can keep uploading newly
// tessellated layers without ever reallocating a backing buffer.
//
// Buffer creation is grounded on gpu.CreateBuffer's hal.Device wiring;
// uploads are grounded on hal.Queue.WriteBuffer as used throughout the
// session/readback renderers.
package bufferpool

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// CopyBufferAlignment is the alignment GPU buffer writes must respect
// (spec.md §9: "multiple of 4 bytes, specified as 4 here for
// portability").
const CopyBufferAlignment = 4

// Capacities parameterizes the byte capacity of each of the pool's four
// backing buffers. spec.md leaves the concrete sizes as an Open
// Question; SPEC_FULL.md resolves it by making them caller-supplied
// rather than hardcoded, so an embedder can size the pool to its own
// tile cache budget.
type Capacities struct {
	Vertices    uint64
	Indices     uint64
	LayerMeta   uint64
	FeatureMeta uint64
}

// DefaultCapacities returns a pool sized for a few dozen simultaneously
// resident tile layers at typical MVT feature density.
func DefaultCapacities() Capacities {
	return Capacities{
		Vertices:    8 << 20,
		Indices:     4 << 20,
		LayerMeta:   256 << 10,
		FeatureMeta: 1 << 20,
	}
}

// ErrExceedsCapacity is returned when a single allocation's required
// size is larger than one of the backing buffers, regardless of
// eviction (spec.md §4.5 "Failure").
var ErrExceedsCapacity = errors.New("bufferpool: allocation exceeds backing buffer capacity")

// Range is a live byte range within one backing buffer.
type Range struct {
	Start, End uint64
}

func (r Range) size() uint64 { return r.End - r.Start }

// Entry is one allocation's four region ranges plus the usable (pre-
// padding) index count the draw call must respect.
type Entry struct {
	Key            Key
	Vertices       Range
	Indices        Range
	LayerMeta      Range
	FeatureMeta    Range
	UsableIndices  uint32
}

// Key identifies one allocation: a tile's tessellated layer.
type Key struct {
	Quadkey     uint64
	SourceLayer string
}

type region struct {
	hal      hal.Buffer
	capacity uint64
}

// Pool is the buffer pool described in spec.md §4.5.
type Pool struct {
	device hal.Device
	queue  hal.Queue

	vertices    region
	indices     region
	layerMeta   region
	featureMeta region

	deque []Entry
}

// New creates the four backing buffers on device and returns an empty
// pool.
func New(device hal.Device, queue hal.Queue, caps Capacities) (*Pool, error) {
	v, err := createBacking(device, caps.Vertices, gputypes.BufferUsageVertex, "maptile-vertices")
	if err != nil {
		return nil, err
	}
	i, err := createBacking(device, caps.Indices, gputypes.BufferUsageIndex, "maptile-indices")
	if err != nil {
		return nil, err
	}
	lm, err := createBacking(device, caps.LayerMeta, gputypes.BufferUsageStorage, "maptile-layer-meta")
	if err != nil {
		return nil, err
	}
	fm, err := createBacking(device, caps.FeatureMeta, gputypes.BufferUsageStorage, "maptile-feature-meta")
	if err != nil {
		return nil, err
	}

	return &Pool{
		device:      device,
		queue:       queue,
		vertices:    region{hal: v, capacity: caps.Vertices},
		indices:     region{hal: i, capacity: caps.Indices},
		layerMeta:   region{hal: lm, capacity: caps.LayerMeta},
		featureMeta: region{hal: fm, capacity: caps.FeatureMeta},
	}, nil
}

func createBacking(device hal.Device, capacity uint64, usage gputypes.BufferUsage, label string) (hal.Buffer, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("bufferpool: %s: zero capacity", label)
	}
	return device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  capacity,
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
}

// Allocate writes vertexBytes/indexBytes/layerMetaBytes/featureMetaBytes
// into the four backing buffers for key, evicting the oldest entries
// (FIFO) until every region's largest gap fits the new data, and returns
// the new Entry. usableIndices is indexBytes' pre-padding index count.
func (p *Pool) Allocate(key Key, vertexBytes, indexBytes, layerMetaBytes, featureMetaBytes []byte, usableIndices uint32) (Entry, error) {
	need := [4]uint64{
		padded(uint64(len(vertexBytes))),
		padded(uint64(len(indexBytes))),
		padded(uint64(len(layerMetaBytes))),
		padded(uint64(len(featureMetaBytes))),
	}
	regions := [4]*region{&p.vertices, &p.indices, &p.layerMeta, &p.featureMeta}

	for i, r := range regions {
		if need[i] > r.capacity {
			return Entry{}, fmt.Errorf("%w: region %d needs %d, capacity %d", ErrExceedsCapacity, i, need[i], r.capacity)
		}
	}

	for {
		fits := true
		for i := range regions {
			if p.largestGap(i) < need[i] {
				fits = false
				break
			}
		}
		if fits {
			break
		}
		if len(p.deque) == 0 {
			return Entry{}, fmt.Errorf("bufferpool: cannot fit allocation even after evicting everything")
		}
		p.deque = p.deque[1:]
	}

	vStart := p.allocateInRegion(0, need[0])
	iStart := p.allocateInRegion(1, need[1])
	lmStart := p.allocateInRegion(2, need[2])
	fmStart := p.allocateInRegion(3, need[3])

	p.queue.WriteBuffer(p.vertices.hal, vStart, vertexBytes)
	p.queue.WriteBuffer(p.indices.hal, iStart, indexBytes)
	p.queue.WriteBuffer(p.layerMeta.hal, lmStart, layerMetaBytes)
	p.queue.WriteBuffer(p.featureMeta.hal, fmStart, featureMetaBytes)

	entry := Entry{
		Key:           key,
		Vertices:      Range{vStart, vStart + need[0]},
		Indices:       Range{iStart, iStart + need[1]},
		LayerMeta:     Range{lmStart, lmStart + need[2]},
		FeatureMeta:   Range{fmStart, fmStart + need[3]},
		UsableIndices: usableIndices,
	}
	p.deque = append(p.deque, entry)
	return entry, nil
}

// padded rounds n up to the next multiple of CopyBufferAlignment.
func padded(n uint64) uint64 {
	rem := n % CopyBufferAlignment
	if rem == 0 {
		return n
	}
	return n + (CopyBufferAlignment - rem)
}

// largestGap computes the largest contiguous free span in region i,
// following spec.md §4.5's algorithm exactly.
func (p *Pool) largestGap(regionIdx int) uint64 {
	capacity := p.capacityOf(regionIdx)
	if len(p.deque) == 0 {
		return capacity
	}
	s := p.rangeOf(p.deque[0], regionIdx).Start
	e := p.rangeOf(p.deque[len(p.deque)-1], regionIdx).End

	if e > s {
		before := s
		after := capacity - e
		if before > after {
			return before
		}
		return after
	}
	// Wrapped: the live region occupies [0,e) U [s,capacity); the free
	// gap is [e,s).
	if s > e {
		return s - e
	}
	return 0
}

// allocateInRegion picks the starting offset for a new allocation of
// size need in region regionIdx: the space after the last entry when it
// fits there, otherwise the front of the buffer (largestGap has already
// checked that one of the two fits), and advances the
// deque's logical "end" for that region implicitly via the appended
// Entry's range.
func (p *Pool) allocateInRegion(regionIdx int, need uint64) uint64 {
	capacity := p.capacityOf(regionIdx)
	if len(p.deque) == 0 {
		return 0
	}
	s := p.rangeOf(p.deque[0], regionIdx).Start
	e := p.rangeOf(p.deque[len(p.deque)-1], regionIdx).End

	if e > s {
		before := s
		after := capacity - e
		if after >= need {
			return e
		}
		_ = before
		return 0 // wrap to the front; caller already verified it fits
	}
	return e
}

func (p *Pool) capacityOf(regionIdx int) uint64 {
	switch regionIdx {
	case 0:
		return p.vertices.capacity
	case 1:
		return p.indices.capacity
	case 2:
		return p.layerMeta.capacity
	default:
		return p.featureMeta.capacity
	}
}

func (p *Pool) rangeOf(e Entry, regionIdx int) Range {
	switch regionIdx {
	case 0:
		return e.Vertices
	case 1:
		return e.Indices
	case 2:
		return e.LayerMeta
	default:
		return e.FeatureMeta
	}
}

// VertexBuffer returns the backing vertex buffer, for binding vertex
// buffer slices by an Entry's Vertices range.
func (p *Pool) VertexBuffer() hal.Buffer { return p.vertices.hal }

// IndexBuffer returns the backing index buffer, for binding index
// buffer slices by an Entry's Indices range.
func (p *Pool) IndexBuffer() hal.Buffer { return p.indices.hal }

// LayerMetaBuffer returns the backing layer-metadata buffer.
func (p *Pool) LayerMetaBuffer() hal.Buffer { return p.layerMeta.hal }

// FeatureMetaBuffer returns the backing feature-metadata buffer.
func (p *Pool) FeatureMetaBuffer() hal.Buffer { return p.featureMeta.hal }

// Has reports whether key already has a live entry, so callers can skip
// re-uploading a tessellated layer that is already resident.
func (p *Pool) Has(key Key) bool {
	for _, e := range p.deque {
		if e.Key == key {
			return true
		}
	}
	return false
}

// Len returns the number of live entries.
func (p *Pool) Len() int { return len(p.deque) }

// Entries returns the live entries in allocation (== eviction) order.
func (p *Pool) Entries() []Entry {
	out := make([]Entry, len(p.deque))
	copy(out, p.deque)
	return out
}
