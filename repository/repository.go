// Package repository holds the tile repository (component C4): the
// map from Quadkey to per-tile fetch status and tessellated layers that
// the render schedule (package render) reads from every frame.
package repository

import (
	"sort"
	"sync"

	"github.com/gogpu/maptile/coords"
	"github.com/gogpu/maptile/geomindex"
	"github.com/gogpu/maptile/tessellate"
)

// Status is a tile's fetch/tessellation lifecycle state (spec.md §4.2).
type Status int

const (
	// StatusPending: scheduled, not yet resolved.
	StatusPending Status = iota
	// StatusSuccess: fully ingested (all requested layers resolved, one
	// way or another).
	StatusSuccess
	// StatusFailed: upstream or decode error; eligible for retry while
	// retry count is below maxRetries.
	StatusFailed
)

// maxRetries bounds how many times a failed tile is retried before the
// repository gives up on it (spec.md §4.5 "retry-until-3").
const maxRetries = 3

// StoredLayer is one (tile, source_layer) tessellation result: either
// the GPU-ready buffer and its spatial index, or a recorded absence.
type StoredLayer struct {
	SourceLayer string

	Available      bool // false means Unavailable (spec.md §4.1 "Tessellation failure")
	Buffer         tessellate.Buffer
	FeatureIndices []uint32
	Index          *geomindex.Index
}

type tileEntry struct {
	status Status
	retry  int
	layers map[string]StoredLayer // keyed by SourceLayer, last write wins
}

// Repository is the tile repository: a concurrency-safe
// Quadkey -> {status, layers} map. The main thread is the only writer;
// it is also read from concurrently by the render schedule within the
// same frame, hence the mutex rather than a lock-free structure.
type Repository struct {
	mu      sync.RWMutex
	entries map[coords.Quadkey]*tileEntry
}

// New returns an empty repository.
func New() *Repository {
	return &Repository{entries: make(map[coords.Quadkey]*tileEntry)}
}

// CreateTile inserts a pending record for coords if absent. A no-op if a
// record already exists, successful or not.
func (r *Repository) CreateTile(c coords.TileCoords) {
	qk := c.ToQuadkey()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[qk]; ok {
		return
	}
	r.entries[qk] = &tileEntry{status: StatusPending, layers: make(map[string]StoredLayer)}
}

// NeedsFetching reports whether coords should be (re)scheduled: absent,
// or Failed with retry < maxRetries.
func (r *Repository) NeedsFetching(c coords.TileCoords) bool {
	qk := c.ToQuadkey()
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[qk]
	if !ok {
		return true
	}
	return e.status == StatusFailed && e.retry < maxRetries
}

// PutTessellatedLayer records a tessellation result for (coords,
// layer.SourceLayer). Idempotent: a later call for the same key
// overwrites the earlier one (spec.md §4.2 "last write wins"). The tile
// record is created implicitly if CreateTile was never called.
func (r *Repository) PutTessellatedLayer(c coords.TileCoords, layer StoredLayer) {
	qk := c.ToQuadkey()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[qk]
	if !ok {
		e = &tileEntry{status: StatusPending, layers: make(map[string]StoredLayer)}
		r.entries[qk] = e
	}
	e.layers[layer.SourceLayer] = layer
}

// MarkSuccess transitions coords to StatusSuccess and clears its retry
// count (a successful retry clears prior failure state, spec.md §4.5).
func (r *Repository) MarkSuccess(c coords.TileCoords) {
	qk := c.ToQuadkey()
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entryLocked(qk)
	e.status = StatusSuccess
	e.retry = 0
}

// MarkFailed transitions coords to StatusFailed and increments its retry
// count.
func (r *Repository) MarkFailed(c coords.TileCoords) {
	qk := c.ToQuadkey()
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entryLocked(qk)
	e.status = StatusFailed
	e.retry++
}

func (r *Repository) entryLocked(qk coords.Quadkey) *tileEntry {
	e, ok := r.entries[qk]
	if !ok {
		e = &tileEntry{layers: make(map[string]StoredLayer)}
		r.entries[qk] = e
	}
	return e
}

// IterTessellatedLayersAt returns coords's stored layers in a stable
// order (sorted by SourceLayer name), used by C10:Queue to upload
// freshly tessellated layers deterministically.
func (r *Repository) IterTessellatedLayersAt(c coords.TileCoords) []StoredLayer {
	qk := c.ToQuadkey()
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[qk]
	if !ok {
		return nil
	}
	out := make([]StoredLayer, 0, len(e.layers))
	for _, l := range e.layers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceLayer < out[j].SourceLayer })
	return out
}

// IsLayersMissing reports whether any name in layerNames has no stored
// record (available or not) at coords — used by C10:Extract to suppress
// redundant fetch requests (spec.md §4.5).
func (r *Repository) IsLayersMissing(c coords.TileCoords, layerNames []string) bool {
	qk := c.ToQuadkey()
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[qk]
	if !ok {
		return len(layerNames) > 0
	}
	for _, name := range layerNames {
		if _, ok := e.layers[name]; !ok {
			return true
		}
	}
	return false
}

// orderedQuadkeys returns every quadkey present in zoom-then-Z-order.
// Quadkey construction folds zoom into the low byte after the
// interleaved bits (coords.TileCoords.ToQuadkey), so keys are compared
// by that low byte first and by the interleaved bits second.
func (r *Repository) orderedQuadkeys() []coords.Quadkey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]coords.Quadkey, 0, len(r.entries))
	for qk := range r.entries {
		keys = append(keys, qk)
	}
	sort.Slice(keys, func(i, j int) bool {
		zi, zj := keys[i]&0xff, keys[j]&0xff
		if zi != zj {
			return zi < zj
		}
		return keys[i]>>8 < keys[j]>>8
	})
	return keys
}

// Status returns coords's current status and retry count, for tests and
// diagnostics.
func (r *Repository) Status(c coords.TileCoords) (Status, int) {
	qk := c.ToQuadkey()
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[qk]
	if !ok {
		return StatusPending, 0
	}
	return e.status, e.retry
}
