package apc

import (
	"github.com/gogpu/maptile/coords"
	"github.com/gogpu/maptile/geomindex"
	"github.com/gogpu/maptile/tessellate"
)

// Message is the closed set of Transferables variants a procedure may
// send back to the main thread (spec.md §4.3: "The tag set is fixed and
// closed"). It is a marker interface implemented only by the four
// structs below.
type Message interface {
	isMessage()
}

// TileTessellated reports that every style-requested layer for a tile
// has been resolved, one way or another; the main thread marks the tile
// Success and removes it from the pending set.
type TileTessellated struct {
	Coords coords.TileCoords
}

func (TileTessellated) isMessage() {}

// LayerTessellated carries one successfully tessellated layer's GPU
// buffer, its feature-index table, and its spatial index.
type LayerTessellated struct {
	Coords         coords.TileCoords
	SourceLayer    string
	Buffer         tessellate.Buffer
	FeatureIndices []uint32
	Index          *geomindex.Index
}

func (LayerTessellated) isMessage() {}

// LayerUnavailable reports that a layer could not be tessellated (or was
// absent from the MVT tile); the tile as a whole still completes
// (spec.md §4.1).
type LayerUnavailable struct {
	Coords      coords.TileCoords
	SourceLayer string
	Reason      string
}

func (LayerUnavailable) isMessage() {}

// LayerIndexed reports that a layer's spatial index (package geomindex)
// has been built, for callers that index asynchronously from
// tessellation (e.g. to prioritize visible layers' GPU upload over their
// hit-test index).
type LayerIndexed struct {
	Coords      coords.TileCoords
	SourceLayer string
	Index       *geomindex.Index
}

func (LayerIndexed) isMessage() {}
