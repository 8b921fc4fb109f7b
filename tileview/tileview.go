// Package tileview builds the per-frame tile-view pattern (component
// C8): for each tile in the current view region, a packed instance
// record carrying its model transform and zoom factor, plus — when the
// tile itself has no tessellated data yet — a second record borrowed
// from the nearest loaded ancestor so the layer pass still has
// something to draw while the real tile streams in.
package tileview

import (
	"github.com/gogpu/maptile/coords"
)

// maxFallbackLevels bounds how many ancestor levels Build will walk up
// looking for loaded data (spec.md §4.6: "one level up, then two, up to
// a small bound").
const maxFallbackLevels = 4

// Range is a half-open byte range into the tile-view instance buffer.
type Range struct {
	Start, End uint64
}

// PerTileInstance is the packed per-instance record uploaded to the GPU
// (spec.md §6: "transform: mat4<f32>, zoom_factor: f32, _pad").
type PerTileInstance struct {
	Transform  [16]float32
	ZoomFactor float32
	_pad       [3]float32
}

// Shape is one tile's entry in the pattern: its own instance range for
// the mask pass, and — when the tile's layers are not yet loaded — a
// fallback instance range borrowed from an ancestor for the layer pass.
type Shape struct {
	Coords      coords.WorldTileCoords
	BufferRange Range

	HasFallback     bool
	FallbackCoords  coords.WorldTileCoords
	FallbackRange   Range
}

// Pattern is one frame's tile-view pattern: the shapes in quadkey order
// and the packed instance buffer to upload.
type Pattern struct {
	Shapes    []Shape
	Instances []PerTileInstance
}

// instanceStride is size_of::<PerTileInstance>, used to compute each
// shape's buffer_range (spec.md §4.6 step 1).
const instanceStride = uint64(16*4 + 4 + 3*4)

// Build recomputes the tile-view pattern for one frame. viewCoords must
// already be in quadkey order (the order a repository or view-region
// query naturally produces). hasData reports whether coord's requested
// layers are already resolved in the tile repository.
func Build(viewCoords []coords.WorldTileCoords, zoom float64, hasData func(coords.WorldTileCoords) bool) Pattern {
	var pattern Pattern
	var index uint64

	appendInstance := func(wc coords.WorldTileCoords) Range {
		transform := wc.TransformForZoom(zoom)
		var packed [16]float32
		for i := 0; i < 16; i++ {
			packed[i] = float32(transform[i])
		}
		pattern.Instances = append(pattern.Instances, PerTileInstance{
			Transform:  packed,
			ZoomFactor: float32(wc.ZoomFactor(zoom)),
		})
		r := Range{Start: index * instanceStride, End: (index + 1) * instanceStride}
		index++
		return r
	}

	for _, wc := range viewCoords {
		shape := Shape{Coords: wc, BufferRange: appendInstance(wc)}

		if !hasData(wc) {
			if ancestor, ok := resolveFallback(wc, hasData); ok {
				shape.HasFallback = true
				shape.FallbackCoords = ancestor
				shape.FallbackRange = appendInstance(ancestor)
			}
		}

		pattern.Shapes = append(pattern.Shapes, shape)
	}

	return pattern
}

// resolveFallback walks up to maxFallbackLevels ancestors looking for
// one with loaded data.
func resolveFallback(wc coords.WorldTileCoords, hasData func(coords.WorldTileCoords) bool) (coords.WorldTileCoords, bool) {
	for level := uint8(1); level <= maxFallbackLevels; level++ {
		ancestor, ok := wc.Parent(level)
		if !ok {
			break
		}
		if hasData(ancestor) {
			return ancestor, true
		}
	}
	return coords.WorldTileCoords{}, false
}
