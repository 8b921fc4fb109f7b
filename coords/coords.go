// Package coords implements the tile coordinate system: integer tile
// coordinates at a zoom level, world (unwrapped) tile coordinates,
// quadkeys, and per-zoom model transforms.
package coords

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MaxZoom is the highest zoom level a TileCoords may carry.
const MaxZoom = 32

// Extent is the MVT tile-local coordinate extent (spec: extent = 4096).
const Extent = 4096

// TileCoords is a canonical (wrapped) tile coordinate: x, y in [0, 2^z).
type TileCoords struct {
	X, Y uint32
	Z    uint8
}

// Valid reports whether c obeys the canonical-coordinate invariant:
// z <= MaxZoom and x, y within [0, 2^z).
func (c TileCoords) Valid() bool {
	if c.Z > MaxZoom {
		return false
	}
	span := uint64(1) << c.Z
	return uint64(c.X) < span && uint64(c.Y) < span
}

func (c TileCoords) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Quadkey is the Z-order encoding of (x, y, z), used as the tile
// repository's map key. It interleaves the bits of x and y, most
// significant first, and folds in z so that tiles at different zooms
// never collide.
type Quadkey uint64

// ToQuadkey computes the Z-order key for c. Within one zoom level,
// ascending key order is Z-order; across zoom levels it is not zoom-first
// (z sits in the low byte), so a zoom-then-Z-order traversal compares
// key&0xff before key>>8 (see repository's orderedQuadkeys).
func (c TileCoords) ToQuadkey() Quadkey {
	var key uint64
	for i := int(c.Z) - 1; i >= 0; i-- {
		bit := uint(i)
		xBit := (uint64(c.X) >> bit) & 1
		yBit := (uint64(c.Y) >> bit) & 1
		key = (key << 2) | (yBit << 1) | xBit
	}
	// Fold in z so that e.g. (0,0,0) and (0,0,1) don't collide: shift the
	// interleaved bits left and pack z into the low byte.
	return Quadkey(key<<8 | uint64(c.Z))
}

// WorldTileCoords is an un-wrapped tiling over the global 2D plane: x may
// range outside [0, 2^z) so panning across the antimeridian stays
// continuous. y is still clamped to the valid tile range by convention
// but the type itself does not enforce it (the view region is
// responsible for clamping before use, see tileview).
type WorldTileCoords struct {
	X, Y int64
	Z    uint8
}

// Wrapped folds w into the canonical [0, 2^z) range, suitable for use as
// a tile repository / fetch key.
func (w WorldTileCoords) Wrapped() TileCoords {
	span := int64(1) << w.Z
	x := w.X % span
	if x < 0 {
		x += span
	}
	y := w.Y % span
	if y < 0 {
		y += span
	}
	return TileCoords{X: uint32(x), Y: uint32(y), Z: w.Z}
}

// Quadkey returns the quadkey of the wrapped coordinate.
func (w WorldTileCoords) Quadkey() Quadkey {
	return w.Wrapped().ToQuadkey()
}

// Parent returns the ancestor coordinate `levels` zoom levels up, or the
// zero WorldTileCoords (and false) if levels exceeds w's zoom.
func (w WorldTileCoords) Parent(levels uint8) (WorldTileCoords, bool) {
	if levels == 0 {
		return w, true
	}
	if uint8(levels) > w.Z {
		return WorldTileCoords{}, false
	}
	shift := uint(levels)
	return WorldTileCoords{
		X: shiftDiv(w.X, shift),
		Y: shiftDiv(w.Y, shift),
		Z: w.Z - levels,
	}, true
}

// shiftDiv performs floor division by 2^shift, correct for negative x
// (world coordinates may be negative while panning west of the prime
// meridian).
func shiftDiv(x int64, shift uint) int64 {
	if x >= 0 {
		return x >> shift
	}
	// Two's-complement arithmetic shift already floors toward -inf for
	// negative numbers in Go, so >> is correct here too, but spell it out
	// for clarity against the canonical "floor division" definition.
	return x >> shift
}

// TransformForZoom returns the 4x4 model matrix that places this tile's
// local (MVT-unit, [0, Extent)) geometry into world space at the given
// fractional zoom: translate to the tile's world-space origin, then scale
// by 2^(z - zoom) so the tile occupies the correct footprint relative to
// tiles at other zoom levels.
//
// Applying this transform to the tile-local point (0,0) must place the
// tile's origin at world position (x*Extent, y*Extent) scaled by
// 2^(z-zoom) (spec.md §8, "Transform correctness").
func (w WorldTileCoords) TransformForZoom(zoom float64) mgl64.Mat4 {
	scale := zoomFactor(w.Z, zoom)
	originX := float64(w.X) * Extent * scale
	originY := float64(w.Y) * Extent * scale
	t := mgl64.Translate3D(originX, originY, 0)
	s := mgl64.Scale3D(scale, scale, 1)
	return t.Mul4(s)
}

// ZoomFactor returns 2^(coords.z - zoom), the per-tile scale factor used
// both by the model transform above and by the per-instance
// PerTileInstance.ZoomFactor field.
func (w WorldTileCoords) ZoomFactor(zoom float64) float64 {
	return zoomFactor(w.Z, zoom)
}

func zoomFactor(z uint8, zoom float64) float64 {
	return math.Exp2(float64(z) - zoom)
}
