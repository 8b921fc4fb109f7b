package stencil

import (
	"testing"

	"github.com/gogpu/maptile/coords"
)

func TestReferenceDistinguishesNeighbors(t *testing.T) {
	z := uint8(4)
	center := coords.WorldTileCoords{X: 2, Y: 2, Z: z}
	neighbors := []coords.WorldTileCoords{
		{X: 3, Y: 2, Z: z},
		{X: 2, Y: 3, Z: z},
		{X: 3, Y: 3, Z: z},
	}

	ref := Reference(center)
	for _, n := range neighbors {
		if Reference(n) == ref {
			t.Errorf("neighbor %v collides with center reference %d", n, ref)
		}
	}
}

func TestReferenceSeparatesZoomLevels(t *testing.T) {
	a := coords.WorldTileCoords{X: 0, Y: 0, Z: 3}
	b := coords.WorldTileCoords{X: 0, Y: 0, Z: 4}
	if Reference(a) == Reference(b) {
		t.Errorf("same (x,y) at adjacent zooms collide: %d", Reference(a))
	}
}

func TestReferenceFourDistinctParities(t *testing.T) {
	z := uint8(0)
	seen := map[uint32]bool{}
	for x := int64(0); x < 2; x++ {
		for y := int64(0); y < 2; y++ {
			seen[Reference(coords.WorldTileCoords{X: x, Y: y, Z: z})] = true
		}
	}
	if len(seen) != 4 {
		t.Errorf("got %d distinct parities over a 2x2 block, want 4", len(seen))
	}
}
