package coords

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTileCoordsValid(t *testing.T) {
	cases := []struct {
		c    TileCoords
		want bool
	}{
		{TileCoords{X: 0, Y: 0, Z: 0}, true},
		{TileCoords{X: 1, Y: 1, Z: 1}, true},
		{TileCoords{X: 2, Y: 0, Z: 1}, false},
		{TileCoords{X: 0, Y: 0, Z: 33}, false},
		{TileCoords{X: 1023, Y: 1023, Z: 10}, true},
		{TileCoords{X: 1024, Y: 0, Z: 10}, false},
	}
	for _, tc := range cases {
		if got := tc.c.Valid(); got != tc.want {
			t.Errorf("%v.Valid() = %v, want %v", tc.c, got, tc.want)
		}
	}
}

func TestQuadkeyDistinctAcrossZoom(t *testing.T) {
	a := TileCoords{X: 0, Y: 0, Z: 0}.ToQuadkey()
	b := TileCoords{X: 0, Y: 0, Z: 1}.ToQuadkey()
	if a == b {
		t.Errorf("quadkeys for different zooms collided: %d == %d", a, b)
	}
}

func TestQuadkeyDistinctSiblings(t *testing.T) {
	seen := map[Quadkey]TileCoords{}
	for x := uint32(0); x < 4; x++ {
		for y := uint32(0); y < 4; y++ {
			c := TileCoords{X: x, Y: y, Z: 2}
			qk := c.ToQuadkey()
			if prev, ok := seen[qk]; ok {
				t.Fatalf("quadkey collision: %v and %v both produced %d", prev, c, qk)
			}
			seen[qk] = c
		}
	}
}

func TestWorldTileCoordsWrapped(t *testing.T) {
	cases := []struct {
		w    WorldTileCoords
		want TileCoords
	}{
		{WorldTileCoords{X: 0, Y: 0, Z: 2}, TileCoords{X: 0, Y: 0, Z: 2}},
		{WorldTileCoords{X: 4, Y: 0, Z: 2}, TileCoords{X: 0, Y: 0, Z: 2}},
		{WorldTileCoords{X: -1, Y: 0, Z: 2}, TileCoords{X: 3, Y: 0, Z: 2}},
		{WorldTileCoords{X: -5, Y: 0, Z: 2}, TileCoords{X: 3, Y: 0, Z: 2}},
	}
	for _, tc := range cases {
		if got := tc.w.Wrapped(); got != tc.want {
			t.Errorf("%v.Wrapped() = %v, want %v", tc.w, got, tc.want)
		}
	}
}

func TestWorldTileCoordsParent(t *testing.T) {
	w := WorldTileCoords{X: 5, Y: 3, Z: 3}
	p, ok := w.Parent(1)
	if !ok {
		t.Fatal("expected parent to exist")
	}
	want := WorldTileCoords{X: 2, Y: 1, Z: 2}
	if p != want {
		t.Errorf("Parent(1) = %v, want %v", p, want)
	}

	_, ok = w.Parent(10)
	if ok {
		t.Error("expected Parent(10) to fail: not enough zoom levels above z=3")
	}
}

func TestTransformForZoomOrigin(t *testing.T) {
	// spec.md §8 "Transform correctness": transform_for_zoom(z) applied to
	// (0,0) places the tile origin at world (x*extent, y*extent) scaled by
	// 2^(coords.z - z).
	w := WorldTileCoords{X: 3, Y: 5, Z: 10}
	zoom := 8.0
	tr := w.TransformForZoom(zoom)
	origin := tr.Mul4x1(mgl64.Vec4{0, 0, 0, 1})
	scale := w.ZoomFactor(zoom)
	wantX := float64(w.X) * Extent * scale
	wantY := float64(w.Y) * Extent * scale
	if !almostEqual(origin[0], wantX) || !almostEqual(origin[1], wantY) {
		t.Errorf("origin = (%v, %v), want (%v, %v)", origin[0], origin[1], wantX, wantY)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
