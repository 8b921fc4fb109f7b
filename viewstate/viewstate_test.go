package viewstate

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func nearlyEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestWindowToWorldAtGroundCenterHitsOrigin(t *testing.T) {
	camera := Camera{Position: mgl64.Vec3{0, 100, 0.001}, Yaw: 0, Pitch: -math.Pi/2 + 0.001}
	perspective := Perspective{Fov: math.Pi / 4, Near: 0.1, Far: 1000}
	s := New(camera, perspective, 4, 800, 600)

	inverseVP := s.ViewProjection().Inv()
	hit, ok := s.WindowToWorldAtGround(mgl64.Vec2{400, 300}, inverseVP)
	if !ok {
		t.Fatal("expected the screen center ray to hit the ground plane")
	}
	if !nearlyEqual(hit.X(), 0, 0.5) || !nearlyEqual(hit.Y(), 0, 0.5) {
		t.Errorf("got hit %v, want near (0,0)", hit)
	}
}

func TestViewRegionBoundingBoxContainsOrigin(t *testing.T) {
	camera := Camera{Position: mgl64.Vec3{0, 100, 0.001}, Yaw: 0, Pitch: -math.Pi/2 + 0.001}
	perspective := Perspective{Fov: math.Pi / 3, Near: 0.1, Far: 1000}
	s := New(camera, perspective, 4, 800, 600)

	box, ok := s.ViewRegionBoundingBox(s.ViewProjection().Inv())
	if !ok {
		t.Fatal("expected all four screen corners to hit the ground plane")
	}
	if box.Min.X() > 0 || box.Max.X() < 0 || box.Min.Y() > 0 || box.Max.Y() < 0 {
		t.Errorf("box %+v does not contain the origin", box)
	}
}

func TestVisibleTilesIncludesOriginTile(t *testing.T) {
	camera := Camera{Position: mgl64.Vec3{8, 100, 8.001}, Yaw: 0, Pitch: -math.Pi/2 + 0.001}
	perspective := Perspective{Fov: math.Pi / 4, Near: 0.1, Far: 1000}
	s := New(camera, perspective, 4, 800, 600)

	tiles := s.VisibleTiles()
	if len(tiles) == 0 {
		t.Fatal("expected at least one visible tile")
	}
	found := false
	for _, tile := range tiles {
		if tile.X == 8 && tile.Y == 8 && tile.Z == 4 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected tile (8,8,4) to be visible, got %+v", tiles)
	}

	for i := 1; i < len(tiles); i++ {
		if tiles[i-1].Quadkey() > tiles[i].Quadkey() {
			t.Fatalf("tiles not in quadkey order at index %d: %+v", i, tiles)
		}
	}
}

func TestDidChangeAndUpdateReference(t *testing.T) {
	s := New(Camera{Position: mgl64.Vec3{0, 100, 0}}, Perspective{Fov: math.Pi / 4, Near: 0.1, Far: 1000}, 4, 800, 600)

	if s.DidChange(0.01) {
		t.Error("expected no change immediately after construction")
	}

	s.UpdateZoom(5)
	if !s.DidChange(0.01) {
		t.Error("expected DidChange to report the zoom change")
	}

	s.UpdateReference()
	if s.DidChange(0.01) {
		t.Error("expected DidChange to reset after UpdateReference")
	}
}

func TestResizeUpdatesAspect(t *testing.T) {
	s := New(Camera{Position: mgl64.Vec3{0, 0, 5}}, Perspective{Fov: math.Pi / 4, Near: 0.1, Far: 1000}, 0, 800, 600)
	before := s.aspect()
	s.Resize(1600, 600)
	if s.aspect() == before {
		t.Error("expected aspect ratio to change after Resize")
	}
}
