package tileview

import (
	"testing"

	"github.com/gogpu/maptile/coords"
)

func TestBuildAllLoaded(t *testing.T) {
	view := []coords.WorldTileCoords{
		{X: 0, Y: 0, Z: 2},
		{X: 1, Y: 0, Z: 2},
	}
	pattern := Build(view, 2, func(coords.WorldTileCoords) bool { return true })

	if len(pattern.Shapes) != 2 {
		t.Fatalf("got %d shapes, want 2", len(pattern.Shapes))
	}
	if len(pattern.Instances) != 2 {
		t.Fatalf("got %d instances, want 2 (no fallbacks needed)", len(pattern.Instances))
	}
	for _, s := range pattern.Shapes {
		if s.HasFallback {
			t.Error("expected no fallback when all tiles have data")
		}
	}
}

func TestBuildFallback(t *testing.T) {
	loaded := coords.WorldTileCoords{X: 0, Y: 0, Z: 1}
	missing := coords.WorldTileCoords{X: 1, Y: 1, Z: 3}

	hasData := func(c coords.WorldTileCoords) bool {
		return c == loaded
	}

	pattern := Build([]coords.WorldTileCoords{missing}, 3, hasData)
	if len(pattern.Shapes) != 1 {
		t.Fatalf("got %d shapes, want 1", len(pattern.Shapes))
	}
	shape := pattern.Shapes[0]
	if !shape.HasFallback {
		t.Fatal("expected a fallback to be found within the bound")
	}
	if len(pattern.Instances) != 2 {
		t.Errorf("got %d instances, want 2 (primary + fallback)", len(pattern.Instances))
	}
	if shape.BufferRange == shape.FallbackRange {
		t.Error("primary and fallback ranges must not collide")
	}
}

func TestBuildNoFallbackWhenNoAncestorLoaded(t *testing.T) {
	missing := coords.WorldTileCoords{X: 0, Y: 0, Z: 10}
	pattern := Build([]coords.WorldTileCoords{missing}, 10, func(coords.WorldTileCoords) bool { return false })

	if pattern.Shapes[0].HasFallback {
		t.Error("expected no fallback when no ancestor has data")
	}
	if len(pattern.Instances) != 1 {
		t.Errorf("got %d instances, want 1 (primary only)", len(pattern.Instances))
	}
}
