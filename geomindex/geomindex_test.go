package geomindex

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestQueryPointPolygon(t *testing.T) {
	square := orb.Polygon{orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
	idx := Build([]orb.Geometry{square})

	if hits := idx.QueryPoint(orb.Point{5, 5}, 0); len(hits) != 1 {
		t.Fatalf("expected 1 hit inside the square, got %d", len(hits))
	}
	if hits := idx.QueryPoint(orb.Point{50, 50}, 0); len(hits) != 0 {
		t.Fatalf("expected no hit far outside the square, got %d", len(hits))
	}
}

func TestQueryPointLineString(t *testing.T) {
	line := orb.LineString{{0, 0}, {10, 0}}
	idx := Build([]orb.Geometry{line})

	if hits := idx.QueryPoint(orb.Point{5, 0.1}, 1); len(hits) != 1 {
		t.Fatalf("expected a hit within radius of the line, got %d", len(hits))
	}
	if hits := idx.QueryPoint(orb.Point{5, 5}, 1); len(hits) != 0 {
		t.Fatalf("expected no hit far from the line, got %d", len(hits))
	}
}

func TestBuildSkipsNilGeometry(t *testing.T) {
	idx := Build([]orb.Geometry{nil, orb.Point{1, 1}})
	if idx.Len() != 1 {
		t.Fatalf("got %d entries, want 1 (nil skipped)", idx.Len())
	}
}

func TestQueryPointOnNilIndex(t *testing.T) {
	var idx *Index
	if hits := idx.QueryPoint(orb.Point{0, 0}, 1); hits != nil {
		t.Error("expected nil hits from a nil index")
	}
}
