// Package geomindex builds a per-tile spatial index of tessellated
// features, used for point queries (hit-testing) against the map
// (component C3). The scheduler worker builds one Index per tessellated
// layer and hands it back to the main thread as a LayerIndexed message
// (package apc) alongside the GPU buffer itself.
package geomindex

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Entry is one indexed feature: its bounding box (for the broad query
// phase) and its original geometry (for the precise contains/distance
// check), keyed by the feature's position in the tessellated layer's
// feature_indices list so a hit can be mapped back to style/paint data.
type Entry struct {
	FeatureIndex int
	Bound        orb.Bound
	Geometry     orb.Geometry
}

// Index is a per-(tile, source_layer) spatial index. Lookups are a
// straight linear scan over bounding boxes: tiles hold at most a few
// thousand features, well within the budget for a per-frame hit test
// without building an R-tree.
type Index struct {
	entries []Entry
}

// Build constructs an Index from a decoded layer's features, in the same
// order Tessellate (package tessellate) consumed them, so FeatureIndex
// lines up with the tessellated layer's feature_indices slice.
func Build(geometries []orb.Geometry) *Index {
	idx := &Index{entries: make([]Entry, 0, len(geometries))}
	for i, g := range geometries {
		if g == nil {
			continue
		}
		idx.entries = append(idx.entries, Entry{
			FeatureIndex: i,
			Bound:        g.Bound(),
			Geometry:     g,
		})
	}
	return idx
}

// QueryPoint returns every feature whose geometry contains (for
// polygons) or passes within radius of (for line strings and points)
// the given point, in tile-local coordinates. Order matches index build
// order, which is MVT draw order — the topmost hit is the last match.
func (idx *Index) QueryPoint(p orb.Point, radius float64) []Entry {
	if idx == nil {
		return nil
	}
	var hits []Entry
	for _, e := range idx.entries {
		b := orb.Bound{
			Min: orb.Point{e.Bound.Min[0] - radius, e.Bound.Min[1] - radius},
			Max: orb.Point{e.Bound.Max[0] + radius, e.Bound.Max[1] + radius},
		}
		if !b.Contains(p) {
			continue
		}
		if hitTests(e.Geometry, p, radius) {
			hits = append(hits, e)
		}
	}
	return hits
}

// hitTests applies the geometry-specific precise test once the broad
// bounding-box phase has passed.
func hitTests(g orb.Geometry, p orb.Point, radius float64) bool {
	switch geom := g.(type) {
	case orb.Point:
		return pointDistance(geom, p) <= radius
	case orb.MultiPoint:
		for _, pt := range geom {
			if pointDistance(pt, p) <= radius {
				return true
			}
		}
		return false
	case orb.LineString:
		return lineStringDistance(geom, p) <= radius
	case orb.MultiLineString:
		for _, ls := range geom {
			if lineStringDistance(ls, p) <= radius {
				return true
			}
		}
		return false
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		for _, poly := range geom {
			if planar.PolygonContains(poly, p) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func pointDistance(a, b orb.Point) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return math.Hypot(dx, dy)
}

// lineStringDistance returns the shortest distance from p to any segment
// of ls.
func lineStringDistance(ls orb.LineString, p orb.Point) float64 {
	best := math.Inf(1)
	for i := 0; i < len(ls)-1; i++ {
		d := segmentDistance(ls[i], ls[i+1], p)
		if d < best {
			best = d
		}
	}
	return best
}

// segmentDistance returns the shortest distance from p to the segment a-b.
func segmentDistance(a, b, p orb.Point) float64 {
	abx, aby := b[0]-a[0], b[1]-a[1]
	lenSq := abx*abx + aby*aby
	if lenSq == 0 {
		return pointDistance(a, p)
	}
	t := ((p[0]-a[0])*abx + (p[1]-a[1])*aby) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := orb.Point{a[0] + t*abx, a[1] + t*aby}
	return pointDistance(closest, p)
}

// Len reports the number of indexed entries (a nil Index has none).
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}
