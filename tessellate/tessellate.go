// Package tessellate converts decoded MVT layers (package mvtsource) into
// the interleaved vertex/index buffers the render schedule (package
// render) uploads to the GPU.
//
// Two tessellators are used, one per geometry class: a triangle-fan fill
// tessellator for polygons (ported from the fan tessellator pattern used
// for glyph/shape fill in the gg stencil-then-cover pipeline) and a
// per-segment quad stroke tessellator for line strings. Points carry no
// paint in the core (spec.md §4.1) and are skipped.
package tessellate

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/gogpu/maptile/mvtsource"
)

// fillTolerance is the maximum deviation a curve-flattening step would be
// allowed from its chord. MVT geometries are already linear (no Bezier
// commands exist in the wire format), so no flattening ever runs; the
// constant is retained so tolerance is visibly pinned to the value
// spec.md requires, should a future curved source feed this tessellator.
const fillTolerance = 0.02

// Vertex is the packed per-vertex record the GPU pipelines consume:
// a centerline/fill position plus a normal that layer.wgsl adds to the
// position, giving line geometry its width (zero for fill triangles).
type Vertex struct {
	Position [2]float32
	Normal   [2]float32
}

// Buffer is one tessellated layer's GPU-ready geometry.
type Buffer struct {
	Vertices      []Vertex
	Indices       []uint32
	UsableIndices uint32 // index count before COPY_BUFFER_ALIGNMENT padding
}

// IndexAlignment is the index-count granularity the index buffer is
// padded to (spec.md §9: "multiple of 4 bytes, specified as 4 here for
// portability"): 4 indices of 4 bytes each, 16 bytes, which also keeps
// every buffer copy a multiple of 4 bytes.
const IndexAlignment = 4

// ErrUnsupportedGeometry is returned for a feature geometry type the
// tessellator has no handling for (spec.md §4.1 only names polygons,
// line strings, and points).
var ErrUnsupportedGeometry = errors.New("tessellate: unsupported geometry type")

// Tessellate converts one decoded MVT layer into a single combined vertex
// and index buffer, plus the index count contributed by each feature in
// order (one entry per feature; points contribute zero). A feature whose
// geometry type has no tessellator fails the whole layer with
// ErrUnsupportedGeometry; no partial buffer is returned.
func Tessellate(layer mvtsource.TileLayer) (Buffer, []uint32, error) {
	var (
		buf            Buffer
		featureIndices = make([]uint32, 0, len(layer.Features))
		vertexBase     uint32
	)

	for _, feat := range layer.Features {
		before := len(buf.Indices)
		switch geom := feat.Geometry.(type) {
		case orb.Polygon:
			vertexBase = appendPolygon(&buf, geom, vertexBase)
		case orb.MultiPolygon:
			for _, p := range geom {
				vertexBase = appendPolygon(&buf, p, vertexBase)
			}
		case orb.LineString:
			vertexBase = appendLineString(&buf, geom, vertexBase)
		case orb.MultiLineString:
			for _, ls := range geom {
				vertexBase = appendLineString(&buf, ls, vertexBase)
			}
		case orb.Point, orb.MultiPoint:
			// Points carry no paint in the core: no geometry, and a zero
			// entry in featureIndices.
		default:
			return Buffer{}, nil, fmt.Errorf("tessellate: layer %q: %w: %T", layer.Name, ErrUnsupportedGeometry, geom)
		}
		featureIndices = append(featureIndices, uint32(len(buf.Indices)-before))
	}

	buf.UsableIndices = uint32(len(buf.Indices))
	padIndices(&buf)

	return buf, featureIndices, nil
}

// padIndices appends zero indices (degenerate, never drawn past
// UsableIndices) until the index count is a multiple of IndexAlignment.
func padIndices(buf *Buffer) {
	rem := len(buf.Indices) % IndexAlignment
	if rem == 0 {
		return
	}
	for i := rem; i < IndexAlignment; i++ {
		buf.Indices = append(buf.Indices, 0)
	}
}

// appendPolygon fan-triangulates every ring of a polygon (exterior and
// holes alike) and appends its vertices/indices to buf, returning the
// next free vertex index. Hole rings are fanned and filled exactly like
// the exterior ring, so holes are drawn covered; ring winding is not
// consulted here or by the stencil pipelines.
func appendPolygon(buf *Buffer, poly orb.Polygon, vertexBase uint32) uint32 {
	for _, ring := range poly {
		vertexBase = appendFillRing(buf, ring, vertexBase)
	}
	return vertexBase
}

// appendFillRing fan-triangulates a single closed ring from its first
// point, emitting triangles (v0, vi, vi+1) for every subsequent edge.
func appendFillRing(buf *Buffer, ring orb.Ring, vertexBase uint32) uint32 {
	pts := ring
	if len(pts) >= 2 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1] // orb rings repeat the closing point; fan doesn't need it twice
	}
	if len(pts) < 3 {
		return vertexBase
	}

	for _, p := range pts {
		buf.Vertices = append(buf.Vertices, Vertex{Position: [2]float32{float32(p[0]), float32(p[1])}})
	}

	v0 := vertexBase
	for i := 1; i < len(pts)-1; i++ {
		vi := vertexBase + uint32(i)
		vi1 := vertexBase + uint32(i+1)
		if degenerate(pts[0], pts[i], pts[i+1]) {
			continue
		}
		buf.Indices = append(buf.Indices, v0, vi, vi1)
	}
	return vertexBase + uint32(len(pts))
}

func degenerate(a, b, c orb.Point) bool {
	ax, ay := b[0]-a[0], b[1]-a[1]
	bx, by := c[0]-a[0], c[1]-a[1]
	return ax*by-ay*bx == 0
}
