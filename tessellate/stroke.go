package tessellate

import (
	"math"

	"github.com/paulmach/orb"
)

// defaultStrokeWidth is the fixed line width spec.md §4.1 specifies for
// the core stroke tessellator ("line strings use a stroke tessellator
// with the same tolerance and default stroke width").
const defaultStrokeWidth = 1.0

// appendLineString tessellates a line string into a ribbon of per-segment
// quads. Each quad corner sits on the centerline and carries a
// perpendicular offset of half the stroke width in Normal, which
// layer.wgsl adds to the position; polygons use the same Vertex record
// with a zero normal.
//
// No join geometry is emitted: consecutive segment quads meet only at
// their shared centerline point, with no miter or bevel fill, which
// avoids the self-intersection bookkeeping a mitered join needs and
// matches the tolerance-bounded, "good enough for GPU rasterization"
// spirit of the fan fill tessellator in tessellate.go.
func appendLineString(buf *Buffer, ls orb.LineString, vertexBase uint32) uint32 {
	if len(ls) < 2 {
		return vertexBase
	}

	halfWidth := float32(defaultStrokeWidth / 2)

	for i := 0; i < len(ls)-1; i++ {
		p0, p1 := ls[i], ls[i+1]
		dx := p1[0] - p0[0]
		dy := p1[1] - p0[1]
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		nx := float32(-dy / length)
		ny := float32(dx / length)

		x0, y0 := float32(p0[0]), float32(p0[1])
		x1, y1 := float32(p1[0]), float32(p1[1])

		// Quad corners: left/right of p0, then left/right of p1.
		v0 := Vertex{Position: [2]float32{x0, y0}, Normal: [2]float32{nx * halfWidth, ny * halfWidth}}
		v1 := Vertex{Position: [2]float32{x0, y0}, Normal: [2]float32{-nx * halfWidth, -ny * halfWidth}}
		v2 := Vertex{Position: [2]float32{x1, y1}, Normal: [2]float32{nx * halfWidth, ny * halfWidth}}
		v3 := Vertex{Position: [2]float32{x1, y1}, Normal: [2]float32{-nx * halfWidth, -ny * halfWidth}}

		base := vertexBase
		buf.Vertices = append(buf.Vertices, v0, v1, v2, v3)
		buf.Indices = append(buf.Indices,
			base, base+1, base+2,
			base+1, base+3, base+2,
		)
		vertexBase += 4
	}

	return vertexBase
}
