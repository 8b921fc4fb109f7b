// Package viewstate implements the view state (component C11): the
// camera, perspective, and zoom observer the render schedule (package
// render) reads once per frame to decide which tiles are visible.
//
// Ground-plane coordinates here are "world tile units at the reference
// zoom": Y is up, and a point (x, 0, z) sits inside tile
// (floor(x), floor(z)) at zoom round(State.Zoom()), the same convention coords.WorldTileCoords
// uses at z = that rounded zoom. This lets VisibleTiles turn a screen
// bounding box directly into tile indices without a separate projected
// coordinate system.
//
// View-projection math is grounded on the LookAtV/Perspective camera
// pattern used throughout the retrieved pack's 3D renderers (e.g. the
// voxel engine's buildCameraMatrix), generalized from mgl32 to mgl64 for
// the double-precision map camera spec.md §4.10 calls for.
package viewstate

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gogpu/maptile/coords"
)

// Camera is the eye position and orientation in ground-plane world
// units (spec.md §4.10: "camera {position, yaw, pitch}"). Pitch is
// expected to stay strictly within (-pi/2, pi/2): the world up vector
// (0,1,0) degenerates only exactly at the poles, and a tiltable map
// camera (e.g. Mapbox-style pitch, capped well short of straight down)
// never reaches them in practice.
type Camera struct {
	Position mgl64.Vec3
	Yaw      float64 // radians, 0 = looking down -Z
	Pitch    float64 // radians, 0 = level, negative = tilting down toward the ground plane
}

// forward returns the camera's unit look direction.
func (c Camera) forward() mgl64.Vec3 {
	return mgl64.Vec3{
		math.Cos(c.Pitch) * math.Sin(c.Yaw),
		math.Sin(c.Pitch),
		-math.Cos(c.Pitch) * math.Cos(c.Yaw),
	}.Normalize()
}

// Perspective is the projection's intrinsic parameters (spec.md §4.10).
type Perspective struct {
	Fov  float64 // vertical field of view, radians
	Near float64
	Far  float64
}

// Box2D is an axis-aligned ground-plane bounding box.
type Box2D struct {
	Min, Max mgl64.Vec2
}

// maxVisibleTilesPerAxis bounds VisibleTiles' output against a
// degenerate view (camera looking at the horizon, near-parallel to the
// ground plane) that would otherwise project to an unbounded box.
const maxVisibleTilesPerAxis = 256

// State holds one frame's camera, perspective, and zoom, plus the
// reference snapshot did_change compares against.
type State struct {
	camera      Camera
	perspective Perspective
	zoom        float64
	width       uint32
	height      uint32

	refZoom     float64
	refPosition mgl64.Vec3
	haveRef     bool
}

// New constructs a State at the given camera, perspective, zoom, and
// viewport size, with its change-detection reference already taken.
func New(camera Camera, perspective Perspective, zoom float64, width, height uint32) *State {
	s := &State{camera: camera, perspective: perspective, zoom: zoom, width: width, height: height}
	s.UpdateReference()
	return s
}

// Zoom returns the current fractional zoom (satisfies render.ViewProvider).
func (s *State) Zoom() float64 { return s.zoom }

// UpdateZoom sets the current zoom.
func (s *State) UpdateZoom(z float64) { s.zoom = z }

// Resize sets the viewport size in pixels.
func (s *State) Resize(w, h uint32) { s.width, s.height = w, h }

// Camera returns the current camera.
func (s *State) Camera() Camera { return s.camera }

// SetCamera replaces the current camera (e.g. after a pan/orbit
// gesture updates position/yaw/pitch).
func (s *State) SetCamera(c Camera) { s.camera = c }

// aspect returns width/height, falling back to 1 for a not-yet-sized
// viewport rather than dividing by zero.
func (s *State) aspect() float64 {
	if s.height == 0 {
		return 1
	}
	return float64(s.width) / float64(s.height)
}

// ViewProjection returns the combined view-projection matrix for the
// current camera and perspective.
func (s *State) ViewProjection() mgl64.Mat4 {
	forward := s.camera.forward()
	target := s.camera.Position.Add(forward)
	view := mgl64.LookAtV(s.camera.Position, target, mgl64.Vec3{0, 1, 0})
	proj := mgl64.Perspective(s.perspective.Fov, s.aspect(), s.perspective.Near, s.perspective.Far)
	return proj.Mul4(view)
}

// WindowToWorldAtGround unprojects a window-space point p (pixels, origin
// top-left) through inverseVP and intersects the resulting ray with the
// y=0 ground plane (Y is the camera's up axis), returning the hit's
// (x, z) as a ground-plane point, or false if the ray is parallel to the
// plane or points away from it (spec.md §4.10).
func (s *State) WindowToWorldAtGround(p mgl64.Vec2, inverseVP mgl64.Mat4) (mgl64.Vec2, bool) {
	if s.width == 0 || s.height == 0 {
		return mgl64.Vec2{}, false
	}
	ndcX := 2*p.X()/float64(s.width) - 1
	ndcY := 1 - 2*p.Y()/float64(s.height)

	near := unprojectNDC(inverseVP, ndcX, ndcY, -1)
	far := unprojectNDC(inverseVP, ndcX, ndcY, 1)

	dir := far.Sub(near)
	if math.Abs(dir.Y()) < 1e-12 {
		return mgl64.Vec2{}, false
	}
	t := -near.Y() / dir.Y()
	if t < 0 {
		return mgl64.Vec2{}, false
	}
	hit := near.Add(dir.Mul(t))
	return mgl64.Vec2{hit.X(), hit.Z()}, true
}

// unprojectNDC maps one NDC-space point back to world space through
// inverseVP, dividing through by the homogeneous w component.
func unprojectNDC(inverseVP mgl64.Mat4, x, y, z float64) mgl64.Vec3 {
	p := inverseVP.Mul4x1(mgl64.Vec4{x, y, z, 1})
	w := p.W()
	if w == 0 {
		w = 1
	}
	return mgl64.Vec3{p.X() / w, p.Y() / w, p.Z() / w}
}

// ViewRegionBoundingBox projects the four screen corners to the ground
// plane and returns their axis-aligned bounding box. false means no
// corner hit the ground plane (camera pointed entirely at the sky).
func (s *State) ViewRegionBoundingBox(inverseVP mgl64.Mat4) (Box2D, bool) {
	corners := [4]mgl64.Vec2{
		{0, 0},
		{float64(s.width), 0},
		{0, float64(s.height)},
		{float64(s.width), float64(s.height)},
	}

	var box Box2D
	hitAny := false
	for _, c := range corners {
		hit, ok := s.WindowToWorldAtGround(c, inverseVP)
		if !ok {
			continue
		}
		if !hitAny {
			box = Box2D{Min: hit, Max: hit}
			hitAny = true
			continue
		}
		box.Min = mgl64.Vec2{math.Min(box.Min.X(), hit.X()), math.Min(box.Min.Y(), hit.Y())}
		box.Max = mgl64.Vec2{math.Max(box.Max.X(), hit.X()), math.Max(box.Max.Y(), hit.Y())}
	}
	return box, hitAny
}

// VisibleTiles computes the current view-projection, projects the
// screen corners to the ground plane, and enumerates the integer tile
// coordinates the resulting box covers at zoom round(s.zoom), in
// quadkey order (render.Schedule's Extract and Queue stages both expect
// this ordering).
func (s *State) VisibleTiles() []coords.WorldTileCoords {
	vp := s.ViewProjection()
	inverseVP := vp.Inv()
	box, ok := s.ViewRegionBoundingBox(inverseVP)
	if !ok {
		return nil
	}

	z := uint8(math.Round(s.zoom))
	minX, maxX := clampTileRange(box.Min.X(), box.Max.X())
	minY, maxY := clampTileRange(box.Min.Y(), box.Max.Y())

	out := make([]coords.WorldTileCoords, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			out = append(out, coords.WorldTileCoords{X: x, Y: y, Z: z})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quadkey() < out[j].Quadkey() })
	return out
}

// clampTileRange converts a ground-plane [lo, hi] span into an
// inclusive integer tile-index range, bounded to maxVisibleTilesPerAxis
// tiles against a near-degenerate view.
func clampTileRange(lo, hi float64) (int64, int64) {
	if hi < lo {
		lo, hi = hi, lo
	}
	min := int64(math.Floor(lo))
	max := int64(math.Floor(hi))
	if max-min+1 > maxVisibleTilesPerAxis {
		max = min + maxVisibleTilesPerAxis - 1
	}
	return min, max
}

// DidChange reports whether the camera position or zoom has moved by at
// least eps since the last UpdateReference call (spec.md §4.10).
func (s *State) DidChange(eps float64) bool {
	if !s.haveRef {
		return true
	}
	if math.Abs(s.zoom-s.refZoom) >= eps {
		return true
	}
	return s.camera.Position.Sub(s.refPosition).Len() >= eps
}

// UpdateReference snapshots the current camera position and zoom as the
// baseline DidChange compares against; the main loop calls this once per
// frame after dispatching any change.
func (s *State) UpdateReference() {
	s.refZoom = s.zoom
	s.refPosition = s.camera.Position
	s.haveRef = true
}
