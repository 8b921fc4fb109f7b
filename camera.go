package maptile

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Default camera parameters for a freshly constructed Map: a gentle
// three-quarter overhead view, the same starting pose a fresh Mapbox-
// style map opens with before the caller's first gesture.
const (
	defaultPitch = -math.Pi / 4
	defaultFov   = math.Pi / 4
	defaultNear  = 0.1
	defaultFar   = 10000
)

// pitchLimit keeps Camera.Pitch strictly inside the open interval
// viewstate.Camera documents as required to avoid the LookAtV
// up/forward degeneracy at the exact poles.
const pitchLimit = math.Pi/2 - 0.01

func mapStartPosition() mgl64.Vec3 {
	return mgl64.Vec3{0, 50, 0}
}

func clampPitch(p float64) float64 {
	if p > pitchLimit {
		return pitchLimit
	}
	if p < -pitchLimit {
		return -pitchLimit
	}
	return p
}

// panOffset translates a ground-plane delta (dx along world X, dy along
// world Z), independent of the camera's current yaw: Pan moves the
// camera in absolute map directions, not camera-relative ones, matching
// how a 2D pan gesture on a map is usually specified.
func panOffset(dx, dy float64) mgl64.Vec3 {
	return mgl64.Vec3{dx, 0, dy}
}
