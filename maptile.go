// Package maptile renders Mapbox Vector Tile data as a constant-color,
// stencil-clipped 3D mesh, in the idiom of package gg: a single owning
// façade value (Map) wires together the tile repository, buffer pool,
// tile-view pattern, view state, and render schedule documented in the
// sub-packages, and exposes nothing more than construction, frame
// drive, and camera mutation to the caller.
package maptile

import (
	"context"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/maptile/apc"
	"github.com/gogpu/maptile/bufferpool"
	"github.com/gogpu/maptile/coords"
	"github.com/gogpu/maptile/httpsource"
	"github.com/gogpu/maptile/render"
	"github.com/gogpu/maptile/repository"
	"github.com/gogpu/maptile/scheduler"
	"github.com/gogpu/maptile/style"
	"github.com/gogpu/maptile/viewstate"
)

// defaultColorFormat is the surface format Map renders into absent a
// reason to use anything else, matching the pack's own default for
// on-screen presentation targets.
const defaultColorFormat = gputypes.TextureFormatBGRA8Unorm

// Map is the single value a caller constructs: everything else (the
// tile repository, buffer pool, tile-view pattern, view state, render
// schedule, and the main-thread side of the APC channel) lives inside
// it, matching §9's "avoid globals" design note and map_state.rs's role
// in the original implementation.
type Map struct {
	channel  *apc.Channel
	repo     *repository.Repository
	view     *viewstate.State
	schedule *render.Schedule
}

// NewMap constructs a Map over device/queue, fetching tiles through
// client (scheduled onto sched) and styling them per style. baseURL is
// the tile source's base URL, templated {z}/{x}/{y}.pbf per spec.md §6;
// pass the empty string if client already resolves full URLs on its own
// (e.g. a test fake) and the templated path is unused.
//
// The viewport starts at zoom 0 with a 1x1 pixel size; call Resize
// before the first Frame, and Pan/Tilt/Rotate/SetZoom to aim the
// camera.
func NewMap(device hal.Device, queue hal.Queue, client apc.HttpClient, sched scheduler.Scheduler, sty *style.Style, baseURL string) *Map {
	repo := repository.New()
	channel := apc.NewChannel(func(task func(ctx context.Context)) error {
		return sched.Schedule(task)
	}, client, 0)
	view := viewstate.New(
		viewstate.Camera{Position: mapStartPosition(), Yaw: 0, Pitch: defaultPitch},
		viewstate.Perspective{Fov: defaultFov, Near: defaultNear, Far: defaultFar},
		0, 1, 1,
	)
	urlFor := httpsource.URLFor(baseURL)
	schedule := render.New(device, queue, defaultColorFormat, channel, repo, sty, view, func(c coords.TileCoords) string {
		return urlFor(c)
	}, bufferpool.DefaultCapacities())

	m := &Map{channel: channel, repo: repo, view: view, schedule: schedule}
	schedule.SetLogger(Logger())
	registerMap(m)
	return m
}

// Frame runs the render schedule's six stages once, drawing into
// surface at the given pixel dimensions (spec.md §4.8).
func (m *Map) Frame(ctx context.Context, surface hal.TextureView, w, h uint32) error {
	if err := m.schedule.RunFrame(ctx, surface, w, h); err != nil {
		return wrap(KindGPUGraph, "Map.Frame", err)
	}
	return nil
}

// Resize updates the viewport size, and with it the aspect ratio, that
// VisibleTiles projects with. Frame takes its render size from its own
// w and h arguments.
func (m *Map) Resize(w, h uint32) {
	m.view.Resize(w, h)
}

// Zoom returns the current fractional zoom level.
func (m *Map) Zoom() float64 { return m.view.Zoom() }

// SetZoom sets the fractional zoom level VisibleTiles uses to pick a
// tile grid (spec.md §4.10).
func (m *Map) SetZoom(z float64) {
	m.view.UpdateZoom(z)
}

// Pan translates the camera in the ground plane by (dx, dy) world tile
// units, keeping its yaw, pitch, and height unchanged.
func (m *Map) Pan(dx, dy float64) {
	c := m.view.Camera()
	c.Position = c.Position.Add(panOffset(dx, dy))
	m.view.SetCamera(c)
}

// Tilt adjusts the camera's pitch by dPitch radians, clamped to
// viewstate.Camera's documented (-pi/2, pi/2) domain.
func (m *Map) Tilt(dPitch float64) {
	c := m.view.Camera()
	c.Pitch = clampPitch(c.Pitch + dPitch)
	m.view.SetCamera(c)
}

// Rotate adjusts the camera's yaw by dYaw radians.
func (m *Map) Rotate(dYaw float64) {
	c := m.view.Camera()
	c.Yaw += dYaw
	m.view.SetCamera(c)
}

// DidChange reports whether the camera or zoom moved by at least eps
// since the last UpdateReference (e.g. to decide whether a frame is
// worth re-rendering).
func (m *Map) DidChange(eps float64) bool { return m.view.DidChange(eps) }

// UpdateReference snapshots the current camera and zoom as the
// baseline DidChange compares against.
func (m *Map) UpdateReference() { m.view.UpdateReference() }

// Close releases the Map's registration with the package-level logger
// propagation registry. It does not own device/queue/sched/client and
// does not destroy them.
func (m *Map) Close() {
	unregisterMap(m)
}
