// Package render implements the render schedule (component C10): the
// six per-frame stages — Extract, Prepare, Queue, PhaseSort, Render,
// Cleanup — that turn the tile repository's tessellated layers into one
// recorded and submitted command buffer.
//
// Command-buffer recording follows GPURenderSession's
// encodeSubmitSurface: one command encoder, one render pass, per-draw
// bind groups built fresh each frame and released once the frame's
// commands are submitted.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/maptile/apc"
	"github.com/gogpu/maptile/bufferpool"
	"github.com/gogpu/maptile/coords"
	"github.com/gogpu/maptile/repository"
	"github.com/gogpu/maptile/stencil"
	"github.com/gogpu/maptile/style"
	"github.com/gogpu/maptile/tileview"
)

// ViewProvider is the subset of package viewstate's State the render
// schedule depends on: the current fractional zoom and the set of
// world tile coordinates currently visible, already in quadkey order
// (spec.md §4.6 "coords produced by the view region").
type ViewProvider interface {
	Zoom() float64
	VisibleTiles() []coords.WorldTileCoords
}

// URLFor builds the fetch URL for one tile coordinate (spec.md §6, the
// {scheme}/{z}/{x}/{y}.pbf convention implemented by package httpsource).
type URLFor func(coords.TileCoords) string

// submitTimeout bounds how long Render waits for the GPU fence before
// giving up (grounded on GPURenderSession.encodeSubmitSurface's 5s wait).
const submitTimeout = 5 * time.Second

// tileInstanceSize is sizeof(tileview.PerTileInstance): 64-byte mat4 +
// 4-byte zoom factor rounded up to the type's 16-byte alignment.
const tileInstanceSize = 80

// layerMetaSize is sizeof(layer.wgsl's LayerMeta): one f32 z_index.
const layerMetaSize = 4

// featureStyleSize is sizeof(layer.wgsl's FeatureStyle): one vec4<f32>
// color. SPEC_FULL.md's style model is constant-color-per-layer (no
// data-driven paint), so every feature in a layer shares one record;
// §4.9's "expand the color across each feature_indices[i]" is satisfied
// by this single shared record rather than literal duplication.
const featureStyleSize = 16

// Schedule owns the frame-to-frame state of C10: the tile-view pattern,
// buffer pool, pipelines, and the frame-scoped phase lists built by
// Queue and consumed by Render.
type Schedule struct {
	device      hal.Device
	queue       hal.Queue
	colorFormat gputypes.TextureFormat

	channel *apc.Channel
	repo    *repository.Repository
	sty     *style.Style
	view    ViewProvider
	urlFor  URLFor

	pending map[coords.Quadkey]bool

	poolCaps  bufferpool.Capacities
	pool      *bufferpool.Pool
	pipelines *stencil.Pipelines

	depthTex       hal.Texture
	depthView      hal.TextureView
	depthW, depthH uint32

	tileInstanceBuf hal.Buffer
	tileInstanceCap uint64

	maskQuadBuf     hal.Buffer
	dummyUniformBuf hal.Buffer

	pattern tileview.Pattern

	maskItems  []maskItem
	layerItems []layerItem

	frame uint64

	log *slog.Logger
}

type maskItem struct {
	coords coords.WorldTileCoords
	rng    tileview.Range
}

type layerItem struct {
	entry      bufferpool.Entry
	rng        tileview.Range
	maskCoords coords.WorldTileCoords
	styleIndex uint32
}

// New constructs a Schedule. poolCaps sizes the buffer pool's four
// backing buffers (bufferpool.DefaultCapacities is a reasonable start).
func New(device hal.Device, queue hal.Queue, colorFormat gputypes.TextureFormat, channel *apc.Channel, repo *repository.Repository, sty *style.Style, view ViewProvider, urlFor URLFor, poolCaps bufferpool.Capacities) *Schedule {
	return &Schedule{
		device:      device,
		queue:       queue,
		colorFormat: colorFormat,
		channel:     channel,
		repo:        repo,
		sty:         sty,
		view:        view,
		urlFor:      urlFor,
		poolCaps:    poolCaps,
		pending:     make(map[coords.Quadkey]bool),
		log:         slog.New(nopHandler{}),
	}
}

// SetLogger configures the logger Schedule uses for per-frame diagnostics
// (Warn for a tile marked failed, Debug for a tile tessellated). Called by the
// root package's SetLogger to propagate a newly configured logger to an
// already-constructed Schedule (nil restores silent operation).
func (s *Schedule) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	s.log = l
}

// nopHandler discards every record; Schedule's default logger before
// SetLogger is ever called.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// RunFrame executes all six stages in order, rendering into surfaceView
// at the given dimensions.
func (s *Schedule) RunFrame(ctx context.Context, surfaceView hal.TextureView, w, h uint32) error {
	s.extract(ctx)
	if err := s.prepare(w, h); err != nil {
		return fmt.Errorf("render: prepare: %w", err)
	}
	s.queueStage()
	s.phaseSort()
	if err := s.renderStage(surfaceView); err != nil {
		return fmt.Errorf("render: render: %w", err)
	}
	s.cleanup()
	return nil
}

// extract drains the APC receive queue, folds each message into the
// repository, and issues fetch requests for visible tiles whose layer
// set is not yet satisfied or that are marked failed and still under the
// repository's retry limit (spec.md §4.8 stage 1, §4.4). Results of
// requests issued here are drained by the next extract call.
func (s *Schedule) extract(ctx context.Context) {
	tileLayerCount := make(map[coords.Quadkey]int)
	tileUnavailableCount := make(map[coords.Quadkey]int)
	wanted := len(s.sty.SourceLayerNames())

	for {
		msg, ok := s.channel.Receive()
		if !ok {
			break
		}
		switch m := msg.(type) {
		case apc.LayerTessellated:
			s.repo.PutTessellatedLayer(m.Coords, repository.StoredLayer{
				SourceLayer:    m.SourceLayer,
				Available:      true,
				Buffer:         m.Buffer,
				FeatureIndices: m.FeatureIndices,
				Index:          m.Index,
			})
			tileLayerCount[m.Coords.ToQuadkey()]++
		case apc.LayerUnavailable:
			s.repo.PutTessellatedLayer(m.Coords, repository.StoredLayer{SourceLayer: m.SourceLayer, Available: false})
			tileLayerCount[m.Coords.ToQuadkey()]++
			tileUnavailableCount[m.Coords.ToQuadkey()]++
		case apc.LayerIndexed:
			// Spatial index already attached via LayerTessellated in
			// this core's synchronous-indexing pipeline (see
			// FetchAndTessellate); LayerIndexed is accepted for
			// embedders that index asynchronously but requires no
			// repository action beyond what LayerTessellated already
			// did.
		case apc.TileTessellated:
			qk := m.Coords.ToQuadkey()
			if tileUnavailableCount[qk] > 0 && tileUnavailableCount[qk] >= wanted {
				s.repo.MarkFailed(m.Coords)
				s.log.Warn("tile fetch failed", "tile", m.Coords, "layers_wanted", wanted)
			} else {
				s.repo.MarkSuccess(m.Coords)
				s.log.Debug("tile tessellated", "tile", m.Coords)
			}
			delete(s.pending, qk)
		}
	}

	sourceLayers := s.sty.SourceLayerNames()
	for _, wc := range s.view.VisibleTiles() {
		c := wc.Wrapped()
		qk := c.ToQuadkey()
		if s.pending[qk] {
			continue
		}
		if status, _ := s.repo.Status(c); status != repository.StatusFailed && !s.repo.IsLayersMissing(c, sourceLayers) {
			continue
		}
		if !s.repo.NeedsFetching(c) {
			continue
		}
		s.repo.CreateTile(c)
		s.pending[qk] = true
		input := FetchInput{Coords: c, URL: s.urlFor(c), SourceLayers: sourceLayers}
		if err := apc.Call(s.channel, input, FetchAndTessellate); err != nil {
			delete(s.pending, qk)
		}
	}
}

// prepare lazily creates GPU resources that outlive a single frame: the
// depth/stencil attachment (resized on demand), the buffer pool, and the
// mask/layer pipelines (spec.md §4.8 stage 2). The tile-view instance
// buffer is created and grown by uploadTileInstances during queueStage.
func (s *Schedule) prepare(w, h uint32) error {
	if s.pool == nil {
		pool, err := bufferpool.New(s.device, s.queue, s.poolCaps)
		if err != nil {
			return fmt.Errorf("create buffer pool: %w", err)
		}
		s.pool = pool
	}
	if s.pipelines == nil {
		pipelines, err := stencil.Create(s.device, s.colorFormat)
		if err != nil {
			return fmt.Errorf("create pipelines: %w", err)
		}
		s.pipelines = pipelines
	}
	if s.depthTex == nil || s.depthW != w || s.depthH != h {
		if s.depthView != nil {
			s.device.DestroyTextureView(s.depthView)
		}
		if s.depthTex != nil {
			s.device.DestroyTexture(s.depthTex)
		}
		tex, err := s.device.CreateTexture(&hal.TextureDescriptor{
			Label:         "maptile_depth_stencil",
			Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        gputypes.TextureFormatDepth24PlusStencil8,
			Usage:         gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("create depth/stencil texture: %w", err)
		}
		view, err := s.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "maptile_depth_stencil_view"})
		if err != nil {
			s.device.DestroyTexture(tex)
			return fmt.Errorf("create depth/stencil view: %w", err)
		}
		s.depthTex, s.depthView, s.depthW, s.depthH = tex, view, w, h
	}
	return nil
}

// queueStage recomputes the tile-view pattern, uploads any newly
// available layers into the buffer pool, and emits this frame's mask
// and layer phase lists (spec.md §4.8 stage 3, §4.9).
func (s *Schedule) queueStage() {
	zoom := s.view.Zoom()
	view := s.view.VisibleTiles()

	s.pattern = tileview.Build(view, zoom, func(wc coords.WorldTileCoords) bool {
		return !s.repo.IsLayersMissing(wc.Wrapped(), s.sty.SourceLayerNames())
	})

	s.uploadTileInstances()

	for _, wc := range view {
		c := wc.Wrapped()
		for _, stored := range s.repo.IterTessellatedLayersAt(c) {
			if !stored.Available {
				continue
			}
			key := bufferpool.Key{Quadkey: uint64(c.ToQuadkey()), SourceLayer: stored.SourceLayer}
			if s.pool.Has(key) {
				continue
			}
			layers := s.sty.LayersFor(stored.SourceLayer)
			if len(layers) == 0 {
				continue
			}
			styleLayer := layers[0]
			s.uploadLayer(key, stored, styleLayer)
		}
	}

	s.maskItems = s.maskItems[:0]
	for _, shape := range s.pattern.Shapes {
		s.maskItems = append(s.maskItems, maskItem{coords: shape.Coords, rng: shape.BufferRange})
	}

	// A fallback draw uses the ancestor's geometry and transform (rng)
	// but the requesting tile's own stencil reference (maskCoords): the
	// mask pass already wrote that tile's small on-screen footprint, so
	// the oversized ancestor geometry is clipped to exactly that
	// footprint by the StencilOp::Equal test in the layer pass.
	s.layerItems = s.layerItems[:0]
	for _, shape := range s.pattern.Shapes {
		effective := shape.Coords
		rng := shape.BufferRange
		if !s.hasData(shape.Coords) && shape.HasFallback {
			effective = shape.FallbackCoords
			rng = shape.FallbackRange
		}
		qk := uint64(effective.Wrapped().ToQuadkey())
		for _, entry := range s.pool.Entries() {
			if entry.Key.Quadkey != qk {
				continue
			}
			layers := s.sty.LayersFor(entry.Key.SourceLayer)
			if len(layers) == 0 {
				continue
			}
			s.layerItems = append(s.layerItems, layerItem{entry: entry, rng: rng, maskCoords: shape.Coords, styleIndex: layers[0].Index})
		}
	}
}

func (s *Schedule) hasData(wc coords.WorldTileCoords) bool {
	return !s.repo.IsLayersMissing(wc.Wrapped(), s.sty.SourceLayerNames())
}

// uploadTileInstances (re)creates the tile-view instance buffer when it
// must grow and uploads this frame's packed instance array.
func (s *Schedule) uploadTileInstances() {
	need := uint64(len(s.pattern.Instances)) * tileInstanceSize
	if need == 0 {
		return
	}
	if s.tileInstanceBuf == nil || s.tileInstanceCap < need {
		if s.tileInstanceBuf != nil {
			s.device.DestroyBuffer(s.tileInstanceBuf)
		}
		cap := need * 2
		buf, err := s.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "maptile_tile_instances",
			Size:  cap,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			s.tileInstanceBuf = nil
			s.tileInstanceCap = 0
			return
		}
		s.tileInstanceBuf, s.tileInstanceCap = buf, cap
	}
	s.queue.WriteBuffer(s.tileInstanceBuf, 0, packInstances(s.pattern.Instances))
}

// uploadLayer builds the layer_meta and feature_meta payloads for one
// newly-available tessellated layer and hands them to the buffer pool
// (spec.md §4.9).
func (s *Schedule) uploadLayer(key bufferpool.Key, stored repository.StoredLayer, styleLayer style.Layer) {
	vertexBytes := packVertices(stored.Buffer.Vertices)
	indexBytes := packIndices(stored.Buffer.Indices)
	layerMetaBytes := packF32(float32(styleLayer.Index))

	color := style.Color{}
	if styleLayer.Paint.Color != nil {
		color = *styleLayer.Paint.Color
	}
	featureMetaBytes := packColor(color)

	if _, err := s.pool.Allocate(key, vertexBytes, indexBytes, layerMetaBytes, featureMetaBytes, stored.Buffer.UsableIndices); err != nil {
		// Allocation failure (oversize or pool exhausted) leaves the
		// layer un-uploaded; it is retried next frame once other
		// entries have been evicted (spec.md §4.5 "Failure").
		return
	}
}

// phaseSort orders layerItems ascending by style layer index; maskItems
// keep the tile-view pattern's insertion (quadkey) order (spec.md §4.8
// stage 4).
func (s *Schedule) phaseSort() {
	sort.SliceStable(s.layerItems, func(i, j int) bool {
		return s.layerItems[i].styleIndex < s.layerItems[j].styleIndex
	})
}

// cleanup clears frame-scoped phase lists and advances the frame
// counter (spec.md §4.8 stage 6; presenting the surface is the caller's
// responsibility once RunFrame returns, matching
// encodeSubmitSurface's contract).
func (s *Schedule) cleanup() {
	s.maskItems = nil
	s.layerItems = nil
	s.frame++
}

// Frame returns the number of frames rendered so far.
func (s *Schedule) Frame() uint64 { return s.frame }
