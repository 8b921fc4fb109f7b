package render

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/maptile/stencil"
	"github.com/gogpu/maptile/style"
	"github.com/gogpu/maptile/tessellate"
	"github.com/gogpu/maptile/tileview"
)

// maskQuadVertices is the static unit-tile quad (two triangles over
// [0, coords.Extent]^2) the mask pass draws for every tile-in-view;
// its vertex Normal field is unused by mask.wgsl.
func maskQuadVertices(extent float32) []tessellate.Vertex {
	return []tessellate.Vertex{
		{Position: [2]float32{0, 0}},
		{Position: [2]float32{extent, 0}},
		{Position: [2]float32{extent, extent}},
		{Position: [2]float32{0, 0}},
		{Position: [2]float32{extent, extent}},
		{Position: [2]float32{0, extent}},
	}
}

// ensureMaskQuad lazily creates the static mask quad vertex buffer.
func (s *Schedule) ensureMaskQuad() error {
	if s.maskQuadBuf != nil {
		return nil
	}
	data := packVertices(maskQuadVertices(4096))
	buf, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "maptile_mask_quad",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create mask quad buffer: %w", err)
	}
	s.queue.WriteBuffer(buf, 0, data)
	s.maskQuadBuf = buf
	return nil
}

// frameBindGroups accumulates the per-draw bind groups created this
// frame so renderStage can release them once the command buffer has
// been submitted, mirroring GPURenderSession's frame-resource lifecycle.
type frameBindGroups struct {
	device hal.Device
	groups []hal.BindGroup
}

func (f *frameBindGroups) destroy() {
	for _, bg := range f.groups {
		f.device.DestroyBindGroup(bg)
	}
}

// buildTileBindGroup creates a bind group for the mask pass: binding 0
// references the tile-view instance buffer at rng; bindings 1 and 2 are
// required by the shared bind group layout but unused by mask.wgsl, so
// they are satisfied by a small zeroed dummy uniform buffer.
func (s *Schedule) buildTileBindGroup(frame *frameBindGroups, rng tileview.Range) (hal.BindGroup, error) {
	dummy, err := s.dummyUniformBuffer()
	if err != nil {
		return nil, err
	}
	bg, err := s.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "maptile_mask_bind",
		Layout: s.pipelines.BindGroupLayout(),
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: s.tileInstanceBuf.NativeHandle(), Offset: rng.Start, Size: tileInstanceSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: dummy.NativeHandle(), Offset: 0, Size: layerMetaSize}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: dummy.NativeHandle(), Offset: 0, Size: featureStyleSize}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create mask bind group: %w", err)
	}
	frame.groups = append(frame.groups, bg)
	return bg, nil
}

// buildLayerBindGroup creates a bind group for one layer draw: binding 0
// the tile-view instance, binding 1 the entry's layer_meta record,
// binding 2 its feature_meta (style color) record.
func (s *Schedule) buildLayerBindGroup(frame *frameBindGroups, item layerItem) (hal.BindGroup, error) {
	bg, err := s.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "maptile_layer_bind",
		Layout: s.pipelines.BindGroupLayout(),
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: s.tileInstanceBuf.NativeHandle(), Offset: item.rng.Start, Size: tileInstanceSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: s.pool.LayerMetaBuffer().NativeHandle(), Offset: item.entry.LayerMeta.Start, Size: layerMetaSize}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: s.pool.FeatureMetaBuffer().NativeHandle(), Offset: item.entry.FeatureMeta.Start, Size: featureStyleSize}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create layer bind group: %w", err)
	}
	frame.groups = append(frame.groups, bg)
	return bg, nil
}

// dummyUniformBuffer lazily creates a zeroed buffer large enough to
// satisfy the mask pass's unused bind group entries.
func (s *Schedule) dummyUniformBuffer() (hal.Buffer, error) {
	if s.dummyUniformBuf != nil {
		return s.dummyUniformBuf, nil
	}
	buf, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "maptile_dummy_uniform",
		Size:  featureStyleSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create dummy uniform buffer: %w", err)
	}
	s.queue.WriteBuffer(buf, 0, make([]byte, featureStyleSize))
	s.dummyUniformBuf = buf
	return buf, nil
}

// renderStage records and submits the frame's single command buffer
// (spec.md §4.8 stage 5): mask pass for every tile-in-view, then layer
// pass for every sorted LayerItem, sharing one depth/stencil attachment
// cleared to (depth=0, stencil=0) for the reverse-z convention.
func (s *Schedule) renderStage(surfaceView hal.TextureView) error {
	if err := s.ensureMaskQuad(); err != nil {
		return err
	}

	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "maptile_frame_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("maptile_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "maptile_frame_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       surfaceView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              s.depthView,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpStore,
			DepthClearValue:   0.0, // reverse-z: near = 1.0, far = 0.0
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpStore,
			StencilClearValue: 0,
		},
	})

	frame := &frameBindGroups{device: s.device}
	defer frame.destroy()

	rp.SetPipeline(s.pipelines.Mask)
	for _, item := range s.maskItems {
		bg, err := s.buildTileBindGroup(frame, item.rng)
		if err != nil {
			continue
		}
		rp.SetBindGroup(0, bg, nil)
		rp.SetStencilReference(stencil.Reference(item.coords))
		rp.SetVertexBuffer(0, s.maskQuadBuf, 0)
		rp.Draw(6, 1, 0, 0)
	}

	rp.SetPipeline(s.pipelines.Layer)
	for _, item := range s.layerItems {
		bg, err := s.buildLayerBindGroup(frame, item)
		if err != nil {
			continue
		}
		rp.SetBindGroup(0, bg, nil)
		rp.SetStencilReference(stencil.Reference(item.maskCoords))
		rp.SetVertexBuffer(0, s.pool.VertexBuffer(), item.entry.Vertices.Start)
		rp.SetIndexBuffer(s.pool.IndexBuffer(), gputypes.IndexFormatUint32, item.entry.Indices.Start)
		rp.DrawIndexed(item.entry.UsableIndices, 1, 0, 0, 0)
	}

	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer s.device.FreeCommandBuffer(cmdBuf)

	fence, err := s.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer s.device.DestroyFence(fence)

	if err := s.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := s.device.Wait(fence, 1, submitTimeout)
	if err != nil || !ok {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", ok, err)
	}
	return nil
}

func packInstances(instances []tileview.PerTileInstance) []byte {
	out := make([]byte, 0, len(instances)*tileInstanceSize)
	for _, inst := range instances {
		for _, f := range inst.Transform {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(inst.ZoomFactor))
		// Three zero words for PerTileInstance's unexported padding.
		for i := 0; i < 3; i++ {
			out = binary.LittleEndian.AppendUint32(out, 0)
		}
	}
	return out
}

func packVertices(vs []tessellate.Vertex) []byte {
	out := make([]byte, 0, len(vs)*16)
	for _, v := range vs {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v.Position[0]))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v.Position[1]))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v.Normal[0]))
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v.Normal[1]))
	}
	return out
}

func packIndices(idx []uint32) []byte {
	out := make([]byte, 0, len(idx)*4)
	for _, v := range idx {
		out = binary.LittleEndian.AppendUint32(out, v)
	}
	return out
}

func packF32(v float32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, math.Float32bits(v))
	return out
}

func packColor(c style.Color) []byte {
	out := make([]byte, 0, 16)
	for _, v := range c {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}
