// Package stencil implements the stencil mask scheme (component C9): a
// reference-value rule that distinguishes every tile from its immediate
// neighbors and from adjacent zoom levels, plus the mask and layer GPU
// pipelines that write and test it.
//
// Pipeline construction is adapted from stencil_pipeline.go's
// createPipelines: same bind-group-layout/pipeline-layout/render-pipeline
// shape, generalized from gg's fill-rule stencil variants to maptile's
// mask-then-layer pair, with reverse-z depth (Greater-compare, cleared
// to 0.0) per SPEC_FULL.md's deliberate deviation from the teacher's
// regular (Always-compare-for-stencil-pass) depth handling.
package stencil

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/maptile/coords"
)

//go:embed shaders/mask.wgsl
var maskShaderSource string

//go:embed shaders/layer.wgsl
var layerShaderSource string

// Reference computes the per-tile stencil reference value (spec.md
// §4.7): four distinct values per zoom level, in a band of five per
// zoom, enough to separate a tile from each of its 2x2-grid neighbors
// and from adjacent zooms.
func Reference(c coords.WorldTileCoords) uint32 {
	return uint32(c.Z)*5 + parity(c.X, c.Y)
}

func parity(x, y int64) uint32 {
	xOdd, yOdd := x%2 != 0, y%2 != 0
	switch {
	case !xOdd && !yOdd:
		return 2
	case !xOdd && yOdd:
		return 1
	case xOdd && !yOdd:
		return 4
	default:
		return 3
	}
}

// vertexStride is the per-vertex byte stride for both pipelines:
// float32x2 position + float32x2 normal (tessellate.Vertex, packed).
const vertexStride = 16

// Pipelines holds the mask and layer render pipelines plus their shared
// bind group / pipeline layouts, built once during C10:Prepare's
// "eventually initialized" GPU resource setup.
type Pipelines struct {
	device hal.Device

	maskShader  hal.ShaderModule
	layerShader hal.ShaderModule

	bindGroupLayout hal.BindGroupLayout
	pipelineLayout  hal.PipelineLayout

	Mask  hal.RenderPipeline
	Layer hal.RenderPipeline
}

// Create compiles the mask/layer shaders and builds both render
// pipelines against colorFormat (the surface's format).
func Create(device hal.Device, colorFormat gputypes.TextureFormat) (*Pipelines, error) {
	p := &Pipelines{device: device}

	maskShader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "maptile_mask_shader",
		Source: hal.ShaderSource{WGSL: maskShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("stencil: compile mask shader: %w", err)
	}
	p.maskShader = maskShader

	layerShader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "maptile_layer_shader",
		Source: hal.ShaderSource{WGSL: layerShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("stencil: compile layer shader: %w", err)
	}
	p.layerShader = layerShader

	bindGroupLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "maptile_tile_instance_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				// layer.wgsl's LayerMeta (z_index); unused by mask.wgsl.
				Binding:    1,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				// layer.wgsl's FeatureStyle (color); unused by mask.wgsl.
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("stencil: create bind group layout: %w", err)
	}
	p.bindGroupLayout = bindGroupLayout

	pipelineLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "maptile_tile_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindGroupLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("stencil: create pipeline layout: %w", err)
	}
	p.pipelineLayout = pipelineLayout

	vertexBufferLayout := []gputypes.VertexBufferLayout{
		{
			ArrayStride: vertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
			},
		},
	}
	primitive := gputypes.PrimitiveState{
		Topology: gputypes.PrimitiveTopologyTriangleList,
		CullMode: gputypes.CullModeNone,
	}

	mask, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "maptile_mask_pipeline",
		Layout: p.pipelineLayout,
		Vertex: hal.VertexState{Module: maskShader, EntryPoint: "vs_main", Buffers: vertexBufferLayout},
		Fragment: &hal.FragmentState{
			Module:     maskShader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: colorFormat, WriteMask: gputypes.ColorWriteMaskNone},
			},
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            gputypes.TextureFormatDepth24PlusStencil8,
			DepthWriteEnabled: false,
			DepthCompare:      gputypes.CompareFunctionGreater,
			StencilFront: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationReplace,
			},
			StencilBack: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationReplace,
			},
			StencilReadMask:  0xFF,
			StencilWriteMask: 0xFF,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Primitive:   primitive,
	})
	if err != nil {
		return nil, fmt.Errorf("stencil: create mask pipeline: %w", err)
	}
	p.Mask = mask

	layer, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "maptile_layer_pipeline",
		Layout: p.pipelineLayout,
		Vertex: hal.VertexState{Module: layerShader, EntryPoint: "vs_main", Buffers: vertexBufferLayout},
		Fragment: &hal.FragmentState{
			Module:     layerShader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: colorFormat, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            gputypes.TextureFormatDepth24PlusStencil8,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionGreater,
			StencilFront: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionEqual,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilBack: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionEqual,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilReadMask:  0xFF,
			StencilWriteMask: 0xFF,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Primitive:   primitive,
	})
	if err != nil {
		return nil, fmt.Errorf("stencil: create layer pipeline: %w", err)
	}
	p.Layer = layer

	return p, nil
}

// BindGroupLayout exposes the shared bind group layout so the render
// schedule can build per-tile bind groups against it.
func (p *Pipelines) BindGroupLayout() hal.BindGroupLayout { return p.bindGroupLayout }
