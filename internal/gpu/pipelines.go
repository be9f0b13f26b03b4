package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/life"
	"github.com/gogpu/life/shader"
	"github.com/gogpu/wgpu/hal"
)

// Binding indices of the shared bind group layout.
const (
	BindingGrid       = 0
	BindingStateRead  = 1
	BindingStateWrite = 2
)

// CellBindings returns the entries of the layout shared by the render and
// compute pipelines: the grid uniform, the state being read and the state
// being written.
func CellBindings() []gputypes.BindGroupLayoutEntry {
	return []gputypes.BindGroupLayoutEntry{
		{
			Binding:    BindingGrid,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment | gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
		{
			Binding:    BindingStateRead,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		},
		{
			Binding:    BindingStateWrite,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		},
	}
}

// CellVertexLayout describes the tile template: one float32x2 position at
// location 0, stepped per vertex.
func CellVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: life.VertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		},
	}
}

// CompileShader creates a shader module from src. Failures are reported as
// *life.ShaderCompileError.
func CompileShader(device hal.Device, src shader.Source) (hal.ShaderModule, error) {
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  src.Name,
		Source: hal.ShaderSource{WGSL: src.Code},
	})
	if err != nil {
		return nil, &life.ShaderCompileError{Name: src.Name, Stage: src.Stage, Err: err}
	}
	return module, nil
}

// BuildBindGroupLayout creates a bind group layout from entries.
func BuildBindGroupLayout(device hal.Device, label string, entries []gputypes.BindGroupLayoutEntry) (hal.BindGroupLayout, error) {
	layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group layout %q: %w", label, err)
	}
	return layout, nil
}

// BuildRenderPipeline creates the tile pipeline drawing into format.
func BuildRenderPipeline(device hal.Device, vs, fs hal.ShaderModule, format gputypes.TextureFormat, layout hal.PipelineLayout) (hal.RenderPipeline, error) {
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "Cell pipeline",
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: shader.VertexEntryPoint,
			Buffers:    CellVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     fs,
			EntryPoint: shader.FragmentEntryPoint,
			Targets: []gputypes.ColorTargetState{
				{Format: format, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create render pipeline: %w: %w", life.ErrLayoutMismatch, err)
	}
	return pipeline, nil
}

// BuildComputePipeline creates the simulation pipeline.
func BuildComputePipeline(device hal.Device, cs hal.ShaderModule, layout hal.PipelineLayout) (hal.ComputePipeline, error) {
	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "Simulation pipeline",
		Layout:  layout,
		Compute: hal.ComputeState{Module: cs, EntryPoint: shader.ComputeEntryPoint},
	})
	if err != nil {
		return nil, fmt.Errorf("create compute pipeline: %w: %w", life.ErrLayoutMismatch, err)
	}
	return pipeline, nil
}

// Pipelines holds the render and compute pipelines and the layout they
// share.
type Pipelines struct {
	BindGroupLayout hal.BindGroupLayout
	Layout          hal.PipelineLayout
	Render          hal.RenderPipeline
	Compute         hal.ComputePipeline

	modules []hal.ShaderModule
}

// BuildPipelines compiles prog and creates both pipelines over one shared
// layout. On failure every object created so far is destroyed.
func BuildPipelines(device hal.Device, prog shader.Program, format gputypes.TextureFormat) (p *Pipelines, err error) {
	p = &Pipelines{}
	defer func() {
		if err != nil {
			p.Destroy(device)
			p = nil
		}
	}()

	var vs, fs, cs hal.ShaderModule
	for _, c := range []struct {
		dst *hal.ShaderModule
		src shader.Source
	}{{&vs, prog.Vertex}, {&fs, prog.Fragment}, {&cs, prog.Compute}} {
		m, err := CompileShader(device, c.src)
		if err != nil {
			return p, err
		}
		*c.dst = m
		p.modules = append(p.modules, m)
	}

	if p.BindGroupLayout, err = BuildBindGroupLayout(device, "Cell Bind Group Layout", CellBindings()); err != nil {
		return p, err
	}
	p.Layout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "Cell Pipeline Layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.BindGroupLayout},
	})
	if err != nil {
		return p, fmt.Errorf("create pipeline layout: %w", err)
	}
	if p.Render, err = BuildRenderPipeline(device, vs, fs, format, p.Layout); err != nil {
		return p, err
	}
	if p.Compute, err = BuildComputePipeline(device, cs, p.Layout); err != nil {
		return p, err
	}
	slogger().Info("gpu: pipelines built", "format", format,
		"vertex", prog.Vertex.Name, "fragment", prog.Fragment.Name, "compute", prog.Compute.Name)
	return p, nil
}

// Destroy releases every object of p. Nil fields are skipped.
func (p *Pipelines) Destroy(device hal.Device) {
	if p.Compute != nil {
		device.DestroyComputePipeline(p.Compute)
		p.Compute = nil
	}
	if p.Render != nil {
		device.DestroyRenderPipeline(p.Render)
		p.Render = nil
	}
	if p.Layout != nil {
		device.DestroyPipelineLayout(p.Layout)
		p.Layout = nil
	}
	if p.BindGroupLayout != nil {
		device.DestroyBindGroupLayout(p.BindGroupLayout)
		p.BindGroupLayout = nil
	}
	for _, m := range p.modules {
		device.DestroyShaderModule(m)
	}
	p.modules = nil
}
