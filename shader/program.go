// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package shader

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/gogpu/life"
)

// Entry points every cell shader must declare.
const (
	VertexEntryPoint   = "vertexMain"
	FragmentEntryPoint = "fragmentMain"
	ComputeEntryPoint  = "computeMain"
)

// Names identifies the three shaders of the cell pipelines.
type Names struct {
	Vertex   string
	Fragment string
	Compute  string
}

// DefaultNames are the names of the embedded shaders.
var DefaultNames = Names{
	Vertex:   "cell_vertex",
	Fragment: "cell_fragment",
	Compute:  "cell_compute",
}

// Source is one shader's WGSL text tagged with its name and stage.
type Source struct {
	Name  string
	Stage life.ShaderStage
	Code  string
}

// Program is the full set of sources used by the render and compute
// pipelines.
type Program struct {
	Vertex   Source
	Fragment Source
	Compute  Source
}

// Sources returns the program's sources in vertex, fragment, compute order.
func (p Program) Sources() []Source {
	return []Source{p.Vertex, p.Fragment, p.Compute}
}

// Load fetches the three shaders. The first failure aborts the load; fetch
// errors are never retried.
func Load(ctx context.Context, f Fetcher, names Names) (Program, error) {
	var p Program
	targets := []struct {
		dst   *Source
		name  string
		stage life.ShaderStage
	}{
		{&p.Vertex, names.Vertex, life.StageVertex},
		{&p.Fragment, names.Fragment, life.StageFragment},
		{&p.Compute, names.Compute, life.StageCompute},
	}
	for _, t := range targets {
		code, err := f.Fetch(ctx, t.name)
		if err != nil {
			return Program{}, fmt.Errorf("load %s shader: %w", t.stage, err)
		}
		*t.dst = Source{Name: t.name, Stage: t.stage, Code: code}
	}
	life.Logger().Info("shaders loaded",
		"vertex", names.Vertex, "fragment", names.Fragment, "compute", names.Compute)
	return p, nil
}

var workgroupSizeRe = regexp.MustCompile(`@workgroup_size\(\s*(\d+)u?\s*(?:,\s*(\d+)u?\s*)?`)

// WorkgroupSize returns the x and y extents of the first @workgroup_size
// attribute in code. A one-dimensional attribute reports y = 1.
func WorkgroupSize(code string) (x, y uint32, ok bool) {
	m := workgroupSizeRe.FindStringSubmatch(code)
	if m == nil {
		return 0, 0, false
	}
	xv, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, 0, false
	}
	yv := uint64(1)
	if m[2] != "" {
		if yv, err = strconv.ParseUint(m[2], 10, 32); err != nil {
			return 0, 0, false
		}
	}
	return uint32(xv), uint32(yv), true
}

// CheckWorkgroupSize verifies that the compute shader declares a square
// n x n workgroup, the shape the scheduler dispatches against.
func (p Program) CheckWorkgroupSize(n uint32) error {
	x, y, ok := WorkgroupSize(p.Compute.Code)
	if !ok {
		return fmt.Errorf("%w: compute shader %q declares no @workgroup_size",
			life.ErrLayoutMismatch, p.Compute.Name)
	}
	if x != n || y != n {
		return fmt.Errorf("%w: compute shader %q has workgroup %dx%d, configured %dx%d",
			life.ErrLayoutMismatch, p.Compute.Name, x, y, n, n)
	}
	return nil
}
