package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/life"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// traceBuffer gives a noop buffer a distinct native handle so bind group
// entries can be matched to the buffer they reference.
type traceBuffer struct {
	*noop.Buffer
	handle uintptr
	label  string
}

func (b *traceBuffer) NativeHandle() uintptr { return b.handle }

// unwrap returns the noop buffer behind buf.
func unwrap(buf hal.Buffer) hal.Buffer {
	if tb, ok := buf.(*traceBuffer); ok {
		return tb.Buffer
	}
	return buf
}

// traceBindGroup is a bind group with a stable identity. Noop bind groups
// are zero-size and cannot be told apart.
type traceBindGroup struct {
	noop.Resource
	label string
}

// passCall is one command recorded inside a compute or render pass.
type passCall struct {
	pass  string
	op    string
	group hal.BindGroup
	args  [4]uint32
}

// traceDevice wraps the noop device and records what it is handed.
type traceDevice struct {
	hal.Device

	nextHandle uintptr
	buffers    []*traceBuffer
	destroyed  int
	bindGroups []*hal.BindGroupDescriptor
	calls      []passCall
	discards   int

	failEndEncoding error
}

func (d *traceDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	buf, err := d.Device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	d.nextHandle++
	tb := &traceBuffer{Buffer: buf.(*noop.Buffer), handle: d.nextHandle, label: desc.Label}
	d.buffers = append(d.buffers, tb)
	return tb, nil
}

func (d *traceDevice) DestroyBuffer(buf hal.Buffer) {
	d.destroyed++
	d.Device.DestroyBuffer(unwrap(buf))
}

func (d *traceDevice) MapBuffer(buf hal.Buffer, offset, size uint64) (hal.BufferMapping, error) {
	return d.Device.MapBuffer(unwrap(buf), offset, size)
}

func (d *traceDevice) UnmapBuffer(buf hal.Buffer) error {
	return d.Device.UnmapBuffer(unwrap(buf))
}

func (d *traceDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.bindGroups = append(d.bindGroups, desc)
	return &traceBindGroup{label: desc.Label}, nil
}

func (d *traceDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &traceEncoder{CommandEncoder: enc, dev: d}, nil
}

func (d *traceDevice) record(c passCall) { d.calls = append(d.calls, c) }

type traceEncoder struct {
	hal.CommandEncoder
	dev *traceDevice
}

func (e *traceEncoder) BeginComputePass(desc *hal.ComputePassDescriptor) hal.ComputePassEncoder {
	e.dev.record(passCall{pass: "compute", op: "begin"})
	return &traceComputePass{ComputePassEncoder: e.CommandEncoder.BeginComputePass(desc), dev: e.dev}
}

func (e *traceEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	e.dev.record(passCall{pass: "render", op: "begin"})
	return &traceRenderPass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc), dev: e.dev}
}

func (e *traceEncoder) EndEncoding() (hal.CommandBuffer, error) {
	if e.dev.failEndEncoding != nil {
		return nil, e.dev.failEndEncoding
	}
	return e.CommandEncoder.EndEncoding()
}

func (e *traceEncoder) DiscardEncoding() {
	e.dev.discards++
	e.CommandEncoder.DiscardEncoding()
}

type traceComputePass struct {
	hal.ComputePassEncoder
	dev *traceDevice
}

func (p *traceComputePass) SetBindGroup(index uint32, group hal.BindGroup, offsets []uint32) {
	p.dev.record(passCall{pass: "compute", op: "bind", group: group, args: [4]uint32{index}})
	p.ComputePassEncoder.SetBindGroup(index, group, offsets)
}

func (p *traceComputePass) Dispatch(x, y, z uint32) {
	p.dev.record(passCall{pass: "compute", op: "dispatch", args: [4]uint32{x, y, z}})
	p.ComputePassEncoder.Dispatch(x, y, z)
}

func (p *traceComputePass) End() {
	p.dev.record(passCall{pass: "compute", op: "end"})
	p.ComputePassEncoder.End()
}

type traceRenderPass struct {
	hal.RenderPassEncoder
	dev *traceDevice
}

func (p *traceRenderPass) SetBindGroup(index uint32, group hal.BindGroup, offsets []uint32) {
	p.dev.record(passCall{pass: "render", op: "bind", group: group, args: [4]uint32{index}})
	p.RenderPassEncoder.SetBindGroup(index, group, offsets)
}

func (p *traceRenderPass) Draw(vertices, instances, firstVertex, firstInstance uint32) {
	p.dev.record(passCall{pass: "render", op: "draw", args: [4]uint32{vertices, instances, firstVertex, firstInstance}})
	p.RenderPassEncoder.Draw(vertices, instances, firstVertex, firstInstance)
}

func (p *traceRenderPass) End() {
	p.dev.record(passCall{pass: "render", op: "end"})
	p.RenderPassEncoder.End()
}

// traceQueue records buffer writes and can be told to fail them.
type traceQueue struct {
	hal.Queue
	writes    []hal.Buffer
	failWrite error
}

func (q *traceQueue) WriteBuffer(buf hal.Buffer, offset uint64, data []byte) error {
	if q.failWrite != nil {
		return q.failWrite
	}
	q.writes = append(q.writes, buf)
	return q.Queue.WriteBuffer(unwrap(buf), offset, data)
}

// acquireTraced returns a noop device whose hal device and queue record
// every call the package makes.
func acquireTraced(t *testing.T) (*Device, *traceDevice, *traceQueue) {
	t.Helper()
	dev := acquireNoop(t, NewOffscreenSurface(64, 64))
	td := &traceDevice{Device: dev.Device}
	tq := &traceQueue{Queue: dev.Queue}
	dev.Device, dev.Queue = td, tq
	return dev, td, tq
}

func newTracedSimulation(t *testing.T, opts ...life.Option) (*Simulation, *traceDevice, *traceQueue) {
	t.Helper()
	cfg, err := life.NewConfig(opts...)
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	dev, td, tq := acquireTraced(t)
	sim, err := NewSimulation(dev, cfg, loadProgram(t))
	if err != nil {
		t.Fatalf("NewSimulation failed: %v", err)
	}
	t.Cleanup(sim.Close)
	return sim, td, tq
}

// boundBuffers returns the buffer handle bound at each binding of desc.
func boundBuffers(t *testing.T, desc *hal.BindGroupDescriptor) map[uint32]gputypes.BufferBinding {
	t.Helper()
	got := make(map[uint32]gputypes.BufferBinding, len(desc.Entries))
	for _, e := range desc.Entries {
		bb, ok := e.Resource.(gputypes.BufferBinding)
		if !ok {
			t.Fatalf("%s: binding %d is %T, want BufferBinding", desc.Label, e.Binding, e.Resource)
		}
		got[e.Binding] = bb
	}
	return got
}

func TestBindGroupPairBindsOppositeSlots(t *testing.T) {
	dev, td, _ := acquireTraced(t)
	m := NewBufferManager(dev.Device, dev.Queue)
	defer m.Release()

	dims := life.GridDimensions{Width: 22, Height: 22}
	uniform, err := m.CreateUniformBuffer(dims)
	if err != nil {
		t.Fatalf("CreateUniformBuffer: %v", err)
	}
	state := make(life.CellState, dims.Cells())
	arena, err := m.CreateStateArena(state, state)
	if err != nil {
		t.Fatalf("CreateStateArena: %v", err)
	}
	layout, err := dev.Device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: "test_layout"})
	if err != nil {
		t.Fatalf("CreateBindGroupLayout: %v", err)
	}
	pair, err := BuildBindGroupPair(dev.Device, layout, uniform, arena)
	if err != nil {
		t.Fatalf("BuildBindGroupPair: %v", err)
	}
	defer pair.Destroy(dev.Device)

	if len(td.bindGroups) != 2 {
		t.Fatalf("CreateBindGroup called %d times, want 2", len(td.bindGroups))
	}
	u, a, b := uniform.NativeHandle(), arena.Slot(0).NativeHandle(), arena.Slot(1).NativeHandle()
	if a == b || a == 0 || b == 0 {
		t.Fatalf("state handles %d and %d are not distinct", a, b)
	}
	want := [2][3]uintptr{
		{u, a, b}, // variant 0 reads A, writes B
		{u, b, a}, // variant 1 reads B, writes A
	}
	for v, desc := range td.bindGroups {
		got := boundBuffers(t, desc)
		if len(got) != 3 {
			t.Fatalf("variant %d has %d entries, want 3", v, len(got))
		}
		for i, binding := range []uint32{BindingGrid, BindingStateRead, BindingStateWrite} {
			if got[binding].Buffer != want[v][i] {
				t.Errorf("variant %d binding %d = buffer %d, want %d", v, binding, got[binding].Buffer, want[v][i])
			}
		}
		if got[BindingGrid].Size != life.UniformSize {
			t.Errorf("variant %d uniform size = %d, want %d", v, got[BindingGrid].Size, life.UniformSize)
		}
		if got[BindingStateRead].Size != arena.Size || got[BindingStateWrite].Size != arena.Size {
			t.Errorf("variant %d state sizes = %d/%d, want %d",
				v, got[BindingStateRead].Size, got[BindingStateWrite].Size, arena.Size)
		}
	}
}

func TestTickRecordsComputeBeforeRender(t *testing.T) {
	sim, td, _ := newTracedSimulation(t)
	g0, g1 := sim.groups.Group(0), sim.groups.Group(1)
	if g0 == g1 {
		t.Fatal("bind group variants share one object")
	}

	frame := func(compute, render hal.BindGroup) []passCall {
		return []passCall{
			{pass: "compute", op: "begin"},
			{pass: "compute", op: "bind", group: compute},
			{pass: "compute", op: "dispatch", args: [4]uint32{3, 3, 1}},
			{pass: "compute", op: "end"},
			{pass: "render", op: "begin"},
			{pass: "render", op: "bind", group: render},
			{pass: "render", op: "draw", args: [4]uint32{6, 484, 0, 0}},
			{pass: "render", op: "end"},
		}
	}
	tests := []struct {
		name            string
		pause           bool
		compute, render hal.BindGroup
		stepAfter       uint64
	}{
		{"running step 0", false, g0, g1, 1},
		{"running step 1", false, g1, g0, 2},
		{"paused step 2", true, g0, g0, 2},
	}
	for _, tt := range tests {
		if tt.pause && sim.State() == Running {
			sim.Toggle()
		}
		td.calls = nil
		if err := sim.Tick(); err != nil {
			t.Fatalf("%s: Tick: %v", tt.name, err)
		}
		want := frame(tt.compute, tt.render)
		if len(td.calls) != len(want) {
			t.Fatalf("%s: recorded %d calls, want %d: %+v", tt.name, len(td.calls), len(want), td.calls)
		}
		for i := range want {
			if td.calls[i] != want[i] {
				t.Errorf("%s: call %d = %+v, want %+v", tt.name, i, td.calls[i], want[i])
			}
		}
		if sim.Step() != tt.stepAfter {
			t.Errorf("%s: step = %d, want %d", tt.name, sim.Step(), tt.stepAfter)
		}
	}
}

func TestRestartRewritesBothSlots(t *testing.T) {
	sim, td, tq := newTracedSimulation(t)
	if err := sim.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	groups := len(td.bindGroups)
	tq.writes = nil

	if err := sim.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if len(tq.writes) != 2 || tq.writes[0] != sim.arena.Slot(0) || tq.writes[1] != sim.arena.Slot(1) {
		t.Errorf("Restart wrote %v, want slots A then B", tq.writes)
	}
	if len(td.bindGroups) != groups {
		t.Errorf("Restart created %d bind groups", len(td.bindGroups)-groups)
	}
	if sim.Step() != 1 {
		t.Errorf("step = %d after Restart, want 1", sim.Step())
	}
}

func TestRestartReportsWriteFailure(t *testing.T) {
	sim, _, tq := newTracedSimulation(t)
	tq.failWrite = errors.New("device lost")
	if err := sim.Restart(); !errors.Is(err, tq.failWrite) {
		t.Errorf("Restart err = %v, want %v", err, tq.failWrite)
	}
}

func TestNewSimulationReportsWriteFailure(t *testing.T) {
	dev, td, tq := acquireTraced(t)
	tq.failWrite = errors.New("device lost")
	_, err := NewSimulation(dev, life.DefaultConfig(), loadProgram(t))
	if !errors.Is(err, tq.failWrite) {
		t.Fatalf("err = %v, want %v", err, tq.failWrite)
	}
	if len(td.buffers) != 1 || td.destroyed != 1 {
		t.Errorf("created %d buffers, destroyed %d, want 1 and 1", len(td.buffers), td.destroyed)
	}
}

func TestFailedEncodingIsDiscarded(t *testing.T) {
	sim, td, _ := newTracedSimulation(t)
	td.failEndEncoding = errors.New("out of memory")

	if err := sim.Tick(); !errors.Is(err, td.failEndEncoding) {
		t.Errorf("Tick err = %v, want %v", err, td.failEndEncoding)
	}
	if sim.Step() != 0 {
		t.Errorf("failed tick advanced step to %d", sim.Step())
	}
	if _, err := sim.ReadCells(0); !errors.Is(err, td.failEndEncoding) {
		t.Errorf("ReadCells err = %v, want %v", err, td.failEndEncoding)
	}
	if td.discards != 2 {
		t.Errorf("DiscardEncoding called %d times, want 2", td.discards)
	}
}

func TestNewSimulationOverBudgetCreatesNothing(t *testing.T) {
	dev, td, _ := acquireTraced(t)
	cfg := life.DefaultConfig()
	cfg.Grid = life.GridDimensions{Width: 2048, Height: 2048}
	cfg.MemoryBudget = 16 << 20

	if _, err := NewSimulation(dev, cfg, loadProgram(t)); !errors.Is(err, life.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	if len(td.buffers) != 0 || len(td.bindGroups) != 0 {
		t.Errorf("rejected config created %d buffers and %d bind groups", len(td.buffers), len(td.bindGroups))
	}
}

func TestNewSimulationUsesConfiguredBudget(t *testing.T) {
	sim, _, _ := newTracedSimulation(t, life.WithGrid(1500, 1500))
	stats := sim.MemoryStats()
	if stats.BudgetBytes != life.DefaultMemoryBudget {
		t.Errorf("BudgetBytes = %d, want %d", stats.BudgetBytes, life.DefaultMemoryBudget)
	}
	if stats.UsedBytes != sim.Config().RequiredMemory() {
		t.Errorf("UsedBytes = %d, want %d", stats.UsedBytes, sim.Config().RequiredMemory())
	}
}
