package gpu

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/life"
	"github.com/gogpu/life/shader"
	"github.com/gogpu/wgpu/hal"
)

// Simulation wires the buffers, pipelines, bind groups and scheduler of one
// Game of Life instance on an acquired device.
//
// The device is borrowed: Close releases the simulation's objects but not
// the device or its surface.
type Simulation struct {
	dev *Device
	cfg life.Config

	buffers   *BufferManager
	arena     *StateArena
	uniform   hal.Buffer
	vertices  hal.Buffer
	pipelines *Pipelines
	groups    *BindGroupPair
	sched     *Scheduler

	closeOnce sync.Once
}

// NewSimulation validates cfg against prog and builds every device object:
// buffers, then the shared layout and pipelines, then the bind group pair,
// then the scheduler. Configuration errors are returned before any GPU
// resource exists.
func NewSimulation(dev *Device, cfg life.Config, prog shader.Program) (sim *Simulation, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := prog.CheckWorkgroupSize(cfg.WorkgroupSize); err != nil {
		return nil, err
	}
	if dev == nil || dev.Device == nil {
		return nil, life.ErrNoDevice
	}
	if dev.Surface == nil {
		return nil, life.ErrSurfaceNotFound
	}
	a, b, err := cfg.SeedStates()
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		dev:     dev,
		cfg:     cfg,
		buffers: NewBufferManager(dev.Device, dev.Queue),
	}
	s.buffers.SetBudget(cfg.MemoryBudget)
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	if s.uniform, err = s.buffers.CreateUniformBuffer(cfg.Grid); err != nil {
		return nil, err
	}
	if s.vertices, err = s.buffers.CreateVertexBuffer(cfg.Geometry); err != nil {
		return nil, err
	}
	if s.arena, err = s.buffers.CreateStateArena(a, b); err != nil {
		return nil, err
	}
	if s.pipelines, err = BuildPipelines(dev.Device, prog, dev.Format); err != nil {
		return nil, err
	}
	if s.groups, err = BuildBindGroupPair(dev.Device, s.pipelines.BindGroupLayout, s.uniform, s.arena); err != nil {
		return nil, err
	}
	s.sched = NewScheduler(dev, Resources{
		Buffers:   s.buffers,
		Arena:     s.arena,
		Uniform:   s.uniform,
		Vertices:  s.vertices,
		Pipelines: s.pipelines,
		Groups:    s.groups,
	}, cfg)

	wx, wy := cfg.Workgroups()
	slogger().Info("gpu: simulation ready",
		"grid", cfg.Grid.String(), "workgroups_x", wx, "workgroups_y", wy,
		"state", s.sched.State(), "alive", a.AliveCount())
	return s, nil
}

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() life.Config { return s.cfg }

// Scheduler returns the frame scheduler.
func (s *Simulation) Scheduler() *Scheduler { return s.sched }

// SetObserver installs an observer of scheduler events.
func (s *Simulation) SetObserver(o Observer) { s.sched.SetObserver(o) }

// Tick runs one frame.
func (s *Simulation) Tick() error { return s.sched.Tick() }

// Run ticks periodically until ctx is done.
func (s *Simulation) Run(ctx context.Context) error { return s.sched.Run(ctx) }

// RunFunc ticks periodically, calling after once per successful tick.
func (s *Simulation) RunFunc(ctx context.Context, after func(FramePlan) error) error {
	return s.sched.RunFunc(ctx, after)
}

// Toggle flips the run state.
func (s *Simulation) Toggle() RunState { return s.sched.Toggle() }

// Restart reseeds both state buffers in place.
func (s *Simulation) Restart() error { return s.sched.Restart() }

// Step returns the step counter.
func (s *Simulation) Step() uint64 { return s.sched.Step() }

// State returns the run state.
func (s *Simulation) State() RunState { return s.sched.State() }

// MemoryStats returns the buffer memory usage.
func (s *Simulation) MemoryStats() MemoryStats { return s.buffers.Stats() }

// Plan returns the plan of the next tick.
func (s *Simulation) Plan() FramePlan { return s.sched.Plan() }

// ReadCells reads back state slot i%2 (0 is buffer A, 1 is buffer B).
func (s *Simulation) ReadCells(i int) (life.CellState, error) {
	var cells life.CellState
	err := s.sched.exclusive(func(uint64) error {
		var err error
		cells, err = s.buffers.ReadState(s.arena.Slot(i), s.cfg.Grid.Cells())
		return err
	})
	return cells, err
}

// CurrentCells reads back the generation shown by the last rendered frame,
// held in slot step%2.
func (s *Simulation) CurrentCells() (life.CellState, error) {
	var cells life.CellState
	err := s.sched.exclusive(func(step uint64) error {
		var err error
		cells, err = s.buffers.ReadState(s.arena.Slot(int(step&1)), s.cfg.Grid.Cells())
		return err
	})
	return cells, err
}

// Snapshot reads back the last rendered frame. It requires an
// *OffscreenSurface.
func (s *Simulation) Snapshot() (*image.RGBA, error) {
	off, ok := s.dev.Surface.(*OffscreenSurface)
	if !ok {
		return nil, fmt.Errorf("snapshot needs an offscreen surface, have %T", s.dev.Surface)
	}
	var img *image.RGBA
	err := s.sched.exclusive(func(uint64) error {
		var err error
		img, err = off.Snapshot(s.dev.Queue)
		return err
	})
	return img, err
}

// Close releases every object the simulation created. Subsequent calls to
// Tick, Restart and the readback methods fail with life.ErrClosed.
func (s *Simulation) Close() {
	s.closeOnce.Do(func() {
		s.sched.close()
		s.release()
		slogger().Info("gpu: simulation closed")
	})
}

func (s *Simulation) release() {
	device := s.dev.Device
	if s.groups != nil {
		s.groups.Destroy(device)
		s.groups = nil
	}
	if s.pipelines != nil {
		s.pipelines.Destroy(device)
		s.pipelines = nil
	}
	s.buffers.Release()
	s.arena, s.uniform, s.vertices = nil, nil, nil
}
