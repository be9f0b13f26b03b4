package gpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/life"
	"github.com/gogpu/wgpu/hal"
)

// RunState is the scheduler's run state.
type RunState int32

const (
	// Paused ticks recompute and redraw the current generation.
	Paused RunState = iota
	// Running ticks advance the generation.
	Running
)

// String returns "paused" or "running".
func (s RunState) String() string {
	switch s {
	case Paused:
		return "paused"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("RunState(%d)", int32(s))
	}
}

// FramePlan is everything a tick records, derived from the step counter and
// the run state.
type FramePlan struct {
	// Step is the counter value the tick started with.
	Step uint64
	// NextStep is the counter value after the tick.
	NextStep uint64
	// Running reports whether the tick advances the generation.
	Running bool

	// ComputeVariant is the bind group variant of the compute pass.
	ComputeVariant int
	// RenderVariant is the bind group variant of the render pass.
	RenderVariant int

	WorkgroupsX, WorkgroupsY uint32

	// Instances is the number of tiles drawn, one per cell.
	Instances uint32
	// Vertices is the vertex count of one tile.
	Vertices uint32
}

// Workgroups returns the total number of workgroups dispatched.
func (p FramePlan) Workgroups() uint64 {
	return uint64(p.WorkgroupsX) * uint64(p.WorkgroupsY)
}

// PlanFrame computes the plan of one tick.
//
// The compute variant is chosen from step; the step advances only when
// running; the render variant is chosen from the advanced step.
func PlanFrame(step uint64, running bool, dims life.GridDimensions, workgroupSize, vertices uint32) FramePlan {
	next := step
	if running {
		next++
	}
	return FramePlan{
		Step:           step,
		NextStep:       next,
		Running:        running,
		ComputeVariant: int(step & 1),
		RenderVariant:  int(next & 1),
		WorkgroupsX:    life.WorkgroupCount(dims.Width, workgroupSize),
		WorkgroupsY:    life.WorkgroupCount(dims.Height, workgroupSize),
		Instances:      dims.Width * dims.Height,
		Vertices:       vertices,
	}
}

// Observer receives scheduler events. Methods are called with the
// scheduler lock held and must not call back into the scheduler.
type Observer interface {
	ObserveTick(plan FramePlan, elapsed time.Duration)
	ObserveRestart()
	ObserveToggle(state RunState)
}

// Resources are the device objects a Scheduler records commands with.
type Resources struct {
	Buffers   *BufferManager
	Arena     *StateArena
	Uniform   hal.Buffer
	Vertices  hal.Buffer
	Pipelines *Pipelines
	Groups    *BindGroupPair
}

// Scheduler owns the step counter and run state and records one compute
// pass and one render pass per tick.
//
// All methods are safe for concurrent use. Tick, Toggle and Restart are
// serialized by a single lock, and each tick waits for its submission to
// complete before releasing it.
type Scheduler struct {
	mu sync.Mutex

	dev *Device
	res Resources
	cfg life.Config

	step     uint64
	state    RunState
	observer Observer
	closed   bool
}

// NewScheduler returns a scheduler at step 0. It starts Paused when
// cfg.Interactive is set and Running otherwise.
func NewScheduler(dev *Device, res Resources, cfg life.Config) *Scheduler {
	state := Running
	if cfg.Interactive {
		state = Paused
	}
	return &Scheduler{dev: dev, res: res, cfg: cfg, state: state}
}

// SetObserver installs o. A nil observer disables notifications.
func (s *Scheduler) SetObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

// Step returns the step counter.
func (s *Scheduler) Step() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// State returns the run state.
func (s *Scheduler) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Plan returns the plan the next tick will execute.
func (s *Scheduler) Plan() FramePlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planLocked()
}

func (s *Scheduler) planLocked() FramePlan {
	return PlanFrame(s.step, s.state == Running, s.cfg.Grid, s.cfg.WorkgroupSize, s.cfg.Geometry.VertexCount())
}

// Toggle flips Paused and Running and returns the new state. The step
// counter is not touched.
func (s *Scheduler) Toggle() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		s.state = Paused
	} else {
		s.state = Running
	}
	slogger().Info("gpu: run state changed", "state", s.state, "step", s.step)
	if s.observer != nil {
		s.observer.ObserveToggle(s.state)
	}
	return s.state
}

// Restart regenerates both state slots from the configured seed policies
// and overwrites them in place. The step counter keeps its value, so the
// next tick reads the fresh contents of slot step%2.
func (s *Scheduler) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return life.ErrClosed
	}
	a, b, err := s.cfg.SeedStates()
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	if err := s.res.Buffers.ResetState(s.res.Arena, 0, a); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	if err := s.res.Buffers.ResetState(s.res.Arena, 1, b); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	slogger().Info("gpu: simulation restarted", "step", s.step, "alive_a", a.AliveCount(), "alive_b", b.AliveCount())
	if s.observer != nil {
		s.observer.ObserveRestart()
	}
	return nil
}

// Tick records the compute pass and the render pass of one frame into a
// single encoder, submits it once and waits for completion. The step
// counter advances only if the submission succeeded.
func (s *Scheduler) Tick() error {
	_, err := s.tick()
	return err
}

func (s *Scheduler) tick() (FramePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return FramePlan{}, life.ErrClosed
	}
	start := time.Now()
	plan := s.planLocked()

	view, err := s.dev.Surface.CurrentView()
	if err != nil {
		return plan, fmt.Errorf("tick %d: %w", plan.Step, err)
	}
	if err := s.submitFrame(plan, view); err != nil {
		return plan, fmt.Errorf("tick %d: %w", plan.Step, err)
	}
	s.step = plan.NextStep
	if err := s.dev.Surface.Present(); err != nil {
		return plan, fmt.Errorf("tick %d: present: %w", plan.Step, err)
	}

	elapsed := time.Since(start)
	slogger().Debug("gpu: tick",
		"step", plan.Step, "compute_variant", plan.ComputeVariant, "render_variant", plan.RenderVariant,
		"workgroups", plan.Workgroups(), "elapsed", elapsed)
	if s.observer != nil {
		s.observer.ObserveTick(plan, elapsed)
	}
	return plan, nil
}

func (s *Scheduler) submitFrame(plan FramePlan, view hal.TextureView) error {
	device := s.dev.Device
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "Cell encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gpulife_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	cp := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "Simulation pass"})
	cp.SetPipeline(s.res.Pipelines.Compute)
	cp.SetBindGroup(0, s.res.Groups.Group(plan.ComputeVariant), nil)
	cp.Dispatch(plan.WorkgroupsX, plan.WorkgroupsY, 1)
	cp.End()

	bg := s.cfg.ClearColor
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "Cell render pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: bg.R, G: bg.G, B: bg.B, A: bg.A},
		}},
	})
	rp.SetPipeline(s.res.Pipelines.Render)
	rp.SetBindGroup(0, s.res.Groups.Group(plan.RenderVariant), nil)
	rp.SetVertexBuffer(0, s.res.Vertices, 0)
	rp.Draw(plan.Vertices, plan.Instances, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)
	return submitAndWait(s.dev.Queue, cmdBuf)
}

// Run ticks every cfg.TickInterval until ctx is done and returns ctx.Err().
// A failed tick is logged and the loop continues; a closed scheduler stops
// the loop with life.ErrClosed.
func (s *Scheduler) Run(ctx context.Context) error {
	return s.RunFunc(ctx, nil)
}

// RunFunc is Run with a hook called after every successful tick, outside
// the scheduler lock, so it may read back state or take snapshots. A
// non-nil error from after stops the loop and is returned.
func (s *Scheduler) RunFunc(ctx context.Context, after func(FramePlan) error) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	slogger().Info("gpu: scheduler started", "interval", s.cfg.TickInterval, "state", s.State())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		plan, err := s.tick()
		if err != nil {
			if errors.Is(err, life.ErrClosed) {
				return err
			}
			slogger().Warn("gpu: tick failed", "err", err)
			continue
		}
		if after != nil {
			if err := after(plan); err != nil {
				return err
			}
		}
	}
}

// close marks the scheduler closed. Subsequent ticks and restarts fail
// with life.ErrClosed.
func (s *Scheduler) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// exclusive runs fn with the scheduler lock held, passing the current step.
// It serializes host-side queue work, such as readback, with ticks.
func (s *Scheduler) exclusive(fn func(step uint64) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return life.ErrClosed
	}
	return fn(s.step)
}
