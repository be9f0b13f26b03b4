package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gogpu/life"
	"github.com/gogpu/life/internal/gpu"
	"github.com/gogpu/life/internal/snapshot"
)

// tickHook runs after every tick: it checks the generation against the CPU
// rule, writes snapshots and stops the run after the requested tick count.
type tickHook struct {
	sim    *gpu.Simulation
	opts   *options
	cancel context.CancelFunc

	ticks     uint64
	reference life.CellState
	restarted atomic.Bool
}

var _ gpu.Observer = (*tickHook)(nil)

func newAfterTick(sim *gpu.Simulation, o *options, cancel context.CancelFunc) (*tickHook, error) {
	h := &tickHook{sim: sim, opts: o, cancel: cancel}
	if o.verify {
		cells, err := sim.CurrentCells()
		if err != nil {
			return nil, fmt.Errorf("verify: read initial state: %w", err)
		}
		h.reference = cells
	}
	return h, nil
}

// ObserveTick implements gpu.Observer.
func (h *tickHook) ObserveTick(gpu.FramePlan, time.Duration) {}

// ObserveRestart implements gpu.Observer. The reference state is resynced
// from the device after the next tick.
func (h *tickHook) ObserveRestart() { h.restarted.Store(true) }

// ObserveToggle implements gpu.Observer.
func (h *tickHook) ObserveToggle(gpu.RunState) {}

func (h *tickHook) afterTick(plan gpu.FramePlan) error {
	h.ticks++
	if h.opts.verify {
		if err := h.verify(plan); err != nil {
			return err
		}
	}
	if h.opts.snapshotDir != "" && h.ticks%h.opts.snapshotEvery == 0 {
		if err := h.snapshot(plan); err != nil {
			life.Logger().Warn("snapshot failed", "tick", h.ticks, "step", plan.NextStep, "err", err)
		}
	}
	if h.opts.ticks > 0 && h.ticks >= h.opts.ticks {
		life.Logger().Info("tick limit reached", "ticks", h.ticks)
		h.cancel()
	}
	return nil
}

func (h *tickHook) verify(plan gpu.FramePlan) error {
	// Clear the flag before reading: a restart landing during the readback
	// sets it again and the next tick resyncs.
	restarted := h.restarted.Swap(false)
	got, err := h.sim.CurrentCells()
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if restarted {
		h.reference = got
		return nil
	}
	if plan.Running {
		h.reference = life.Step(h.reference, h.sim.Config().Grid)
	}
	if i := firstDifference(h.reference, got); i >= 0 {
		w := int(h.sim.Config().Grid.Width)
		return fmt.Errorf("verify: generation %d diverges from the CPU rule at cell (%d, %d): gpu %d, cpu %d",
			plan.NextStep, i%w, i/w, got[i], h.reference[i])
	}
	return nil
}

func (h *tickHook) snapshot(plan gpu.FramePlan) error {
	img, err := h.sim.Snapshot()
	if err != nil {
		return err
	}
	state := gpu.Paused
	if plan.Running {
		state = gpu.Running
	}
	path := filepath.Join(h.opts.snapshotDir, snapshot.Name(h.ticks, plan.NextStep))
	label := fmt.Sprintf("tick %d  step %d  %s", h.ticks, plan.NextStep, state)
	if err := snapshot.WriteFile(path, img, snapshot.Options{Scale: h.opts.scale, Label: label}); err != nil {
		return err
	}
	life.Logger().Debug("snapshot written", "path", path)
	return nil
}

// firstDifference returns the index of the first differing cell, or -1.
// States of different length differ at the shorter length.
func firstDifference(a, b life.CellState) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	if len(a) != len(b) {
		return n
	}
	return -1
}
