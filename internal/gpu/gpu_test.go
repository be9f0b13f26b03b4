package gpu

import (
	"context"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/life"
	"github.com/gogpu/life/shader"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice opens a device on the noop backend.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// acquireNoop acquires a noop device rendering into surface.
func acquireNoop(t *testing.T, surface Surface) *Device {
	t.Helper()
	dev, err := Acquire(context.Background(), noop.API{}, surface)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	t.Cleanup(dev.Close)
	return dev
}

// loadProgram loads the embedded shaders.
func loadProgram(t *testing.T) shader.Program {
	t.Helper()
	prog, err := shader.Load(context.Background(), shader.Embedded(), shader.DefaultNames)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return prog
}

// newTestSimulation builds a simulation on a noop device with an offscreen
// surface.
func newTestSimulation(t *testing.T, opts ...life.Option) *Simulation {
	t.Helper()
	cfg, err := life.NewConfig(opts...)
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	dev := acquireNoop(t, NewOffscreenSurface(64, 64))
	sim, err := NewSimulation(dev, cfg, loadProgram(t))
	if err != nil {
		t.Fatalf("NewSimulation failed: %v", err)
	}
	t.Cleanup(sim.Close)
	return sim
}
