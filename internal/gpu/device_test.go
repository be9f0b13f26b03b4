package gpu

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/life"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

type failingFactory struct{ err error }

func (f failingFactory) CreateInstance(*hal.InstanceDescriptor) (hal.Instance, error) {
	return nil, f.err
}

func TestAcquireNilSurface(t *testing.T) {
	_, err := Acquire(context.Background(), noop.API{}, nil)
	if !errors.Is(err, life.ErrSurfaceNotFound) {
		t.Errorf("err = %v, want ErrSurfaceNotFound", err)
	}
}

func TestAcquireInstanceFailure(t *testing.T) {
	cause := errors.New("driver missing")
	_, err := Acquire(context.Background(), failingFactory{err: cause}, NewOffscreenSurface(8, 8))
	if !errors.Is(err, life.ErrNoAdapter) {
		t.Errorf("err = %v, want ErrNoAdapter", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want cause attached", err)
	}
}

func TestAcquireCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Acquire(ctx, noop.API{}, NewOffscreenSurface(8, 8))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestAcquireNoop(t *testing.T) {
	surface := NewOffscreenSurface(32, 16)
	dev := acquireNoop(t, surface)

	if dev.Device == nil || dev.Queue == nil {
		t.Fatal("device or queue is nil")
	}
	if dev.Surface != surface {
		t.Error("surface not attached to device")
	}
	if dev.Format != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("Format = %v, want BGRA8Unorm", dev.Format)
	}
	if dev.Shared() {
		t.Error("acquired device reported as shared")
	}
	if _, err := surface.CurrentView(); err != nil {
		t.Errorf("surface not configured: %v", err)
	}
}

func TestAcquireConfigureFailure(t *testing.T) {
	_, err := Acquire(context.Background(), noop.API{}, NewOffscreenSurface(0, 16))
	if !errors.Is(err, life.ErrZeroDimension) {
		t.Errorf("err = %v, want ErrZeroDimension", err)
	}
}

func TestDeviceCloseIdempotent(t *testing.T) {
	dev, err := Acquire(context.Background(), noop.API{}, NewOffscreenSurface(8, 8))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	dev.Close()
	dev.Close()
	if dev.Device != nil || dev.Instance != nil || dev.Queue != nil {
		t.Error("Close left handles behind")
	}
}

// hostProvider mimics a host application sharing its device.
type hostProvider struct {
	device hal.Device
	queue  hal.Queue
	format gputypes.TextureFormat
}

func (p *hostProvider) HalDevice() any                        { return p.device }
func (p *hostProvider) HalQueue() any                         { return p.queue }
func (p *hostProvider) Device() gpucontext.Device             { return nil }
func (p *hostProvider) Queue() gpucontext.Queue               { return nil }
func (p *hostProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *hostProvider) SurfaceFormat() gputypes.TextureFormat { return p.format }
func (p *hostProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "host"}
}

var _ gpucontext.DeviceProvider = (*hostProvider)(nil)

func TestFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	host := &hostProvider{device: device, queue: queue, format: gputypes.TextureFormatRGBA8Unorm}
	surface := NewExternalSurface(gputypes.TextureFormatUndefined)
	dev, err := FromProvider(host, surface)
	if err != nil {
		t.Fatalf("FromProvider: %v", err)
	}
	if !dev.Shared() {
		t.Error("provider device not reported as shared")
	}
	if dev.Format != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("Format = %v, want host format RGBA8Unorm", dev.Format)
	}
	if dev.AdapterName != "host" {
		t.Errorf("AdapterName = %q, want host", dev.AdapterName)
	}
	if surface.PreferredFormat() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("surface format = %v, want RGBA8Unorm", surface.PreferredFormat())
	}
	dev.Close()
	if dev.Device != nil {
		t.Error("Close kept a reference to the shared device")
	}
}

func TestFromProviderRejectsForeignTypes(t *testing.T) {
	tests := []struct {
		name     string
		provider any
	}{
		{"no HAL methods", struct{}{}},
		{"nil device", &hostProvider{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromProvider(tt.provider, NewExternalSurface(gputypes.TextureFormatUndefined))
			if !errors.Is(err, life.ErrNoDevice) {
				t.Errorf("err = %v, want ErrNoDevice", err)
			}
		})
	}
}

func TestFromProviderNilSurface(t *testing.T) {
	_, err := FromProvider(&hostProvider{}, nil)
	if !errors.Is(err, life.ErrSurfaceNotFound) {
		t.Errorf("err = %v, want ErrSurfaceNotFound", err)
	}
}

func TestAdapterRank(t *testing.T) {
	if adapterRank(gputypes.DeviceTypeDiscreteGPU) >= adapterRank(gputypes.DeviceTypeIntegratedGPU) {
		t.Error("discrete GPU not preferred over integrated")
	}
}

func TestSelectFormat(t *testing.T) {
	if got := selectFormat(NewExternalSurface(gputypes.TextureFormatUndefined), gputypes.TextureFormatUndefined); got != DefaultSurfaceFormat {
		t.Errorf("no preference = %v, want %v", got, DefaultSurfaceFormat)
	}
	if got := selectFormat(NewExternalSurface(gputypes.TextureFormatRGBA8Unorm), gputypes.TextureFormatBGRA8Unorm); got != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("surface preference = %v, want RGBA8Unorm", got)
	}
}
