package gpu

import (
	"context"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/life"
	"github.com/gogpu/wgpu/hal"
)

// DefaultSurfaceFormat is used when the surface expresses no preference.
const DefaultSurfaceFormat = gputypes.TextureFormatBGRA8Unorm

// Surface is the drawable target of the render pass.
//
// Configure is called exactly once, after the device is opened and before
// any frame is recorded. CurrentView returns the view to render into for the
// frame being recorded; Present is called after the frame is submitted.
type Surface interface {
	// Size returns the drawable size in pixels.
	Size() (width, height uint32)

	// Configure prepares the surface for rendering with format.
	Configure(device hal.Device, format gputypes.TextureFormat) error

	// CurrentView returns the view for the next frame.
	CurrentView() (hal.TextureView, error)

	// Present hands the finished frame to the display.
	Present() error

	// Destroy releases resources created by Configure.
	Destroy(device hal.Device)
}

// FormatPreferrer is implemented by surfaces that need a specific format.
type FormatPreferrer interface {
	PreferredFormat() gputypes.TextureFormat
}

// InstanceFactory creates a HAL instance. Both hal.Backend values returned
// by hal.GetBackend and noop.API satisfy it.
type InstanceFactory interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// Device is an opened GPU device with its queue and configured surface.
type Device struct {
	Instance hal.Instance
	Device   hal.Device
	Queue    hal.Queue
	Surface  Surface

	// Format is the surface texture format the render pipeline targets.
	Format gputypes.TextureFormat

	// AdapterName identifies the selected adapter, if known.
	AdapterName string

	shared bool
	closed bool
}

// Shared reports whether the device is borrowed from a host application.
func (d *Device) Shared() bool { return d.shared }

// Close destroys the surface resources and, unless the device is shared,
// the device and instance. Close is idempotent.
func (d *Device) Close() {
	if d.closed {
		return
	}
	d.closed = true
	if d.Surface != nil && d.Device != nil {
		d.Surface.Destroy(d.Device)
	}
	if d.shared {
		// Don't destroy shared resources: we don't own them.
		d.Device = nil
		d.Queue = nil
		return
	}
	if d.Device != nil {
		d.Device.Destroy()
		d.Device = nil
	}
	if d.Instance != nil {
		d.Instance.Destroy()
		d.Instance = nil
	}
	d.Queue = nil
}

// Acquire opens a device on an adapter from factory and configures surface.
//
// A nil surface fails with life.ErrSurfaceNotFound before any GPU object is
// created. No adapter fails with life.ErrNoAdapter, a device that cannot be
// opened with life.ErrNoDevice. Discrete GPUs are preferred over integrated
// ones, and both over anything else. The context is checked between steps;
// the steps themselves are synchronous.
func Acquire(ctx context.Context, factory InstanceFactory, surface Surface) (*Device, error) {
	if surface == nil {
		return nil, life.ErrSurfaceNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	instance, err := factory.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w: %w", life.ErrNoAdapter, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, life.ErrNoAdapter
	}
	selected := selectAdapter(adapters)

	if err := ctx.Err(); err != nil {
		instance.Destroy()
		return nil, err
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open %q: %w: %w", selected.Info.Name, life.ErrNoDevice, err)
	}

	d := &Device{
		Instance:    instance,
		Device:      openDev.Device,
		Queue:       openDev.Queue,
		Format:      selectFormat(surface, gputypes.TextureFormatUndefined),
		AdapterName: selected.Info.Name,
	}
	if err := configure(ctx, d, surface); err != nil {
		d.Close()
		return nil, err
	}
	slogger().Info("gpu: device acquired",
		"adapter", d.AdapterName, "type", selected.Info.DeviceType, "format", d.Format)
	return d, nil
}

// FromProvider borrows the device of a host application.
//
// The provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. If it also implements gpucontext.DeviceProvider,
// its SurfaceFormat is used for the render target. The borrowed device is
// not destroyed by Close.
func FromProvider(provider any, surface Surface) (*Device, error) {
	if surface == nil {
		return nil, life.ErrSurfaceNotFound
	}
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("provider does not expose HAL types: %w", life.ErrNoDevice)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("provider HalDevice is not hal.Device: %w", life.ErrNoDevice)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("provider HalQueue is not hal.Queue: %w", life.ErrNoDevice)
	}

	hostFormat := gputypes.TextureFormatUndefined
	var adapterName string
	if dp, ok := provider.(gpucontext.DeviceProvider); ok {
		hostFormat = dp.SurfaceFormat()
		adapterName = dp.AdapterInfo().Name
	}

	d := &Device{
		Device:      device,
		Queue:       queue,
		Format:      selectFormat(surface, hostFormat),
		AdapterName: adapterName,
		shared:      true,
	}
	if err := configure(context.Background(), d, surface); err != nil {
		return nil, err
	}
	slogger().Info("gpu: using shared device", "adapter", d.AdapterName, "format", d.Format)
	return d, nil
}

func configure(ctx context.Context, d *Device, surface Surface) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := surface.Configure(d.Device, d.Format); err != nil {
		return fmt.Errorf("configure surface: %w", err)
	}
	d.Surface = surface
	return nil
}

// selectAdapter prefers a discrete GPU, then an integrated one, then the
// first adapter listed.
func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	best, bestRank := 0, adapterRank(adapters[0].Info.DeviceType)
	for i := 1; i < len(adapters); i++ {
		if r := adapterRank(adapters[i].Info.DeviceType); r < bestRank {
			best, bestRank = i, r
		}
	}
	return &adapters[best]
}

func adapterRank(t gputypes.DeviceType) int {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return 0
	case gputypes.DeviceTypeIntegratedGPU:
		return 1
	default:
		return 2
	}
}

// selectFormat picks the surface preference, then the host format, then
// DefaultSurfaceFormat.
func selectFormat(surface Surface, host gputypes.TextureFormat) gputypes.TextureFormat {
	if fp, ok := surface.(FormatPreferrer); ok {
		if f := fp.PreferredFormat(); f != gputypes.TextureFormatUndefined {
			return f
		}
	}
	if host != gputypes.TextureFormatUndefined {
		return host
	}
	return DefaultSurfaceFormat
}
