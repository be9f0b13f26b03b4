package gpu

import (
	"fmt"
	"image"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/life"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the row pitch required by texture-to-buffer copies.
const copyPitchAlignment = 256

// submitTimeout bounds every wait on a submission.
const submitTimeout = 5 * time.Second

// pollInterval is the sleep between completion polls.
const pollInterval = 100 * time.Microsecond

// OffscreenSurface renders into a device texture that can be read back.
// It is the surface of headless runs and of snapshot export.
type OffscreenSurface struct {
	width, height uint32

	device hal.Device
	format gputypes.TextureFormat
	tex    hal.Texture
	view   hal.TextureView
}

// NewOffscreenSurface returns an unconfigured width x height surface.
func NewOffscreenSurface(width, height uint32) *OffscreenSurface {
	return &OffscreenSurface{width: width, height: height}
}

// Size implements Surface.
func (s *OffscreenSurface) Size() (uint32, uint32) { return s.width, s.height }

// PreferredFormat implements FormatPreferrer.
func (s *OffscreenSurface) PreferredFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatBGRA8Unorm
}

// Configure implements Surface by creating the render target texture.
func (s *OffscreenSurface) Configure(device hal.Device, format gputypes.TextureFormat) error {
	if s.width == 0 || s.height == 0 {
		return fmt.Errorf("offscreen surface %dx%d: %w", s.width, s.height, life.ErrZeroDimension)
	}
	if s.tex != nil {
		return fmt.Errorf("offscreen surface already configured")
	}
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "gpulife_offscreen",
		Size:          hal.Extent3D{Width: s.width, Height: s.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create offscreen texture: %w", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "gpulife_offscreen_view",
	})
	if err != nil {
		device.DestroyTexture(tex)
		return fmt.Errorf("create offscreen view: %w", err)
	}
	s.device = device
	s.format = format
	s.tex = tex
	s.view = view
	return nil
}

// CurrentView implements Surface.
func (s *OffscreenSurface) CurrentView() (hal.TextureView, error) {
	if s.view == nil {
		return nil, fmt.Errorf("offscreen surface not configured: %w", life.ErrSurfaceNotFound)
	}
	return s.view, nil
}

// Present implements Surface. The frame stays in the texture until the next
// render pass clears it.
func (s *OffscreenSurface) Present() error { return nil }

// Destroy implements Surface.
func (s *OffscreenSurface) Destroy(device hal.Device) {
	if s.view != nil {
		device.DestroyTextureView(s.view)
		s.view = nil
	}
	if s.tex != nil {
		device.DestroyTexture(s.tex)
		s.tex = nil
	}
	s.device = nil
}

// Snapshot copies the last rendered frame to host memory.
//
// The texture is copied into a staging buffer with a 256-byte aligned row
// pitch, the submission is waited on, and the rows are unpacked into an
// RGBA image. BGRA targets are swizzled.
func (s *OffscreenSurface) Snapshot(queue hal.Queue) (*image.RGBA, error) {
	if s.tex == nil || s.device == nil {
		return nil, fmt.Errorf("offscreen surface not configured: %w", life.ErrSurfaceNotFound)
	}
	w, h := s.width, s.height
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpulife_snapshot_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer s.device.DestroyBuffer(staging)

	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gpulife_snapshot_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gpulife_snapshot"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: s.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(s.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: s.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	// Back to RenderAttachment for the next frame's render pass.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: s.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer s.device.FreeCommandBuffer(cmdBuf)

	if err := submitAndWait(queue, cmdBuf); err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	if err := readBuffer(s.device, staging, readback); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	for row := 0; row < int(h); row++ {
		src := readback[row*int(alignedBytesPerRow) : row*int(alignedBytesPerRow)+int(bytesPerRow)]
		copy(img.Pix[row*img.Stride:], src)
	}
	if s.format == gputypes.TextureFormatBGRA8Unorm || s.format == gputypes.TextureFormatBGRA8UnormSrgb {
		swizzleBGRA(img.Pix)
	}
	return img, nil
}

// swizzleBGRA swaps the red and blue channels of packed 4-byte pixels.
func swizzleBGRA(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// submitAndWait submits cmdBuf and blocks until the queue reports the
// submission complete, or submitTimeout elapses.
func submitAndWait(queue hal.Queue, cmdBuf hal.CommandBuffer) error {
	index, err := queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	deadline := time.Now().Add(submitTimeout)
	for queue.PollCompleted() < index {
		if time.Now().After(deadline) {
			return fmt.Errorf("wait for GPU: submission %d incomplete after %v", index, submitTimeout)
		}
		time.Sleep(pollInterval)
	}
	return nil
}

// readBuffer maps the first len(dst) bytes of a MapRead buffer and copies
// them into dst. The GPU must be done writing buf.
func readBuffer(device hal.Device, buf hal.Buffer, dst []byte) error {
	mapping, err := device.MapBuffer(buf, 0, uint64(len(dst)))
	if err != nil {
		return fmt.Errorf("map readback buffer: %w", err)
	}
	copy(dst, unsafe.Slice((*byte)(mapping.Ptr), len(dst)))
	if err := device.UnmapBuffer(buf); err != nil {
		return fmt.Errorf("unmap readback buffer: %w", err)
	}
	return nil
}

// ExternalSurface renders into views owned by a host application, such as
// the swapchain image of a window. The host calls SetView before each tick
// and presents the frame itself.
type ExternalSurface struct {
	mu            sync.Mutex
	view          hal.TextureView
	width, height uint32
	format        gputypes.TextureFormat
	presented     uint64
}

// NewExternalSurface returns a surface whose host renders in format.
// Pass gputypes.TextureFormatUndefined to accept the device's choice.
func NewExternalSurface(format gputypes.TextureFormat) *ExternalSurface {
	return &ExternalSurface{format: format}
}

// SetView sets the view the next frame renders into. A nil view detaches
// the surface.
func (s *ExternalSurface) SetView(view hal.TextureView, width, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
	s.width = width
	s.height = height
}

// Size implements Surface.
func (s *ExternalSurface) Size() (uint32, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// PreferredFormat implements FormatPreferrer.
func (s *ExternalSurface) PreferredFormat() gputypes.TextureFormat { return s.format }

// Configure implements Surface. The host owns the textures; only the format
// is recorded.
func (s *ExternalSurface) Configure(_ hal.Device, format gputypes.TextureFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format = format
	return nil
}

// CurrentView implements Surface.
func (s *ExternalSurface) CurrentView() (hal.TextureView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		return nil, fmt.Errorf("external surface has no view: %w", life.ErrSurfaceNotFound)
	}
	return s.view, nil
}

// Present implements Surface. It only counts frames; presentation is the
// host's job.
func (s *ExternalSurface) Present() error {
	s.mu.Lock()
	s.presented++
	s.mu.Unlock()
	return nil
}

// Presented returns the number of frames rendered into the surface.
func (s *ExternalSurface) Presented() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

// Destroy implements Surface.
func (s *ExternalSurface) Destroy(hal.Device) {
	s.SetView(nil, 0, 0)
}
