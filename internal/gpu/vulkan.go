//go:build !nogpu

package gpu

import (
	"context"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/life"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// AcquireVulkan is Acquire on the registered Vulkan backend.
func AcquireVulkan(ctx context.Context, surface Surface) (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("vulkan backend not available: %w", life.ErrNoAdapter)
	}
	return Acquire(ctx, backend, surface)
}
