//go:build nogpu

package gpu

import (
	"context"
	"fmt"

	"github.com/gogpu/life"
)

// AcquireVulkan always fails in nogpu builds, which link no hardware
// backend. Acquire with the noop backend still works.
func AcquireVulkan(context.Context, Surface) (*Device, error) {
	return nil, fmt.Errorf("built with nogpu: %w", life.ErrNoAdapter)
}
