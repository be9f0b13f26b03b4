// Package life runs Conway's Game of Life on the GPU.
//
// The simulation keeps two cell-state storage buffers on the device and
// alternates their roles every step: a compute pass reads the current
// generation from one buffer and writes the next generation into the other,
// then a render pass in the same command submission draws the freshly written
// buffer as one instanced tile per cell.
//
// This package holds the host-side data model shared by the GPU core
// (internal/gpu), the shader loader (shader) and the command line tool
// (cmd/gpulife):
//
//   - GridDimensions: the immutable width and height of the grid
//   - CellState: row-major 0/1 cells as uint32, the layout uploaded to the GPU
//   - SeedPolicy: deterministic and randomized initial-state rules
//   - Geometry: the two-triangle tile drawn once per cell
//   - Config: functional options with validation before any GPU work
//   - Step: a CPU reference of the rule the compute shader implements
//
// # Ping-pong buffering
//
// The step counter's parity selects which buffer is read:
//
//	step n:   compute reads buffer n%2, writes buffer (n+1)%2
//	          step becomes n+1 (only while running)
//	          render reads buffer (n+1)%2
//
// While paused the compute pass still runs every tick but the counter does
// not advance, so the render pass keeps showing the same buffer.
//
// # Logging
//
// By default the package produces no log output. Call SetLogger to enable it:
//
//	life.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
//
// # Errors
//
// Startup failures are fatal and are reported with sentinel errors that can
// be matched with errors.Is (ErrNoAdapter, ErrNoDevice, ErrSurfaceNotFound,
// ErrLayoutMismatch, ErrInvalidConfig) or typed errors that can be unpacked
// with errors.As (*ShaderFetchError, *ShaderCompileError).
package life
