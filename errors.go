package life

import (
	"errors"
	"fmt"
)

// Startup errors. All of them are fatal: the simulation cannot start and
// nothing is retried.
var (
	// ErrNoAdapter is returned when no GPU adapter is available.
	ErrNoAdapter = errors.New("life: no GPU adapter found")

	// ErrNoDevice is returned when the adapter cannot open a logical device.
	ErrNoDevice = errors.New("life: no GPU device obtainable")

	// ErrSurfaceNotFound is returned when no drawable surface was provided.
	ErrSurfaceNotFound = errors.New("life: surface not found")

	// ErrLayoutMismatch is returned when a pipeline is incompatible with the
	// shared bind group layout or the configured workgroup size.
	ErrLayoutMismatch = errors.New("life: pipeline layout mismatch")

	// ErrInvalidConfig is returned for configuration rejected before any GPU
	// resource is created.
	ErrInvalidConfig = errors.New("life: invalid configuration")

	// ErrZeroDimension is returned for a grid with zero width or height.
	ErrZeroDimension = errors.New("life: grid dimension is zero")

	// ErrShaderFetch is the cause of every *ShaderFetchError.
	ErrShaderFetch = errors.New("life: shader fetch failed")

	// ErrShaderCompile matches every *ShaderCompileError.
	ErrShaderCompile = errors.New("life: shader compilation failed")

	// ErrClosed is returned when operating on a closed simulation.
	ErrClosed = errors.New("life: simulation closed")
)

// ShaderStage identifies the pipeline stage a shader is compiled for.
type ShaderStage int

const (
	// StageVertex is the vertex stage of the render pipeline.
	StageVertex ShaderStage = iota
	// StageFragment is the fragment stage of the render pipeline.
	StageFragment
	// StageCompute is the single stage of the compute pipeline.
	StageCompute
)

// String returns the lower-case stage name.
func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("ShaderStage(%d)", int(s))
	}
}

// ShaderFetchError reports a shader that could not be retrieved.
// StatusCode and Status follow HTTP conventions (e.g. 404, "Not Found")
// regardless of where the shader was fetched from.
type ShaderFetchError struct {
	Name       string
	StatusCode int
	Status     string
	Err        error
}

func (e *ShaderFetchError) Error() string {
	msg := fmt.Sprintf("life: failed to fetch shader %q: %d %s", e.Name, e.StatusCode, e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns ErrShaderFetch and the underlying cause, if any.
func (e *ShaderFetchError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrShaderFetch, e.Err}
	}
	return []error{ErrShaderFetch}
}

// ShaderCompileError reports a shader rejected by the compiler or the device.
type ShaderCompileError struct {
	Name  string
	Stage ShaderStage
	Err   error
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("life: compile %s shader %q: %v", e.Stage, e.Name, e.Err)
}

// Unwrap returns the compiler error.
func (e *ShaderCompileError) Unwrap() error { return e.Err }

// Is reports whether target is ErrShaderCompile.
func (e *ShaderCompileError) Is(target error) bool { return target == ErrShaderCompile }
