// Package gpu runs the Game of Life simulation on a WebGPU device.
//
// It uses the gogpu/wgpu HAL directly (Pure Go, zero CGO). Vulkan is the
// production backend; the noop backend drives the same code paths in tests
// and in headless dry runs.
//
// # Architecture Overview
//
// A simulation is assembled from five components, each owning one concern:
//
//	Acquire -> BufferManager -> Pipelines -> BindGroupPair -> Scheduler
//
//   - Device/Surface Bootstrap: Acquire, AcquireVulkan and FromProvider open
//     (or borrow) a device and configure the Surface exactly once
//   - BufferManager: uniform grid buffer, the two-slot StateArena and the
//     tile vertex buffer; in-place resets and staging readback
//   - Pipelines: one bind group layout shared by a render pipeline
//     (vertexMain/fragmentMain) and a compute pipeline (computeMain)
//   - BindGroupPair: two immutable bind groups with swapped read/write roles
//   - Scheduler: Paused/Running state and the per-tick command recording
//
// # Ping-pong
//
// Cell state lives in two storage buffers, A and B. Bind group variant v
// reads slot v and writes slot (v+1)%2. On every tick the compute pass uses
// variant step%2, the step counter advances when Running, and the render
// pass draws with the variant selected by the advanced step, so the frame
// shows the generation the compute pass just produced. Both passes are
// recorded into one command encoder and submitted once.
//
// While Paused the step does not advance: the compute pass recomputes the
// same generation into the same slot and the rendered frame is unchanged.
//
// # Synchronization
//
// Each tick waits for its submission to complete before returning. The next tick
// and an out-of-band Restart therefore never overlap in-flight GPU work.
//
// # Logging
//
// The package logs through life.Logger with a component=gpu attribute.
// SetLogger routes it to a different logger.
package gpu
