package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/life"
	"github.com/gogpu/wgpu/hal"
)

// Buffer usages of the simulation's device buffers.
const (
	UniformUsage = gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	StateUsage   = gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	VertexUsage  = gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst
)

// Buffer labels.
const (
	labelUniform = "Grid Uniforms"
	labelStateA  = "(A) Cell state buffer"
	labelStateB  = "(B) Cell state buffer"
	labelVertex  = "Cell vertices"
)

// StateArena holds the two cell state buffers. Slot 0 is buffer A and slot
// 1 is buffer B; both have the same size for the arena's lifetime.
type StateArena struct {
	Slots [2]hal.Buffer

	// Size is the byte size of each slot.
	Size uint64
}

// Slot returns the buffer at index i%2.
func (a *StateArena) Slot(i int) hal.Buffer { return a.Slots[i&1] }

// BufferManager creates, resets and reads back simulation buffers.
//
// The manager owns every buffer it creates and accounts them against a
// byte budget. Release destroys them all.
//
// BufferManager is safe for concurrent use.
type BufferManager struct {
	device hal.Device
	queue  hal.Queue

	mu    sync.Mutex
	live  []hal.Buffer
	stats MemoryStats
}

// NewBufferManager returns a manager for buffers on device with
// life.DefaultMemoryBudget.
func NewBufferManager(device hal.Device, queue hal.Queue) *BufferManager {
	return &BufferManager{
		device: device,
		queue:  queue,
		stats:  MemoryStats{BudgetBytes: life.DefaultMemoryBudget},
	}
}

// CreateUniformBuffer creates the 8-byte grid uniform holding the width and
// height as float32.
func (m *BufferManager) CreateUniformBuffer(dims life.GridDimensions) (hal.Buffer, error) {
	return m.createWith(labelUniform, UniformUsage, dims.UniformBytes())
}

// CreateVertexBuffer creates the tile template buffer.
func (m *BufferManager) CreateVertexBuffer(g life.Geometry) (hal.Buffer, error) {
	return m.createWith(labelVertex, VertexUsage, g.Bytes())
}

// CreateStateBuffer creates one cell state buffer holding state.
func (m *BufferManager) CreateStateBuffer(label string, state life.CellState) (hal.Buffer, error) {
	if len(state) == 0 {
		return nil, fmt.Errorf("state buffer %q: %w", label, life.ErrZeroDimension)
	}
	return m.createWith(label, StateUsage, state.Bytes())
}

// CreateStateArena creates buffers A and B holding a and b.
func (m *BufferManager) CreateStateArena(a, b life.CellState) (*StateArena, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: state lengths differ (%d vs %d)", life.ErrInvalidConfig, len(a), len(b))
	}
	bufA, err := m.CreateStateBuffer(labelStateA, a)
	if err != nil {
		return nil, err
	}
	bufB, err := m.CreateStateBuffer(labelStateB, b)
	if err != nil {
		return nil, err
	}
	return &StateArena{Slots: [2]hal.Buffer{bufA, bufB}, Size: uint64(len(a)) * 4}, nil
}

// ResetState overwrites slot i of the arena with state. The buffer is
// written in place, never reallocated, so bind groups referencing it stay
// valid.
func (m *BufferManager) ResetState(arena *StateArena, i int, state life.CellState) error {
	data := state.Bytes()
	if uint64(len(data)) != arena.Size {
		return fmt.Errorf("%w: reset slot %d with %d bytes, buffer holds %d",
			life.ErrInvalidConfig, i&1, len(data), arena.Size)
	}
	if err := m.queue.WriteBuffer(arena.Slot(i), 0, data); err != nil {
		return fmt.Errorf("reset slot %d: write buffer: %w", i&1, err)
	}
	return nil
}

// ReadState copies cells values of buf back to the host.
//
// The buffer is copied into a staging buffer and the copy is waited on, so
// the result reflects every submission made before the call.
func (m *BufferManager) ReadState(buf hal.Buffer, cells int) (life.CellState, error) {
	size := uint64(cells) * 4
	staging, err := m.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "Cell state readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer m.device.DestroyBuffer(staging)

	encoder, err := m.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "state_readback_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("state_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(buf, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer m.device.FreeCommandBuffer(cmdBuf)

	if err := submitAndWait(m.queue, cmdBuf); err != nil {
		return nil, err
	}
	data := make([]byte, size)
	if err := readBuffer(m.device, staging, data); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.stats.Readbacks++
	m.stats.ReadbackBytes += size
	m.mu.Unlock()
	return life.CellStateFromBytes(data), nil
}

// Release destroys every buffer the manager created, newest first, and
// resets the usage to zero. The manager can be reused afterwards.
func (m *BufferManager) Release() {
	m.mu.Lock()
	live := m.live
	m.live = nil
	m.stats.UsedBytes = 0
	m.stats.Buffers = 0
	m.mu.Unlock()

	for i := len(live) - 1; i >= 0; i-- {
		m.device.DestroyBuffer(live[i])
	}
	if len(live) > 0 {
		slogger().Debug("gpu: buffers released", "count", len(live))
	}
}

func (m *BufferManager) createWith(label string, usage gputypes.BufferUsage, data []byte) (hal.Buffer, error) {
	size := uint64(len(data))
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reserveLocked(label, size); err != nil {
		return nil, err
	}
	buf, err := m.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		m.stats.UsedBytes -= size
		m.stats.Buffers--
		return nil, fmt.Errorf("create buffer %q: %w", label, err)
	}
	m.live = append(m.live, buf)
	if err := m.queue.WriteBuffer(buf, 0, data); err != nil {
		return nil, fmt.Errorf("write buffer %q: %w", label, err)
	}
	slogger().Debug("gpu: buffer created", "label", label, "bytes", len(data))
	return buf, nil
}
