package gpu

import (
	"errors"
	"fmt"
)

// ErrMemoryBudgetExceeded is returned when a buffer allocation would exceed
// the buffer manager's budget.
var ErrMemoryBudgetExceeded = errors.New("gpu: memory budget exceeded")

// MemoryStats contains buffer memory usage statistics.
type MemoryStats struct {
	// BudgetBytes is the allocation budget in bytes.
	BudgetBytes uint64

	// UsedBytes is the size of all live buffers in bytes.
	UsedBytes uint64

	// Buffers is the number of live buffers.
	Buffers int

	// Readbacks is the number of completed state readbacks.
	Readbacks uint64

	// ReadbackBytes is the total number of bytes read back.
	ReadbackBytes uint64
}

// Utilization returns the fraction of the budget in use.
func (s MemoryStats) Utilization() float64 {
	if s.BudgetBytes == 0 {
		return 0
	}
	return float64(s.UsedBytes) / float64(s.BudgetBytes)
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d bytes, %d buffers, %d readbacks]",
		s.Utilization()*100, s.UsedBytes, s.BudgetBytes, s.Buffers, s.Readbacks)
}

// reserveLocked accounts size bytes against the budget.
func (m *BufferManager) reserveLocked(label string, size uint64) error {
	if m.stats.UsedBytes+size > m.stats.BudgetBytes {
		return fmt.Errorf("buffer %q (%d bytes, %d/%d in use): %w",
			label, size, m.stats.UsedBytes, m.stats.BudgetBytes, ErrMemoryBudgetExceeded)
	}
	m.stats.UsedBytes += size
	m.stats.Buffers++
	return nil
}

// Stats returns current memory usage statistics.
func (m *BufferManager) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// SetBudget updates the budget. Buffers already allocated are kept even if
// they exceed the new budget; later allocations fail until usage drops.
func (m *BufferManager) SetBudget(bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.BudgetBytes = bytes
}
