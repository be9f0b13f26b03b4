package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/life"
	"github.com/gogpu/wgpu/hal"
)

// BindGroupPair holds the two ping-pong bind groups.
//
// Variant 0 reads slot A and writes slot B; variant 1 reads B and writes A.
// Both share the grid uniform at binding 0. The groups are immutable once
// built: restarting the simulation rewrites the buffers, not the groups.
type BindGroupPair struct {
	groups [2]hal.BindGroup
}

// BuildBindGroupPair creates both variants over layout.
func BuildBindGroupPair(device hal.Device, layout hal.BindGroupLayout, uniform hal.Buffer, arena *StateArena) (*BindGroupPair, error) {
	if arena == nil || arena.Slots[0] == nil || arena.Slots[1] == nil {
		return nil, fmt.Errorf("%w: state arena incomplete", life.ErrLayoutMismatch)
	}
	labels := [2]string{"Cell renderer bind group A", "Cell renderer bind group B"}
	pair := &BindGroupPair{}
	for v := 0; v < 2; v++ {
		read, write := arena.Slot(ReadSlot(v)), arena.Slot(WriteSlot(v))
		bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  labels[v],
			Layout: layout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: BindingGrid, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Offset: 0, Size: life.UniformSize}},
				{Binding: BindingStateRead, Resource: gputypes.BufferBinding{Buffer: read.NativeHandle(), Offset: 0, Size: arena.Size}},
				{Binding: BindingStateWrite, Resource: gputypes.BufferBinding{Buffer: write.NativeHandle(), Offset: 0, Size: arena.Size}},
			},
		})
		if err != nil {
			pair.Destroy(device)
			return nil, fmt.Errorf("create bind group %d: %w: %w", v, life.ErrLayoutMismatch, err)
		}
		pair.groups[v] = bg
	}
	return pair, nil
}

// Group returns variant v%2.
func (p *BindGroupPair) Group(v int) hal.BindGroup { return p.groups[v&1] }

// ReadSlot returns the arena slot variant v binds read-only.
func ReadSlot(v int) int { return v & 1 }

// WriteSlot returns the arena slot variant v binds read-write.
func WriteSlot(v int) int { return (v + 1) & 1 }

// Destroy releases both groups.
func (p *BindGroupPair) Destroy(device hal.Device) {
	for i, bg := range p.groups {
		if bg != nil {
			device.DestroyBindGroup(bg)
			p.groups[i] = nil
		}
	}
}
