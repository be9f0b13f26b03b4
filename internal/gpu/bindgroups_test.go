package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/life"
)

func TestSlotRoles(t *testing.T) {
	tests := []struct {
		variant     int
		read, write int
	}{
		{0, 0, 1},
		{1, 1, 0},
		{2, 0, 1},
		{3, 1, 0},
	}
	for _, tt := range tests {
		if got := ReadSlot(tt.variant); got != tt.read {
			t.Errorf("ReadSlot(%d) = %d, want %d", tt.variant, got, tt.read)
		}
		if got := WriteSlot(tt.variant); got != tt.write {
			t.Errorf("WriteSlot(%d) = %d, want %d", tt.variant, got, tt.write)
		}
		if ReadSlot(tt.variant) == WriteSlot(tt.variant) {
			t.Errorf("variant %d reads and writes the same slot", tt.variant)
		}
	}
}

func TestBuildBindGroupPair(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	p, err := BuildPipelines(device, loadProgram(t), gputypes.TextureFormatBGRA8Unorm)
	if err != nil {
		t.Fatalf("BuildPipelines: %v", err)
	}
	defer p.Destroy(device)

	m := NewBufferManager(device, queue)
	defer m.Release()
	dims := life.GridDimensions{Width: 8, Height: 8}
	uniform, err := m.CreateUniformBuffer(dims)
	if err != nil {
		t.Fatalf("CreateUniformBuffer: %v", err)
	}
	arena, err := m.CreateStateArena(life.EveryNth{N: 3}.Seed(dims), life.EveryNth{N: 2}.Seed(dims))
	if err != nil {
		t.Fatalf("CreateStateArena: %v", err)
	}

	pair, err := BuildBindGroupPair(device, p.BindGroupLayout, uniform, arena)
	if err != nil {
		t.Fatalf("BuildBindGroupPair: %v", err)
	}
	if pair.Group(0) == nil || pair.Group(1) == nil {
		t.Fatal("bind group is nil")
	}
	pair.Destroy(device)
	if pair.Group(0) != nil {
		t.Error("Destroy left a bind group behind")
	}
}

func TestBuildBindGroupPairIncompleteArena(t *testing.T) {
	device, _, cleanup := createNoopDevice(t)
	defer cleanup()

	_, err := BuildBindGroupPair(device, nil, nil, &StateArena{})
	if !errors.Is(err, life.ErrLayoutMismatch) {
		t.Errorf("err = %v, want ErrLayoutMismatch", err)
	}
}
