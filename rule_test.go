package life

import "testing"

func gridFrom(rows ...string) (CellState, GridDimensions) {
	d := GridDimensions{Width: uint32(len(rows[0])), Height: uint32(len(rows))}
	s := make(CellState, 0, d.Cells())
	for _, r := range rows {
		for _, c := range r {
			if c == '#' {
				s = append(s, 1)
			} else {
				s = append(s, 0)
			}
		}
	}
	return s, d
}

func TestStepBlinker(t *testing.T) {
	s, d := gridFrom(
		".....",
		"..#..",
		"..#..",
		"..#..",
		".....",
	)
	want, _ := gridFrom(
		".....",
		".....",
		".###.",
		".....",
		".....",
	)
	got := Step(s, d)
	if !got.Equal(want) {
		t.Errorf("Step(blinker) = %v, want %v", got, want)
	}
	if back := Step(got, d); !back.Equal(s) {
		t.Error("blinker did not return to its original phase after two steps")
	}
}

func TestStepBlockStable(t *testing.T) {
	s, d := gridFrom(
		"....",
		".##.",
		".##.",
		"....",
	)
	if got := Step(s, d); !got.Equal(s) {
		t.Errorf("block changed: %v", got)
	}
}

func TestStepWrapsAround(t *testing.T) {
	// A vertical blinker straddling the top/bottom edge.
	s, d := gridFrom(
		"..#..",
		"..#..",
		".....",
		".....",
		"..#..",
	)
	want, _ := gridFrom(
		".###.",
		".....",
		".....",
		".....",
		".....",
	)
	if got := Step(s, d); !got.Equal(want) {
		t.Errorf("Step(wrapped blinker) = %v, want %v", got, want)
	}
}

func TestStepPreservesLayout(t *testing.T) {
	d := GridDimensions{Width: 22, Height: 22}
	s := EveryNth{N: 3}.Seed(d)
	next := Step(s, d)
	if err := next.Validate(d); err != nil {
		t.Fatalf("Step produced invalid state: %v", err)
	}
}
