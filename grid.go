package life

import (
	"encoding/binary"
	"fmt"
	"math"
)

// bytesPerCell is the size of one cell in the GPU state buffer.
const bytesPerCell = 4

// GridDimensions is the size of the simulated grid in cells.
// It is immutable once constructed.
type GridDimensions struct {
	Width  uint32
	Height uint32
}

// NewGridDimensions returns validated grid dimensions.
// Both width and height must be positive.
func NewGridDimensions(width, height uint32) (GridDimensions, error) {
	d := GridDimensions{Width: width, Height: height}
	if err := d.Validate(); err != nil {
		return GridDimensions{}, err
	}
	return d, nil
}

// Validate reports whether both dimensions are positive.
func (d GridDimensions) Validate() error {
	if d.Width == 0 || d.Height == 0 {
		return fmt.Errorf("%w: %w: %dx%d", ErrInvalidConfig, ErrZeroDimension, d.Width, d.Height)
	}
	return nil
}

// Cells returns the number of cells in the grid.
func (d GridDimensions) Cells() int {
	return int(d.Width) * int(d.Height)
}

// StateSize returns the byte length of a CellState for this grid.
func (d GridDimensions) StateSize() uint64 {
	return uint64(d.Cells()) * bytesPerCell
}

// UniformBytes encodes the dimensions as two little-endian float32 values
// (width, height), the layout of the grid uniform in the shaders.
func (d GridDimensions) UniformBytes() []byte {
	buf := make([]byte, UniformSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(d.Width)))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(d.Height)))
	return buf
}

// String returns the dimensions as "WxH".
func (d GridDimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// UniformSize is the byte size of the grid uniform (vec2<f32>).
const UniformSize = 8

// WorkgroupCount returns the number of workgroups needed to cover dim cells
// along one axis with workgroups of the given size.
func WorkgroupCount(dim, size uint32) uint32 {
	if size == 0 {
		return 0
	}
	return (dim + size - 1) / size
}

// CellState is the row-major state of every cell, 0 (dead) or 1 (alive).
// Index i addresses cell (i % width, i / width).
type CellState []uint32

// Bytes returns the little-endian encoding uploaded to a state buffer.
func (s CellState) Bytes() []byte {
	buf := make([]byte, len(s)*bytesPerCell)
	for i, v := range s {
		binary.LittleEndian.PutUint32(buf[i*bytesPerCell:], v)
	}
	return buf
}

// CellStateFromBytes decodes a state buffer read back from the GPU.
// Trailing bytes that do not form a whole cell are ignored.
func CellStateFromBytes(b []byte) CellState {
	s := make(CellState, len(b)/bytesPerCell)
	for i := range s {
		s[i] = binary.LittleEndian.Uint32(b[i*bytesPerCell:])
	}
	return s
}

// AliveCount returns the number of live cells.
func (s CellState) AliveCount() int {
	n := 0
	for _, v := range s {
		if v != 0 {
			n++
		}
	}
	return n
}

// Validate checks that the state matches the grid and holds only 0 and 1.
func (s CellState) Validate(d GridDimensions) error {
	if len(s) != d.Cells() {
		return fmt.Errorf("%w: state has %d cells, grid %s needs %d",
			ErrInvalidConfig, len(s), d, d.Cells())
	}
	for i, v := range s {
		if v > 1 {
			return fmt.Errorf("%w: cell %d has value %d", ErrInvalidConfig, i, v)
		}
	}
	return nil
}

// Equal reports whether two states hold the same cells.
func (s CellState) Equal(other CellState) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}
