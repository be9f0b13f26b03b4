package life

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Geometry is the tile template drawn once per cell: two triangles as six
// (x, y) positions in tile-local clip space. It is uploaded once and never
// modified.
type Geometry [12]float32

// DefaultGeometry covers 80% of a tile, leaving a visible gap between cells.
var DefaultGeometry = Geometry{
	// Bottom right triangle.
	-0.8, -0.8, 0.8, -0.8, 0.8, 0.8,
	// Top left triangle.
	-0.8, -0.8, -0.8, 0.8, 0.8, 0.8,
}

// VertexStride is the byte stride of one vertex (float32x2).
const VertexStride = 8

// VertexCount returns the number of vertices in the template.
func (g Geometry) VertexCount() uint32 {
	return uint32(len(g) / 2)
}

// Bytes returns the little-endian encoding uploaded to the vertex buffer.
func (g Geometry) Bytes() []byte {
	buf := make([]byte, len(g)*4)
	for i, v := range g {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Validate rejects templates with non-finite coordinates or triangles of
// zero area.
func (g Geometry) Validate() error {
	for i, v := range g {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: geometry coordinate %d is not finite", ErrInvalidConfig, i)
		}
	}
	for t := 0; t < 2; t++ {
		o := t * 6
		ax, ay := g[o+2]-g[o], g[o+3]-g[o+1]
		bx, by := g[o+4]-g[o], g[o+5]-g[o+1]
		if ax*by-ay*bx == 0 {
			return fmt.Errorf("%w: geometry triangle %d is degenerate", ErrInvalidConfig, t)
		}
	}
	return nil
}

// Color is a normalized RGBA colour.
type Color struct {
	R, G, B, A float64
}

// Black is the default clear colour.
var Black = Color{R: 0, G: 0, B: 0, A: 1}

// Validate checks that every component lies in [0, 1].
func (c Color) Validate() error {
	for _, v := range [4]float64{c.R, c.G, c.B, c.A} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%w: clear colour %+v out of range", ErrInvalidConfig, c)
		}
	}
	return nil
}
