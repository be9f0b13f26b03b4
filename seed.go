package life

import (
	"math/rand/v2"
	"sync"
)

// SeedPolicy produces an initial CellState for a grid.
//
// Every policy must return exactly d.Cells() cells, each 0 or 1, so that
// deterministic and randomized policies share one buffer layout.
type SeedPolicy interface {
	Seed(d GridDimensions) CellState
}

// SeedFunc adapts a function to the SeedPolicy interface.
type SeedFunc func(d GridDimensions) CellState

// Seed calls f(d).
func (f SeedFunc) Seed(d GridDimensions) CellState { return f(d) }

// EveryNth is a deterministic policy: cell i is alive iff i % N == 0.
// N values below 1 are treated as 1 (every cell alive).
type EveryNth struct {
	N int
}

// Seed implements SeedPolicy.
func (p EveryNth) Seed(d GridDimensions) CellState {
	n := p.N
	if n < 1 {
		n = 1
	}
	s := make(CellState, d.Cells())
	for i := range s {
		if i%n == 0 {
			s[i] = 1
		}
	}
	return s
}

// Complement inverts another policy: cells it marks alive become dead and
// vice versa.
type Complement struct {
	Policy SeedPolicy
}

// Seed implements SeedPolicy.
func (p Complement) Seed(d GridDimensions) CellState {
	s := p.Policy.Seed(d)
	for i, v := range s {
		s[i] = 1 - v
	}
	return s
}

// Random marks each cell alive when a uniform draw in [0, 1) falls below
// Probability. Policies created with the same seed yield the same sequence
// of states; each call to Seed draws a fresh state.
//
// Random is safe for concurrent use.
type Random struct {
	Probability float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a randomized policy with a fixed PCG seed.
func NewRandom(probability float64, seed uint64) *Random {
	return &Random{
		Probability: probability,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Seed implements SeedPolicy.
func (p *Random) Seed(d GridDimensions) CellState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := make(CellState, d.Cells())
	for i := range s {
		if p.rng.Float64() < p.Probability {
			s[i] = 1
		}
	}
	return s
}
