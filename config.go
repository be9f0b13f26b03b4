package life

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	// DefaultGridSize is the default width and height of the grid.
	DefaultGridSize = 22

	// DefaultWorkgroupSize is the default compute workgroup edge length.
	// It must match the @workgroup_size of the compute shader.
	DefaultWorkgroupSize = 8

	// DefaultTickInterval is the default wall-clock period between ticks.
	DefaultTickInterval = 200 * time.Millisecond

	// DefaultMemoryBudget is the default byte budget for device buffers
	// (256 MB).
	DefaultMemoryBudget = 256 << 20
)

// Config holds the simulation constants. It is immutable once passed to the
// GPU core; build it with NewConfig and functional options.
type Config struct {
	// Grid is the simulated grid size.
	Grid GridDimensions

	// WorkgroupSize is the edge length of a square compute workgroup.
	WorkgroupSize uint32

	// TickInterval is the fixed period of the scheduler loop.
	TickInterval time.Duration

	// ClearColor is the render pass background.
	ClearColor Color

	// Geometry is the per-instance tile template.
	Geometry Geometry

	// Seed produces the initial state of buffer A.
	Seed SeedPolicy

	// SecondarySeed produces the initial state of buffer B.
	// If nil, Seed is used for both buffers.
	SecondarySeed SeedPolicy

	// Interactive starts the scheduler paused and waits for a toggle.
	// Non-interactive simulations run from the first tick.
	Interactive bool

	// MemoryBudget caps the bytes of device buffers the simulation may
	// allocate. RequiredMemory must fit in it.
	MemoryBudget uint64
}

// Option configures a Config.
//
// Example:
//
//	cfg, err := life.NewConfig(
//	    life.WithGrid(64, 64),
//	    life.WithSeed(life.NewRandom(0.3, 42)),
//	    life.WithInteractive(true),
//	)
type Option func(*Config)

// DefaultConfig returns the configuration of the reference program:
// a 22x22 grid, workgroups of 8, a 200ms tick, every third cell alive in
// buffer A and the complement in buffer B.
func DefaultConfig() Config {
	return Config{
		Grid:          GridDimensions{Width: DefaultGridSize, Height: DefaultGridSize},
		WorkgroupSize: DefaultWorkgroupSize,
		TickInterval:  DefaultTickInterval,
		ClearColor:    Black,
		Geometry:      DefaultGeometry,
		Seed:          EveryNth{N: 3},
		SecondarySeed: Complement{Policy: EveryNth{N: 3}},
		MemoryBudget:  DefaultMemoryBudget,
	}
}

// NewConfig applies opts to DefaultConfig and validates the result.
func NewConfig(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithGrid sets the grid size.
func WithGrid(width, height uint32) Option {
	return func(c *Config) {
		c.Grid = GridDimensions{Width: width, Height: height}
	}
}

// WithWorkgroupSize sets the compute workgroup edge length.
func WithWorkgroupSize(n uint32) Option {
	return func(c *Config) {
		c.WorkgroupSize = n
	}
}

// WithTickInterval sets the scheduler period.
func WithTickInterval(d time.Duration) Option {
	return func(c *Config) {
		c.TickInterval = d
	}
}

// WithClearColor sets the render pass background colour.
func WithClearColor(col Color) Option {
	return func(c *Config) {
		c.ClearColor = col
	}
}

// WithGeometry sets the tile template.
func WithGeometry(g Geometry) Option {
	return func(c *Config) {
		c.Geometry = g
	}
}

// WithSeed sets the initial-state policy for both buffers.
// It clears any secondary policy set earlier.
func WithSeed(p SeedPolicy) Option {
	return func(c *Config) {
		c.Seed = p
		c.SecondarySeed = nil
	}
}

// WithSecondarySeed sets a distinct initial-state policy for buffer B.
func WithSecondarySeed(p SeedPolicy) Option {
	return func(c *Config) {
		c.SecondarySeed = p
	}
}

// WithInteractive makes the scheduler start paused.
func WithInteractive(interactive bool) Option {
	return func(c *Config) {
		c.Interactive = interactive
	}
}

// WithMemoryBudget sets the device buffer budget in bytes.
func WithMemoryBudget(bytes uint64) Option {
	return func(c *Config) {
		c.MemoryBudget = bytes
	}
}

// RequiredMemory returns the bytes of device buffers the configuration
// needs: the grid uniform, the tile template and both state buffers.
func (c Config) RequiredMemory() uint64 {
	return UniformSize + uint64(len(c.Geometry))*4 + 2*c.Grid.StateSize()
}

// Validate rejects configurations that cannot produce consistent GPU
// resources. It runs before any device object is created.
func (c Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if c.WorkgroupSize == 0 {
		return fmt.Errorf("%w: workgroup size must be positive", ErrInvalidConfig)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive, got %v", ErrInvalidConfig, c.TickInterval)
	}
	if err := c.ClearColor.Validate(); err != nil {
		return err
	}
	if err := c.Geometry.Validate(); err != nil {
		return err
	}
	if c.Seed == nil {
		return fmt.Errorf("%w: seed policy is nil", ErrInvalidConfig)
	}
	if need := c.RequiredMemory(); need > c.MemoryBudget {
		return fmt.Errorf("%w: grid %s needs %d bytes of buffers, budget is %d",
			ErrInvalidConfig, c.Grid, need, c.MemoryBudget)
	}
	return nil
}

// SeedStates draws fresh initial states for buffer A and buffer B.
func (c Config) SeedStates() (CellState, CellState, error) {
	a := c.Seed.Seed(c.Grid)
	secondary := c.SecondarySeed
	if secondary == nil {
		secondary = c.Seed
	}
	b := secondary.Seed(c.Grid)
	if err := a.Validate(c.Grid); err != nil {
		return nil, nil, fmt.Errorf("seed buffer A: %w", err)
	}
	if err := b.Validate(c.Grid); err != nil {
		return nil, nil, fmt.Errorf("seed buffer B: %w", err)
	}
	return a, b, nil
}

// Workgroups returns the dispatch size along x and y.
func (c Config) Workgroups() (uint32, uint32) {
	return WorkgroupCount(c.Grid.Width, c.WorkgroupSize), WorkgroupCount(c.Grid.Height, c.WorkgroupSize)
}
