// Command gpulife runs Conway's Game of Life on the GPU.
//
// The simulation renders into an offscreen surface. Frames can be exported
// as PNG snapshots and the scheduler is instrumented with Prometheus.
//
// Keys read from standard input (followed by Enter on a line-buffered
// terminal):
//
//	p  toggle paused/running
//	r  restart from fresh seeds
//	q  quit
//
// Usage:
//
//	gpulife -backend=vulkan -ticks=100 -snapshot-dir=frames -snapshot-every=10
//	gpulife -backend=noop -interactive -metrics-addr=:9090
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/life"
	"github.com/gogpu/life/internal/gpu"
	"github.com/gogpu/life/internal/metrics"
	"github.com/gogpu/life/shader"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/prometheus/client_golang/prometheus"
)

// options holds the parsed command line.
type options struct {
	width, height uint
	workgroup     uint
	interval      time.Duration
	seedMode      string
	probability   float64
	seed          uint64
	shaderURL     string
	shaderDir     string
	preflight     bool
	backend       string
	ticks         uint64
	interactive   bool
	snapshotDir   string
	snapshotEvery uint64
	scale         int
	metricsAddr   string
	verify        bool
	logLevel      string
	surfaceWidth  uint
	surfaceHeight uint
	memoryBudget  uint64
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("gpulife", flag.ContinueOnError)
	fs.UintVar(&o.width, "width", life.DefaultGridSize, "grid width in cells")
	fs.UintVar(&o.height, "height", life.DefaultGridSize, "grid height in cells")
	fs.UintVar(&o.workgroup, "workgroup", life.DefaultWorkgroupSize, "compute workgroup edge length")
	fs.DurationVar(&o.interval, "interval", life.DefaultTickInterval, "tick interval")
	fs.StringVar(&o.seedMode, "seed-mode", "pattern", "initial state: pattern (every third cell, complement in B) or random")
	fs.Float64Var(&o.probability, "probability", 0.6, "alive probability for -seed-mode=random")
	fs.Uint64Var(&o.seed, "seed", uint64(time.Now().UnixNano()), "random seed for -seed-mode=random")
	fs.StringVar(&o.shaderURL, "shader-url", "", "fetch shaders over HTTP from this base URL (e.g. "+shader.DefaultBaseURL+")")
	fs.StringVar(&o.shaderDir, "shader-dir", "", "read shaders from this directory")
	fs.BoolVar(&o.preflight, "preflight", false, "validate shaders with naga before creating the device")
	fs.StringVar(&o.backend, "backend", "vulkan", "GPU backend: vulkan or noop")
	fs.Uint64Var(&o.ticks, "ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	fs.BoolVar(&o.interactive, "interactive", false, "start paused; press p to run")
	fs.StringVar(&o.snapshotDir, "snapshot-dir", "", "write PNG snapshots into this directory")
	fs.Uint64Var(&o.snapshotEvery, "snapshot-every", 1, "snapshot every N ticks")
	fs.IntVar(&o.scale, "scale", 1, "snapshot upscale factor")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.BoolVar(&o.verify, "verify", false, "check every generation against the CPU rule")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.UintVar(&o.surfaceWidth, "surface-width", 440, "render target width in pixels")
	fs.UintVar(&o.surfaceHeight, "surface-height", 440, "render target height in pixels")
	fs.Uint64Var(&o.memoryBudget, "memory-budget", life.DefaultMemoryBudget>>20, "device buffer budget in MB")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.shaderURL != "" && o.shaderDir != "" {
		return nil, fmt.Errorf("%w: -shader-url and -shader-dir are mutually exclusive", life.ErrInvalidConfig)
	}
	if o.snapshotEvery == 0 {
		return nil, fmt.Errorf("%w: -snapshot-every must be positive", life.ErrInvalidConfig)
	}
	for _, f := range []struct {
		name  string
		value uint
	}{
		{"width", o.width},
		{"height", o.height},
		{"workgroup", o.workgroup},
		{"surface-width", o.surfaceWidth},
		{"surface-height", o.surfaceHeight},
	} {
		if uint64(f.value) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: -%s=%d exceeds %d", life.ErrInvalidConfig, f.name, f.value, uint64(math.MaxUint32))
		}
	}
	if o.memoryBudget == 0 || o.memoryBudget > math.MaxUint64>>20 {
		return nil, fmt.Errorf("%w: -memory-budget=%d out of range", life.ErrInvalidConfig, o.memoryBudget)
	}
	return o, nil
}

// config builds the simulation configuration from the flags.
func (o *options) config() (life.Config, error) {
	opts := []life.Option{
		life.WithGrid(uint32(o.width), uint32(o.height)),
		life.WithWorkgroupSize(uint32(o.workgroup)),
		life.WithTickInterval(o.interval),
		life.WithInteractive(o.interactive),
		life.WithMemoryBudget(o.memoryBudget << 20),
	}
	switch o.seedMode {
	case "pattern":
	case "random":
		opts = append(opts, life.WithSeed(life.NewRandom(o.probability, o.seed)))
	default:
		return life.Config{}, fmt.Errorf("%w: unknown -seed-mode %q", life.ErrInvalidConfig, o.seedMode)
	}
	return life.NewConfig(opts...)
}

// fetcher selects the shader source.
func (o *options) fetcher() shader.Fetcher {
	switch {
	case o.shaderURL != "":
		return shader.NewHTTPFetcher(o.shaderURL)
	case o.shaderDir != "":
		return shader.FSFetcher{FS: os.DirFS(o.shaderDir)}
	default:
		return shader.Embedded()
	}
}

// acquire opens the device of the selected backend.
func (o *options) acquire(ctx context.Context, surface gpu.Surface) (*gpu.Device, error) {
	switch o.backend {
	case "vulkan":
		return gpu.AcquireVulkan(ctx, surface)
	case "noop":
		return gpu.Acquire(ctx, noop.API{}, surface)
	default:
		return nil, fmt.Errorf("%w: unknown -backend %q", life.ErrInvalidConfig, o.backend)
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: -log-level: %v", life.ErrInvalidConfig, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})), nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "gpulife: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	logger, err := newLogger(o.logLevel)
	if err != nil {
		return err
	}
	life.SetLogger(logger)

	cfg, err := o.config()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prog, err := shader.Load(ctx, o.fetcher(), shader.DefaultNames)
	if err != nil {
		return err
	}
	if err := prog.CheckWorkgroupSize(cfg.WorkgroupSize); err != nil {
		return err
	}
	if o.preflight {
		if err := prog.Validate(); err != nil {
			return err
		}
	}

	surface := gpu.NewOffscreenSurface(uint32(o.surfaceWidth), uint32(o.surfaceHeight))
	dev, err := o.acquire(ctx, surface)
	if err != nil {
		return err
	}
	defer dev.Close()

	sim, err := gpu.NewSimulation(dev, cfg, prog)
	if err != nil {
		return err
	}
	defer sim.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hook, err := newAfterTick(sim, o, cancel)
	if err != nil {
		return err
	}
	sim.SetObserver(metrics.Multi{collector, hook})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := sim.RunFunc(gctx, hook.afterTick)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return readKeys(gctx, os.Stdin, sim, cancel)
	})
	if o.metricsAddr != "" {
		serveMetrics(gctx, g, o.metricsAddr, reg)
	}

	logger.Info("gpulife started",
		"backend", o.backend, "adapter", dev.AdapterName, "grid", cfg.Grid.String(),
		"interval", cfg.TickInterval, "state", sim.State())
	err = g.Wait()
	logger.Info("gpulife stopped", "step", sim.Step())
	return err
}
