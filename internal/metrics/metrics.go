// Package metrics exports Prometheus instrumentation of the frame scheduler.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gogpu/life/internal/gpu"
)

// Namespace prefixes every metric name.
const Namespace = "gpulife"

// Collector implements gpu.Observer by updating Prometheus collectors.
type Collector struct {
	// Ticks counts completed ticks by run state.
	Ticks *prometheus.CounterVec

	// Workgroups counts compute workgroups dispatched.
	Workgroups prometheus.Counter

	// TickDuration observes the wall time of one tick, including the wait
	// for the GPU.
	TickDuration prometheus.Histogram

	// Step is the step counter after the last tick.
	Step prometheus.Gauge

	// Restarts counts restarts.
	Restarts prometheus.Counter

	// Toggles counts run state changes.
	Toggles prometheus.Counter

	// Running is 1 while the scheduler is running and 0 while paused.
	Running prometheus.Gauge
}

var _ gpu.Observer = (*Collector)(nil)

// New creates the collectors and registers them on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collector{
		Ticks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "ticks_total",
				Help:      "Completed ticks by run state",
			},
			[]string{"state"},
		),
		Workgroups: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "workgroups_dispatched_total",
			Help:      "Compute workgroups dispatched",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "tick_duration_seconds",
			Help:      "Tick wall time in seconds, including the fence wait",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		Step: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "step",
			Help:      "Step counter after the last tick",
		}),
		Restarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "restarts_total",
			Help:      "Simulation restarts",
		}),
		Toggles: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "toggles_total",
			Help:      "Run state changes",
		}),
		Running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "running",
			Help:      "1 while the simulation is running, 0 while paused",
		}),
	}
}

// ObserveTick implements gpu.Observer.
func (c *Collector) ObserveTick(plan gpu.FramePlan, elapsed time.Duration) {
	state := gpu.Paused
	if plan.Running {
		state = gpu.Running
	}
	c.Ticks.WithLabelValues(state.String()).Inc()
	c.Workgroups.Add(float64(plan.Workgroups()))
	c.TickDuration.Observe(elapsed.Seconds())
	c.Step.Set(float64(plan.NextStep))
	c.setRunning(state)
}

// ObserveRestart implements gpu.Observer.
func (c *Collector) ObserveRestart() { c.Restarts.Inc() }

// ObserveToggle implements gpu.Observer.
func (c *Collector) ObserveToggle(state gpu.RunState) {
	c.Toggles.Inc()
	c.setRunning(state)
}

func (c *Collector) setRunning(state gpu.RunState) {
	if state == gpu.Running {
		c.Running.Set(1)
	} else {
		c.Running.Set(0)
	}
}

// Multi fans scheduler events out to several observers.
type Multi []gpu.Observer

var _ gpu.Observer = Multi(nil)

// ObserveTick implements gpu.Observer.
func (m Multi) ObserveTick(plan gpu.FramePlan, elapsed time.Duration) {
	for _, o := range m {
		o.ObserveTick(plan, elapsed)
	}
}

// ObserveRestart implements gpu.Observer.
func (m Multi) ObserveRestart() {
	for _, o := range m {
		o.ObserveRestart()
	}
}

// ObserveToggle implements gpu.Observer.
func (m Multi) ObserveToggle(state gpu.RunState) {
	for _, o := range m {
		o.ObserveToggle(state)
	}
}
