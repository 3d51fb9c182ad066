// Package engine provides the single-writer simulation and the tick loop
// that drives its timers, sweeps, reports and snapshots.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/substrate/internal/config"
)

// Cadence sets how many ticks pass between periodic jobs.
type Cadence struct {
	Sweep    int // expired-offer sweep
	Report   int // summary log line and faction wealth refresh
	Drift    int // relationship drift toward neutral
	Snapshot int // durable snapshot
}

// Engine drives the simulation forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Interval time.Duration // Wall time between ticks
	Cadence  Cadence

	// Callbacks for each cadence, populated during setup.
	OnTick     func(tick uint64) // Every tick
	OnSweep    func(tick uint64)
	OnReport   func(tick uint64)
	OnDrift    func(tick uint64)
	OnSnapshot func(tick uint64)

	stop     chan struct{}
	stopOnce sync.Once
}

// NewEngine creates an engine from configuration.
func NewEngine(cfg config.Engine) *Engine {
	interval := cfg.TickInterval()
	if interval <= 0 {
		interval = time.Second
	}
	return &Engine{
		Interval: interval,
		Cadence: Cadence{
			Sweep:    cfg.SweepEveryTicks,
			Report:   cfg.ReportEveryTicks,
			Drift:    cfg.DriftEveryTicks,
			Snapshot: cfg.SnapshotEveryTicks,
		},
		stop: make(chan struct{}),
	}
}

// Run steps the engine every Interval until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("simulation engine started", "tick", e.Tick, "interval", e.Interval)
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick, "reason", ctx.Err())
			return
		case <-e.stop:
			slog.Info("simulation engine stopped", "tick", e.Tick)
			return
		case <-ticker.C:
			e.Step()
		}
	}
}

// Stop halts the loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if due(e.Tick, e.Cadence.Sweep) && e.OnSweep != nil {
		e.OnSweep(e.Tick)
	}
	if due(e.Tick, e.Cadence.Drift) && e.OnDrift != nil {
		e.OnDrift(e.Tick)
	}
	if due(e.Tick, e.Cadence.Report) && e.OnReport != nil {
		e.OnReport(e.Tick)
	}
	if due(e.Tick, e.Cadence.Snapshot) && e.OnSnapshot != nil {
		e.OnSnapshot(e.Tick)
	}
}

func due(tick uint64, every int) bool {
	return every > 0 && tick%uint64(every) == 0
}
