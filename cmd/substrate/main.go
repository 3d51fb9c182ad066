// Command substrate runs the persistent simulation: market, faction
// diplomacy and agriculture, snapshotting state to durable storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/talgya/substrate/internal/clock"
	"github.com/talgya/substrate/internal/config"
	"github.com/talgya/substrate/internal/engine"
	"github.com/talgya/substrate/internal/entropy"
	"github.com/talgya/substrate/internal/persistence"
	"github.com/talgya/substrate/internal/persistence/snapshot"
)

// durable is what main needs from a snapshot backend.
type durable interface {
	engine.Store
	Load(ctx context.Context) (snapshot.V1, bool, error)
}

func main() {
	configPath := flag.String("config", "", "YAML config overlaid on the built-in defaults")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(*configPath); err != nil {
		slog.Error("substrate exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Storage ───────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.Persistence.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	store, closeStore, err := openStore(cfg.Persistence)
	if err != nil {
		return err
	}
	defer closeStore()
	slog.Info("storage opened", "driver", cfg.Persistence.Driver, "path", cfg.Persistence.Path)

	// ── Load or Seed ─────────────────────────────────────────────────
	clk := clock.Real{}
	rng := entropy.New(cfg.Deterministic, cfg.Seed)

	var sim *engine.Simulation
	snap, ok, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if ok {
		slog.Info("found saved state, restoring...", "tick", snap.Header.Tick)
		sim, err = engine.Restore(cfg, snap, clk, rng)
	} else {
		slog.Info("no saved state, seeding a new world", "seed", cfg.Seed)
		sim, err = engine.New(cfg, clk, rng)
	}
	if err != nil {
		return err
	}
	if h, isHistory := store.(engine.History); ok && isHistory {
		if err := sim.LoadHistory(ctx, h); err != nil {
			return fmt.Errorf("load history: %w", err)
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(cfg.Engine)
	sim.Attach(ctx, eng, store)

	fmt.Printf("Substrate is running from tick %d (Ctrl+C to stop)\n", sim.CurrentTick())
	eng.Run(ctx)

	// Final save on shutdown; the signal context is already done.
	slog.Info("final save...")
	if err := sim.SaveTo(context.Background(), store); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	fmt.Println("Simulation stopped. State saved.")
	return nil
}

func openStore(p config.Persistence) (durable, func(), error) {
	switch p.Driver {
	case "file":
		return snapshot.NewFileStore(p.Path), func() {}, nil
	case "sqlite", "":
		db, err := persistence.Open(p.Path, p.Keep)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown persistence driver %q", p.Driver)
	}
}
