package engine

import (
	"context"
	"testing"
	"time"

	"github.com/talgya/substrate/internal/config"
)

func TestStepCadences(t *testing.T) {
	e := NewEngine(config.Engine{
		TickIntervalMs:     10,
		SweepEveryTicks:    2,
		ReportEveryTicks:   3,
		DriftEveryTicks:    4,
		SnapshotEveryTicks: 6,
	})
	counts := map[string]int{}
	e.OnTick = func(uint64) { counts["tick"]++ }
	e.OnSweep = func(uint64) { counts["sweep"]++ }
	e.OnReport = func(uint64) { counts["report"]++ }
	e.OnDrift = func(uint64) { counts["drift"]++ }
	e.OnSnapshot = func(uint64) { counts["snapshot"]++ }

	for i := 0; i < 12; i++ {
		e.Step()
	}
	want := map[string]int{"tick": 12, "sweep": 6, "report": 4, "drift": 3, "snapshot": 2}
	for k, v := range want {
		if counts[k] != v {
			t.Fatalf("%s ran %d times, want %d", k, counts[k], v)
		}
	}
}

func TestZeroCadenceDisablesJob(t *testing.T) {
	e := NewEngine(config.Engine{TickIntervalMs: 10})
	ran := false
	e.OnSnapshot = func(uint64) { ran = true }
	for i := 0; i < 5; i++ {
		e.Step()
	}
	if ran {
		t.Fatalf("snapshot ran with zero cadence")
	}
}

func TestRunStopsOnStop(t *testing.T) {
	e := NewEngine(config.Engine{TickIntervalMs: 1})
	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()
	e.Stop()
	e.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("engine did not stop")
	}
}

func TestAttachSnapshotsOnCadence(t *testing.T) {
	sim, _ := newTestSim(t)
	e := NewEngine(config.Engine{TickIntervalMs: 1, SnapshotEveryTicks: 2})
	store := &memStore{}
	sim.Attach(context.Background(), e, store)
	for i := 0; i < 4; i++ {
		e.Step()
	}
	if len(store.saved) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(store.saved))
	}
	if store.saved[1].Header.Tick != 4 {
		t.Fatalf("last snapshot tick = %d", store.saved[1].Header.Tick)
	}
}
