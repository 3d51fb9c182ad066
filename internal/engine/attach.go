package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/talgya/substrate/internal/persistence/snapshot"
)

// saveTimeout bounds one periodic snapshot write.
const saveTimeout = 30 * time.Second

// Store persists snapshots. Writes must be all-or-nothing.
type Store interface {
	Save(ctx context.Context, snap snapshot.V1) error
}

// EventSink receives simulation events for durable history.
type EventSink interface {
	SaveEvents(ctx context.Context, events []Event) error
}

// History reads back what a store persisted alongside its snapshots.
type History interface {
	RecentEvents(ctx context.Context, limit int) ([]Event, error)
	GetMeta(ctx context.Context, key string) (string, error)
}

// LoadHistory refills the event ring from h after a restore and checks the
// stored last_tick against the snapshot. The later of the two wins.
func (s *Simulation) LoadHistory(ctx context.Context, h History) error {
	events, err := h.RecentEvents(ctx, maxEvents)
	if err != nil {
		return fmt.Errorf("recent events: %w", err)
	}
	slices.Reverse(events)

	var metaTick uint64
	haveTick := false
	if v, err := h.GetMeta(ctx, "last_tick"); err == nil {
		if t, err := strconv.ParseUint(v, 10, 64); err == nil {
			metaTick, haveTick = t, true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(events, s.events...)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	if haveTick && metaTick != s.lastTick {
		slog.Warn("stored tick disagrees with snapshot", "meta_tick", metaTick, "snapshot_tick", s.lastTick)
		s.lastTick = max(s.lastTick, metaTick)
	}
	slog.Info("event history loaded", "events", len(events), "tick", s.lastTick)
	return nil
}

// Attach wires the simulation into the engine's cadences. store may be nil
// to run without persistence. If store also implements EventSink, events
// are flushed with every snapshot.
func (s *Simulation) Attach(ctx context.Context, e *Engine, store Store) {
	s.mu.Lock()
	e.Tick = s.lastTick
	s.mu.Unlock()

	e.OnTick = func(tick uint64) { s.Advance(tick) }
	e.OnSweep = func(uint64) { s.ExpireOffers() }
	e.OnDrift = func(uint64) { s.Drift() }
	e.OnReport = func(tick uint64) { s.Report(tick) }
	if store == nil {
		return
	}
	e.OnSnapshot = func(tick uint64) {
		if err := s.SaveTo(ctx, store); err != nil {
			// The next cadence retries; in-memory state is untouched.
			slog.Error("snapshot failed", "tick", tick, "error", err)
		}
	}
}

// SaveTo writes a snapshot and flushes unsaved events when the store
// accepts them. Events are put back if the flush fails.
func (s *Simulation) SaveTo(ctx context.Context, store Store) error {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	snap := s.Snapshot()
	if err := store.Save(ctx, snap); err != nil {
		return err
	}
	sink, ok := store.(EventSink)
	if !ok {
		return nil
	}
	events := s.TakeUnsaved()
	if err := sink.SaveEvents(ctx, events); err != nil {
		s.requeueUnsaved(events)
		return err
	}
	return nil
}

func (s *Simulation) requeueUnsaved(events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsaved = append(events, s.unsaved...)
	if len(s.unsaved) > maxEvents {
		s.unsaved = s.unsaved[len(s.unsaved)-maxEvents:]
	}
}
