package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/substrate/internal/agriculture"
	"github.com/talgya/substrate/internal/clock"
	"github.com/talgya/substrate/internal/config"
	"github.com/talgya/substrate/internal/economy"
	"github.com/talgya/substrate/internal/entropy"
	"github.com/talgya/substrate/internal/persistence/snapshot"
	"github.com/talgya/substrate/internal/social"
	"github.com/talgya/substrate/internal/timers"
	"github.com/talgya/substrate/internal/world"
)

// maxEvents bounds the in-memory event ring.
const maxEvents = 1000

// Event is a notable occurrence in the simulation.
type Event struct {
	At          time.Time `json:"at" db:"at"`
	Tick        uint64    `json:"tick" db:"tick"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"` // "economy", "diplomacy", "agriculture"
}

// World is the state a critical section may touch.
type World struct {
	Market    *economy.Market
	Diplomacy *social.Diplomacy
	Farms     *agriculture.Manager
}

// Simulation is the single writer. Every exported method runs under one
// mutex, so each operation completes before the next begins and timer
// callbacks re-enter the same path.
type Simulation struct {
	mu sync.Mutex

	cfg   config.Config
	clk   clock.Clock
	rng   entropy.Source
	queue *timers.Queue
	world World

	events   []Event
	unsaved  []Event
	lastTick uint64
}

// New seeds a fresh simulation from configuration. Opening supply and
// demand come from seeded noise.
func New(cfg config.Config, clk clock.Clock, rng entropy.Source) (*Simulation, error) {
	q := timers.NewQueue()
	market := economy.New(cfg.MarketConfig(), clk, rng, q)
	for _, def := range world.MarketConditions(world.DefaultConditions(cfg.Seed), cfg.ResourceDefs()) {
		market.RegisterResource(def)
	}
	dip, err := social.New(cfg.FactionDefs(), clk)
	if err != nil {
		return nil, fmt.Errorf("factions: %w", err)
	}
	farms := agriculture.New(cfg.AgricultureConfig(), cfg.Catalog(), market, clk, rng, q)

	s := &Simulation{
		cfg:   cfg,
		clk:   clk,
		rng:   rng,
		queue: q,
		world: World{Market: market, Diplomacy: dip, Farms: farms},
	}
	market.OnExpire(s.offerExpired)
	slog.Info("simulation seeded",
		"resources", len(market.ResourceIDs()),
		"factions", len(dip.FactionIDs()),
		"crops", len(farms.Catalog().Crops),
		"animals", len(farms.Catalog().Animals),
	)
	return s, nil
}

// Restore rebuilds a simulation from a snapshot. Maps and sets are rebuilt
// explicitly and every pending timer is re-armed at max(0, due-now).
func Restore(cfg config.Config, snap snapshot.V1, clk clock.Clock, rng entropy.Source) (*Simulation, error) {
	if snap.Header.Version != snapshot.CurrentVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Header.Version, snapshot.CurrentVersion)
	}
	q := timers.NewQueue()
	mcfg := cfg.MarketConfig()
	mcfg.Currency = economy.RestoreCurrency(snap.Currency)
	market := economy.Restore(mcfg, clk, rng, q, snap.Market)
	for _, def := range cfg.ResourceDefs() {
		market.RegisterResource(def)
	}
	dip := social.Restore(clk, snap.Factions)
	farms := agriculture.Restore(cfg.AgricultureConfig(), market, clk, rng, q, snap.Agriculture)

	s := &Simulation{
		cfg:      cfg,
		clk:      clk,
		rng:      rng,
		queue:    q,
		world:    World{Market: market, Diplomacy: dip, Farms: farms},
		lastTick: snap.Header.Tick,
	}
	market.OnExpire(s.offerExpired)
	slog.Info("simulation restored",
		"tick", snap.Header.Tick,
		"taken_at", snap.Header.TakenAt,
		"pending_timers", q.Len(),
		"farms", farms.FarmCount(),
	)
	return s, nil
}

// Do runs fn as one indivisible unit of work.
func (s *Simulation) Do(fn func(w World) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.world)
}

// Advance fires every timer due at the current clock time. It returns the
// number of timers that changed state.
func (s *Simulation) Advance(tick uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTick = tick
	return s.fireDue()
}

func (s *Simulation) fireDue() int {
	changed := 0
	for _, t := range s.queue.PopDue(s.clk.Now()) {
		if s.dispatch(t) {
			changed++
		}
	}
	return changed
}

func (s *Simulation) dispatch(t timers.Timer) bool {
	switch t.Kind {
	case timers.KindOfferExpiry:
		return s.world.Market.ExpireOffer(t.Ref)
	case timers.KindHarvest:
		task, ok := s.world.Farms.AutoHarvest(t.Ref)
		if !ok {
			return false
		}
		s.record("agriculture", fmt.Sprintf("farm %s harvested %d %s", task.FarmID, task.Yield, task.Crop))
		return true
	default:
		return s.world.Farms.Dispatch(t)
	}
}

func (s *Simulation) offerExpired(o *economy.TradeOffer) {
	s.record("economy", fmt.Sprintf("trade offer %s expired", o.ID))
}

// PendingTimers reports the timer queue length.
func (s *Simulation) PendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// NextTimer returns the earliest pending due time.
func (s *Simulation) NextTimer() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Next()
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick
}

// Snapshot captures the full state as a versioned snapshot.
func (s *Simulation) Snapshot() snapshot.V1 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.V1{
		Header: snapshot.Header{
			Version: snapshot.CurrentVersion,
			TakenAt: s.clk.Now(),
			Tick:    s.lastTick,
		},
		Currency:    economy.ExportCurrency(s.world.Market.Currency()),
		Market:      s.world.Market.Export(),
		Factions:    s.world.Diplomacy.Export(),
		Agriculture: s.world.Farms.Export(),
	}
}

// Events returns a copy of the recent event ring.
func (s *Simulation) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// TakeUnsaved returns events recorded since the last call.
func (s *Simulation) TakeUnsaved() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.unsaved
	s.unsaved = nil
	return out
}

func (s *Simulation) record(category, description string) {
	e := Event{At: s.clk.Now(), Tick: s.lastTick, Description: description, Category: category}
	s.events = append(s.events, e)
	s.unsaved = append(s.unsaved, e)
	// Trim old events to prevent unbounded growth (keep last 1000).
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	if len(s.unsaved) > maxEvents {
		s.unsaved = s.unsaved[len(s.unsaved)-maxEvents:]
	}
}
