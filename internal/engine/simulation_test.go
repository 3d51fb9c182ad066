package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/talgya/substrate/internal/agriculture"
	"github.com/talgya/substrate/internal/clock"
	"github.com/talgya/substrate/internal/config"
	"github.com/talgya/substrate/internal/economy"
	"github.com/talgya/substrate/internal/entropy"
	"github.com/talgya/substrate/internal/outcome"
	"github.com/talgya/substrate/internal/persistence/snapshot"
	"github.com/talgya/substrate/internal/social"
)

var epoch = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestSim(t *testing.T) (*Simulation, *clock.Fake) {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	clk := clock.NewFake(epoch)
	sim, err := New(cfg, clk, entropy.NewSeeded(cfg.Seed))
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	return sim, clk
}

func TestTradeThroughSimulation(t *testing.T) {
	sim, _ := newTestSim(t)
	if err := sim.AddResource("alice", "wood", 10); err != nil {
		t.Fatalf("seed wood: %v", err)
	}
	if err := sim.AddResource("bob", "stone", 5); err != nil {
		t.Fatalf("seed stone: %v", err)
	}
	offer, err := sim.CreateTradeOffer("alice", economy.Lot{Resource: "wood", Qty: 10}, economy.Lot{Resource: "stone", Qty: 5}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := sim.Wallet("alice").Resources["wood"]; got != 0 {
		t.Fatalf("alice wood = %d, want 0 while escrowed", got)
	}
	done, err := sim.AcceptTradeOffer("bob", offer.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if done.Status != economy.OfferCompleted || done.Buyer != "bob" {
		t.Fatalf("offer = %+v", done)
	}
	alice, bob := sim.Wallet("alice"), sim.Wallet("bob")
	if alice.Resources["stone"] != 5 || bob.Resources["wood"] != 10 || bob.Resources["stone"] != 0 {
		t.Fatalf("alice = %v bob = %v", alice.Resources, bob.Resources)
	}
	if alice.Reputation != 1 || bob.Reputation != 1 {
		t.Fatalf("reputation alice=%d bob=%d", alice.Reputation, bob.Reputation)
	}
	if len(sim.Events()) != 1 || sim.Events()[0].Category != "economy" {
		t.Fatalf("events = %+v", sim.Events())
	}
}

func TestOfferExpiresThroughTimer(t *testing.T) {
	sim, clk := newTestSim(t)
	if err := sim.AddResource("alice", "coal", 4); err != nil {
		t.Fatalf("seed: %v", err)
	}
	offer, err := sim.CreateTradeOffer("alice", economy.Lot{Resource: "coal", Qty: 4}, economy.Lot{Resource: "stone", Qty: 1}, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clk.Advance(time.Minute)
	if n := sim.Advance(1); n != 1 {
		t.Fatalf("advance changed %d, want 1", n)
	}
	if got := sim.Wallet("alice").Resources["coal"]; got != 4 {
		t.Fatalf("escrow not restored: %d", got)
	}
	if _, err := sim.AcceptTradeOffer("bob", offer.ID); !errors.Is(err, outcome.ErrNotOpen) {
		t.Fatalf("accept expired: %v", err)
	}
}

func TestLazyExpiryIsRecorded(t *testing.T) {
	sim, clk := newTestSim(t)
	if err := sim.AddResource("alice", "coal", 8); err != nil {
		t.Fatalf("seed: %v", err)
	}
	coal := economy.Lot{Resource: "coal", Qty: 4}
	stone := economy.Lot{Resource: "stone", Qty: 1}
	first, err := sim.CreateTradeOffer("alice", coal, stone, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clk.Advance(time.Minute)
	if st := sim.Stats(); st.OpenOffers != 0 {
		t.Fatalf("open offers = %d", st.OpenOffers)
	}

	second, err := sim.CreateTradeOffer("alice", coal, stone, time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clk.Advance(time.Minute)
	if _, err := sim.AcceptTradeOffer("bob", second.ID); !errors.Is(err, outcome.ErrExpired) {
		t.Fatalf("accept: %v", err)
	}

	// Timers for both offers now fire against already-expired offers.
	if n := sim.Advance(1); n != 0 {
		t.Fatalf("advance changed %d, want 0", n)
	}
	want := []string{
		"trade offer " + first.ID + " expired",
		"trade offer " + second.ID + " expired",
	}
	events := sim.Events()
	if len(events) != len(want) {
		t.Fatalf("events = %+v", events)
	}
	for i, e := range events {
		if e.Category != "economy" || e.Description != want[i] {
			t.Fatalf("event %d = %+v, want %q", i, e, want[i])
		}
	}
	if got := sim.Wallet("alice").Resources["coal"]; got != 8 {
		t.Fatalf("coal = %d, want 8", got)
	}
}

func TestHarvestAndProductionThroughTimers(t *testing.T) {
	sim, clk := newTestSim(t)
	farm, err := sim.CreateFarm("alice", "North Field", economy.Location{X: 4, Y: 70}, 30, "crops")
	if err != nil {
		t.Fatalf("farm: %v", err)
	}
	task, err := sim.PlantCrop(farm.ID, "wheat", 10, nil)
	if err != nil {
		t.Fatalf("plant: %v", err)
	}
	if _, err := sim.AddAnimal(farm.ID, "chicken", 5); err != nil {
		t.Fatalf("animals: %v", err)
	}

	if st := sim.Stats(); st.Growing != 1 || st.Farms != 1 {
		t.Fatalf("stats before harvest = %+v", st)
	}

	clk.Advance(8 * time.Minute)
	sim.Advance(1)
	if st := sim.Stats(); st.Growing != 0 {
		t.Fatalf("growing after harvest = %d", st.Growing)
	}

	f, _ := sim.Farm(farm.ID)
	if f.Inventory["wheat"] == 0 || f.Crops["wheat"] != 0 {
		t.Fatalf("harvest did not land: crops=%v inventory=%v", f.Crops, f.Inventory)
	}
	if f.Inventory["egg"] != 4 {
		t.Fatalf("eggs = %d, want 4", f.Inventory["egg"])
	}
	if _, ok := sim.AutoHarvest(task.ID); ok {
		t.Fatalf("manual harvest after timer should be a no-op")
	}
	if sim.CropTotals()["wheat"] != f.Inventory["wheat"] {
		t.Fatalf("totals = %v", sim.CropTotals())
	}
}

func TestFactionWarRecordsEvent(t *testing.T) {
	sim, _ := newTestSim(t)
	// crown and ashen start at -20 from their enemy lists.
	if _, err := sim.HandleFactionAction("ashen", "raid", "crown", ""); err != nil {
		t.Fatalf("raid: %v", err)
	}
	ch, err := sim.HandleFactionAction("ashen", "raid", "crown", "burned the granary")
	if err != nil {
		t.Fatalf("raid: %v", err)
	}
	if ch.New != -50 || sim.RelationshipStatus("crown", "ashen") != social.StatusAtWar {
		t.Fatalf("change = %+v status = %s", ch, sim.RelationshipStatus("crown", "ashen"))
	}
	var war bool
	for _, e := range sim.Events() {
		if e.Category == "diplomacy" {
			war = true
		}
	}
	if !war {
		t.Fatalf("no diplomacy event recorded: %+v", sim.Events())
	}
	goals, err := sim.GenerateFactionGoals("crown")
	if err != nil || len(goals) < 2 {
		t.Fatalf("goals = %v err = %v", goals, err)
	}
}

func TestFactionWealthFollowsMembers(t *testing.T) {
	sim, _ := newTestSim(t)
	if err := sim.JoinFaction("alice", "merchants"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := sim.Deposit("alice", decimal.NewFromInt(50)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	sim.Report(1)
	var wealth float64
	_ = sim.Do(func(w World) error {
		f, _ := w.Diplomacy.Faction("merchants")
		wealth = f.Wealth
		return nil
	})
	if wealth != 150 {
		t.Fatalf("wealth = %v, want 150", wealth)
	}
}

func TestSnapshotRestoreRearmsTimers(t *testing.T) {
	sim, clk := newTestSim(t)
	farm, err := sim.CreateFarm("alice", "Field", economy.Location{}, 20, "crops")
	if err != nil {
		t.Fatalf("farm: %v", err)
	}
	task, err := sim.PlantCrop(farm.ID, "wheat", 4, nil)
	if err != nil {
		t.Fatalf("plant: %v", err)
	}
	clk.Advance(3 * time.Minute)
	sim.Advance(5)

	snap := sim.Snapshot()
	if snap.Header.Version != snapshot.CurrentVersion || snap.Header.Tick != 5 {
		t.Fatalf("header = %+v", snap.Header)
	}

	cfg, _ := config.Default()
	restored, err := Restore(cfg, snap, clk, entropy.NewSeeded(1))
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.CurrentTick() != 5 {
		t.Fatalf("tick = %d", restored.CurrentTick())
	}
	next, ok := restored.NextTimer()
	if !ok || !next.Equal(task.HarvestAt) {
		t.Fatalf("next timer = %v, want %v", next, task.HarvestAt)
	}

	clk.Advance(5 * time.Minute)
	restored.Advance(6)
	f, _ := restored.Farm(farm.ID)
	if f.Inventory["wheat"] == 0 {
		t.Fatalf("restored harvest did not fire")
	}
	got := f.Inventory["wheat"]
	restored.Advance(7)
	f, _ = restored.Farm(farm.ID)
	if f.Inventory["wheat"] != got {
		t.Fatalf("harvest applied twice")
	}
}

func TestRestoreRejectsUnknownVersion(t *testing.T) {
	cfg, _ := config.Default()
	_, err := Restore(cfg, snapshot.V1{Header: snapshot.Header{Version: 99}}, clock.NewFake(epoch), entropy.Fixed(0.5))
	if err == nil {
		t.Fatalf("expected version error")
	}
}

func TestConcurrentCallersAreSerialized(t *testing.T) {
	sim, _ := newTestSim(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sim.Deposit("vault", decimal.NewFromInt(2))
			_ = sim.Withdraw("vault", decimal.NewFromInt(1))
		}()
	}
	wg.Wait()
	if got := sim.Wallet("vault").Coins; !got.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("balance = %s, want 150", got)
	}
}

func TestOptimizeAndBreedThroughSimulation(t *testing.T) {
	sim, clk := newTestSim(t)
	farm, _ := sim.CreateFarm("finn", "Coop", economy.Location{}, 10, "livestock")
	if _, err := sim.AddAnimal(farm.ID, "chicken", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := sim.AddResource("finn", "wheat_seeds", 2); err != nil {
		t.Fatalf("seeds: %v", err)
	}
	if _, err := sim.BreedAnimals(farm.ID, "chicken"); err != nil {
		t.Fatalf("breed: %v", err)
	}
	clk.Advance(20 * time.Minute)
	sim.Advance(1)
	f, _ := sim.Farm(farm.ID)
	if h := f.Herds["chicken"]; h.Adults != 3 || h.Babies != 0 {
		t.Fatalf("herd = %+v", h)
	}
	if _, err := sim.OptimizeFarm(farm.ID, agriculture.Upgrade{Fencing: true}); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	f, _ = sim.Farm(farm.ID)
	if f.Efficiency != 60 {
		t.Fatalf("efficiency = %v, want 60", f.Efficiency)
	}
}

type memStore struct {
	saved  []snapshot.V1
	events []Event
	failEv bool
}

func (m *memStore) Save(_ context.Context, snap snapshot.V1) error {
	m.saved = append(m.saved, snap)
	return nil
}

func (m *memStore) SaveEvents(_ context.Context, events []Event) error {
	if m.failEv {
		return errors.New("disk full")
	}
	m.events = append(m.events, events...)
	return nil
}

func TestSaveToFlushesEvents(t *testing.T) {
	sim, _ := newTestSim(t)
	if _, err := sim.UpdateRelationship("crown", "merchants", 60, "royal charter"); err != nil {
		t.Fatalf("update: %v", err)
	}
	store := &memStore{failEv: true}
	if err := sim.SaveTo(context.Background(), store); err == nil {
		t.Fatalf("expected event flush error")
	}
	store.failEv = false
	if err := sim.SaveTo(context.Background(), store); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(store.saved) != 2 || len(store.events) != 1 {
		t.Fatalf("saved %d snapshots, %d events", len(store.saved), len(store.events))
	}
	if len(sim.TakeUnsaved()) != 0 {
		t.Fatalf("events not drained")
	}
}

type memHistory struct {
	events []Event // newest first
	meta   map[string]string
}

func (m *memHistory) RecentEvents(_ context.Context, limit int) ([]Event, error) {
	if limit < len(m.events) {
		return append([]Event(nil), m.events[:limit]...), nil
	}
	return append([]Event(nil), m.events...), nil
}

func (m *memHistory) GetMeta(_ context.Context, key string) (string, error) {
	v, ok := m.meta[key]
	if !ok {
		return "", errors.New("no rows")
	}
	return v, nil
}

func TestLoadHistoryRestoresRingAndTick(t *testing.T) {
	sim, _ := newTestSim(t)
	h := &memHistory{
		events: []Event{
			{At: epoch.Add(time.Minute), Tick: 9, Description: "second", Category: "diplomacy"},
			{At: epoch, Tick: 4, Description: "first", Category: "economy"},
		},
		meta: map[string]string{"last_tick": "12"},
	}
	if err := sim.LoadHistory(context.Background(), h); err != nil {
		t.Fatalf("history: %v", err)
	}
	got := sim.Events()
	if len(got) != 2 || got[0].Description != "first" || got[1].Description != "second" {
		t.Fatalf("events = %+v, want oldest first", got)
	}
	if sim.CurrentTick() != 12 {
		t.Fatalf("tick = %d, want 12 from last_tick", sim.CurrentTick())
	}

	// A missing or stale last_tick never rewinds the clock.
	h.meta = map[string]string{"last_tick": "3"}
	if err := sim.LoadHistory(context.Background(), h); err != nil {
		t.Fatalf("history: %v", err)
	}
	h.meta = nil
	if err := sim.LoadHistory(context.Background(), h); err != nil {
		t.Fatalf("history: %v", err)
	}
	if sim.CurrentTick() != 12 {
		t.Fatalf("tick = %d after stale meta", sim.CurrentTick())
	}
	if len(sim.TakeUnsaved()) != 0 {
		t.Fatalf("history must not be queued for saving again")
	}
}
