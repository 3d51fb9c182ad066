// Package agriculture schedules crop growth and livestock breeding, maturation
// and production, pushing every yield into the resource market.
//
// All deferred work goes through a timers.Scheduler. Every callback re-checks
// entity state before mutating, so a timer that fires twice (for example
// after a restart re-arm) changes nothing the second time.
package agriculture

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/talgya/substrate/internal/clock"
	"github.com/talgya/substrate/internal/economy"
	"github.com/talgya/substrate/internal/entropy"
	"github.com/talgya/substrate/internal/outcome"
	"github.com/talgya/substrate/internal/timers"
)

const (
	// productionRate is output per adult per production tick.
	productionRate = 0.8
	// breedingItemQty is consumed per breeding.
	breedingItemQty = 2
	// efficiencyYieldWeight scales the efficiency bonus on harvests.
	efficiencyYieldWeight = 0.5
	// produceVolatility is the price volatility registered for crops and products.
	produceVolatility = 0.1

	// MaxBatch bounds one planting or purchase.
	MaxBatch = 1_000_000
	// MaxHerd bounds one herd, babies included.
	MaxHerd = 1_000_000
)

// TaskStatus is the state of a planting task.
type TaskStatus string

const (
	TaskGrowing   TaskStatus = "growing"
	TaskHarvested TaskStatus = "harvested"
)

// PlantingTask tracks one planting from seed to harvest. Harvested tasks
// are immutable.
type PlantingTask struct {
	ID          string            `json:"id"`
	FarmID      string            `json:"farm_id"`
	Crop        string            `json:"crop"`
	Qty         int               `json:"qty"`
	Plot        *economy.Location `json:"plot,omitempty"`
	PlantedAt   time.Time         `json:"planted_at"`
	HarvestAt   time.Time         `json:"harvest_at"`
	Status      TaskStatus        `json:"status"`
	Yield       int               `json:"yield"`
	HarvestedAt time.Time         `json:"harvested_at,omitempty"`
}

// Maturation promotes one baby to adult when it comes due.
type Maturation struct {
	ID     string    `json:"id"`
	FarmID string    `json:"farm_id"`
	Animal string    `json:"animal"`
	DueAt  time.Time `json:"due_at"`
	Done   bool      `json:"done"`
}

// ProductionSchedule is the recurring product tick for one animal type on
// one farm.
type ProductionSchedule struct {
	FarmID  string        `json:"farm_id"`
	Animal  string        `json:"animal"`
	Product string        `json:"product"`
	Period  time.Duration `json:"period"`
	NextAt  time.Time     `json:"next_at"`
}

// Key is the timer reference for the schedule.
func (p *ProductionSchedule) Key() string {
	return productionKey(p.FarmID, p.Animal)
}

func productionKey(farmID, animal string) string {
	return farmID + "/" + animal
}

// Config tunes the Manager.
type Config struct {
	// EconomyIntegration charges seed, animal, breeding and upgrade costs
	// to owners and credits yields to their wallets.
	EconomyIntegration bool
	Upgrades           UpgradeCosts
}

// DefaultConfig enables economy integration with standard upgrade prices.
func DefaultConfig() Config {
	return Config{
		EconomyIntegration: true,
		Upgrades: UpgradeCosts{
			Irrigation:      decimal.NewFromInt(100),
			Fencing:         decimal.NewFromInt(50),
			Lighting:        decimal.NewFromInt(75),
			AutomationLevel: decimal.NewFromInt(20),
		},
	}
}

// Manager owns farms, planting tasks and livestock schedules.
type Manager struct {
	cfg    Config
	cat    Catalog
	market *economy.Market
	clk    clock.Clock
	rng    entropy.Source
	sched  timers.Scheduler

	farms       map[string]*Farm
	tasks       map[string]*PlantingTask
	maturations map[string]*Maturation
	production  map[string]*ProductionSchedule
	totals      map[string]int
}

// New creates a Manager and registers every crop and animal product with
// the market, priced at its economic value.
func New(cfg Config, cat Catalog, market *economy.Market, clk clock.Clock, rng entropy.Source, sched timers.Scheduler) *Manager {
	m := newManager(cfg, cat, market, clk, rng, sched)
	m.registerResources()
	return m
}

func newManager(cfg Config, cat Catalog, market *economy.Market, clk clock.Clock, rng entropy.Source, sched timers.Scheduler) *Manager {
	return &Manager{
		cfg:         cfg,
		cat:         cat,
		market:      market,
		clk:         clk,
		rng:         rng,
		sched:       sched,
		farms:       make(map[string]*Farm),
		tasks:       make(map[string]*PlantingTask),
		maturations: make(map[string]*Maturation),
		production:  make(map[string]*ProductionSchedule),
		totals:      make(map[string]int),
	}
}

func (m *Manager) registerResources() {
	for _, id := range m.cat.CropIDs() {
		c := m.cat.Crops[id]
		m.market.RegisterResource(economy.ResourceDef{ID: c.ID, BasePrice: c.EconomicValue, Volatility: produceVolatility})
	}
	for _, id := range m.cat.AnimalIDs() {
		a := m.cat.Animals[id]
		if a.Produces() {
			m.market.RegisterResource(economy.ResourceDef{ID: a.Product, BasePrice: a.ProductValue, Volatility: produceVolatility})
		}
	}
}

// Catalog returns the crop and animal tables.
func (m *Manager) Catalog() Catalog {
	return m.cat
}

// CreateFarm builds a new active farm. No funds are checked.
func (m *Manager) CreateFarm(owner, name string, loc economy.Location, size int, specialization string) (*Farm, error) {
	if owner == "" || size <= 0 {
		return nil, outcome.Fail(outcome.KindInvalidRequest, "farm needs an owner and positive size, got %q size %d", owner, size)
	}
	f := &Farm{
		ID:             uuid.NewString(),
		Owner:          owner,
		Name:           name,
		Location:       loc,
		Size:           size,
		Specialization: specialization,
		Crops:          make(map[string]int),
		Herds:          make(map[string]*Herd),
		Inventory:      make(map[string]int),
		Investment:     decimal.Zero,
		Revenue:        decimal.Zero,
		Active:         true,
		CreatedAt:      m.clk.Now(),
	}
	f.Efficiency = CalculateEfficiency(f)
	m.farms[f.ID] = f
	slog.Info("farm created", "farm", f.ID, "owner", owner, "size", size)
	return f, nil
}

// Farm looks up a farm.
func (m *Manager) Farm(id string) (*Farm, bool) {
	f, ok := m.farms[id]
	return f, ok
}

// FarmsOf returns owner's farms ordered by creation time.
func (m *Manager) FarmsOf(owner string) []*Farm {
	var out []*Farm
	for _, f := range m.farms {
		if f.Owner == owner {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// FarmCount returns the number of farms.
func (m *Manager) FarmCount() int {
	return len(m.farms)
}

// SetFarmActive toggles production. Pending timers are not cancelled; they
// check the flag when they fire.
func (m *Manager) SetFarmActive(id string, active bool) error {
	f, ok := m.farms[id]
	if !ok {
		return outcome.Fail(outcome.KindNotFound, "farm %s", id)
	}
	f.Active = active
	return nil
}

// Task looks up a planting task.
func (m *Manager) Task(id string) (*PlantingTask, bool) {
	t, ok := m.tasks[id]
	return t, ok
}

// GrowingTasks returns tasks still waiting for harvest, earliest first.
func (m *Manager) GrowingTasks() []*PlantingTask {
	var out []*PlantingTask
	for _, t := range m.tasks {
		if t.Status == TaskGrowing {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].HarvestAt.Equal(out[j].HarvestAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].HarvestAt.Before(out[j].HarvestAt)
	})
	return out
}

// Production looks up the production schedule for an animal type on a farm.
func (m *Manager) Production(farmID, animal string) (*ProductionSchedule, bool) {
	p, ok := m.production[productionKey(farmID, animal)]
	return p, ok
}

// CropTotals returns cumulative harvested units per crop.
func (m *Manager) CropTotals() map[string]int {
	out := make(map[string]int, len(m.totals))
	for k, v := range m.totals {
		out[k] = v
	}
	return out
}

// PlantCrop starts a planting and schedules its harvest.
func (m *Manager) PlantCrop(farmID, crop string, qty int, plot *economy.Location) (*PlantingTask, error) {
	f, ok := m.farms[farmID]
	cd, known := m.cat.Crops[crop]
	if !ok || !known {
		return nil, outcome.Fail(outcome.KindInvalidFarmOrCrop, "farm %s crop %s", farmID, crop)
	}
	if qty <= 0 || qty > MaxBatch {
		return nil, outcome.Fail(outcome.KindInvalidRequest, "plant %d %s", qty, crop)
	}
	if !f.Active {
		return nil, outcome.Fail(outcome.KindNotOpen, "farm %s is inactive", farmID)
	}
	if m.cfg.EconomyIntegration {
		cost := cd.SeedCost.Mul(decimal.NewFromInt(int64(qty)))
		if err := m.market.Withdraw(f.Owner, cost); err != nil {
			return nil, err
		}
		f.Investment = f.Investment.Add(cost)
	}

	now := m.clk.Now()
	t := &PlantingTask{
		ID:        uuid.NewString(),
		FarmID:    f.ID,
		Crop:      crop,
		Qty:       qty,
		PlantedAt: now,
		HarvestAt: now.Add(cd.GrowthTime),
		Status:    TaskGrowing,
	}
	if plot != nil {
		p := *plot
		t.Plot = &p
	}
	f.Crops[crop] += qty
	m.tasks[t.ID] = t
	m.schedule(t.HarvestAt, timers.KindHarvest, t.ID)
	return t, nil
}

// HarvestYield computes the realized yield of a planting: the raw yield
// avg*qty + u*variation*qty (u in [-1, 1]) floored at 1, then scaled by the
// farm's efficiency bonus.
func HarvestYield(cd CropDef, qty int, efficiency, u float64) int {
	raw := cd.AverageYield*float64(qty) + u*cd.YieldVariation*float64(qty)
	if raw < 1 {
		raw = 1
	}
	return int(math.Floor(raw * (1 + efficiency/100*efficiencyYieldWeight)))
}

// AutoHarvest completes a growing task. It returns false, changing nothing,
// when the task is unknown or already harvested.
func (m *Manager) AutoHarvest(taskID string) (*PlantingTask, bool) {
	t, ok := m.tasks[taskID]
	if !ok || t.Status != TaskGrowing {
		return t, false
	}
	f := m.farms[t.FarmID]
	cd := m.cat.Crops[t.Crop]
	outcome.Invariant(f != nil, "task %s references missing farm %s", t.ID, t.FarmID)

	yield := HarvestYield(cd, t.Qty, f.Efficiency, entropy.Symmetric(m.rng))

	f.Crops[t.Crop] -= t.Qty
	outcome.Invariant(f.Crops[t.Crop] >= 0, "farm %s planted %s negative", f.ID, t.Crop)
	if f.Crops[t.Crop] == 0 {
		delete(f.Crops, t.Crop)
	}
	m.deliver(f, t.Crop, yield, cd.EconomicValue)
	m.totals[t.Crop] += yield

	t.Status = TaskHarvested
	t.Yield = yield
	t.HarvestedAt = m.clk.Now()
	slog.Info("crop harvested", "farm", f.ID, "crop", t.Crop, "planted", t.Qty, "yield", yield)
	return t, true
}

// deliver moves output into the farm inventory, the owner's wallet when
// integrated, and market supply.
func (m *Manager) deliver(f *Farm, resource string, qty int, unitValue float64) {
	f.Inventory[resource] += qty
	f.Revenue = f.Revenue.Add(decimal.NewFromFloat(unitValue).Mul(decimal.NewFromInt(int64(qty))))
	if m.cfg.EconomyIntegration {
		if err := m.market.AddResource(f.Owner, resource, qty); err != nil {
			slog.Warn("yield not credited", "farm", f.ID, "resource", resource, "error", err)
		}
	}
	if err := m.market.UpdateMarketData(resource, qty, economy.Sell); err != nil {
		slog.Debug("market update skipped", "resource", resource, "error", err)
	}
}

// AddAnimal buys qty adult animals for a farm and starts the recurring
// production schedule for that type if it has a product.
func (m *Manager) AddAnimal(farmID, animal string, qty int) (*Herd, error) {
	f, ok := m.farms[farmID]
	ad, known := m.cat.Animals[animal]
	if !ok || !known {
		return nil, outcome.Fail(outcome.KindInvalidFarmOrCrop, "farm %s animal %s", farmID, animal)
	}
	if qty <= 0 || qty > MaxBatch {
		return nil, outcome.Fail(outcome.KindInvalidRequest, "add %d %s", qty, animal)
	}
	h := f.Herds[animal]
	if h != nil && h.Count+qty > MaxHerd {
		return nil, outcome.Fail(outcome.KindInsufficientSpace, "farm %s herd of %s is full", f.ID, animal)
	}
	// Compare by division so qty*space is never formed.
	if free := f.FreeSpace(m.cat); ad.SpaceRequired > 0 && (free < 0 || qty > free/ad.SpaceRequired) {
		return nil, outcome.Fail(outcome.KindInsufficientSpace, "farm %s needs %d x %d space, has %d", f.ID, qty, ad.SpaceRequired, free)
	}
	if m.cfg.EconomyIntegration {
		cost := ad.Cost.Mul(decimal.NewFromInt(int64(qty)))
		if err := m.market.Withdraw(f.Owner, cost); err != nil {
			return nil, err
		}
		f.Investment = f.Investment.Add(cost)
	}

	if h == nil {
		h = &Herd{}
		f.Herds[animal] = h
	}
	h.Count += qty
	h.Adults += qty

	key := productionKey(f.ID, animal)
	if _, running := m.production[key]; ad.Produces() && !running {
		p := &ProductionSchedule{
			FarmID:  f.ID,
			Animal:  animal,
			Product: ad.Product,
			Period:  ad.ProductPeriod,
			NextAt:  m.clk.Now().Add(ad.ProductPeriod),
		}
		m.production[key] = p
		m.schedule(p.NextAt, timers.KindProduce, key)
	}
	return h, nil
}

// Produce runs one production tick for the schedule key. Output is
// floor(adults*0.8) and only on active farms; the schedule always re-arms.
// Timers firing before the schedule is due are ignored.
func (m *Manager) Produce(key string) (int, bool) {
	p, ok := m.production[key]
	if !ok {
		return 0, false
	}
	now := m.clk.Now()
	if now.Before(p.NextAt) {
		return 0, false
	}
	f := m.farms[p.FarmID]
	produced := 0
	if f != nil && f.Active {
		if h := f.Herds[p.Animal]; h != nil {
			produced = int(math.Floor(float64(h.Adults) * productionRate))
		}
		if produced > 0 {
			m.deliver(f, p.Product, produced, m.cat.Animals[p.Animal].ProductValue)
		}
	}

	p.NextAt = p.NextAt.Add(p.Period)
	if !p.NextAt.After(now) {
		p.NextAt = now.Add(p.Period)
	}
	m.schedule(p.NextAt, timers.KindProduce, key)
	return produced, true
}

// BreedAnimals breeds two adults into one baby that matures after the
// animal's maturing time.
func (m *Manager) BreedAnimals(farmID, animal string) (*Maturation, error) {
	f, ok := m.farms[farmID]
	ad, known := m.cat.Animals[animal]
	if !ok || !known {
		return nil, outcome.Fail(outcome.KindInvalidFarmOrCrop, "farm %s animal %s", farmID, animal)
	}
	h := f.Herds[animal]
	if h == nil || h.Adults < 2 {
		adults := 0
		if h != nil {
			adults = h.Adults
		}
		return nil, outcome.Fail(outcome.KindInsufficientAdults, "farm %s has %d adult %s", f.ID, adults, animal)
	}
	if h.Count >= MaxHerd {
		return nil, outcome.Fail(outcome.KindInsufficientSpace, "farm %s herd of %s is full", f.ID, animal)
	}
	if m.cfg.EconomyIntegration {
		if w := m.market.Wallet(f.Owner); !w.Has(ad.BreedingItem, breedingItemQty) {
			return nil, outcome.Fail(outcome.KindInsufficientBreedingItem, "%s needs %d %s", f.Owner, breedingItemQty, ad.BreedingItem)
		}
		if err := m.market.RemoveResource(f.Owner, ad.BreedingItem, breedingItemQty); err != nil {
			return nil, err
		}
	}

	h.Count++
	h.Babies++
	mt := &Maturation{
		ID:     uuid.NewString(),
		FarmID: f.ID,
		Animal: animal,
		DueAt:  m.clk.Now().Add(ad.MaturingTime),
	}
	m.maturations[mt.ID] = mt
	m.schedule(mt.DueAt, timers.KindMature, mt.ID)
	return mt, nil
}

// Mature promotes the baby behind a maturation. Returns false when the
// maturation is unknown or already done.
func (m *Manager) Mature(id string) bool {
	mt, ok := m.maturations[id]
	if !ok || mt.Done {
		return false
	}
	h := m.farms[mt.FarmID].Herds[mt.Animal]
	outcome.Invariant(h != nil && h.Babies > 0, "maturation %s without a baby %s", mt.ID, mt.Animal)
	h.Babies--
	h.Adults++
	mt.Done = true
	return true
}

// OptimizeFarm applies infrastructure upgrades and recomputes efficiency.
// Under economy integration the owner pays for each new improvement.
func (m *Manager) OptimizeFarm(farmID string, u Upgrade) (*Farm, error) {
	f, ok := m.farms[farmID]
	if !ok {
		return nil, outcome.Fail(outcome.KindNotFound, "farm %s", farmID)
	}
	if u.Automation < 0 {
		return nil, outcome.Fail(outcome.KindInvalidRequest, "automation level %d", u.Automation)
	}
	if m.cfg.EconomyIntegration {
		cost := m.cfg.Upgrades.price(f, u)
		if err := m.market.Withdraw(f.Owner, cost); err != nil {
			return nil, err
		}
		f.Investment = f.Investment.Add(cost)
	}
	f.Irrigation = f.Irrigation || u.Irrigation
	f.Fencing = f.Fencing || u.Fencing
	f.Lighting = f.Lighting || u.Lighting
	f.Automation = max(f.Automation, u.Automation)
	f.Efficiency = CalculateEfficiency(f)
	return f, nil
}

// Dispatch runs the callback for a fired timer. It reports whether the
// timer changed state.
func (m *Manager) Dispatch(t timers.Timer) bool {
	switch t.Kind {
	case timers.KindHarvest:
		_, ok := m.AutoHarvest(t.Ref)
		return ok
	case timers.KindMature:
		return m.Mature(t.Ref)
	case timers.KindProduce:
		n, ok := m.Produce(t.Ref)
		return ok && n > 0
	}
	return false
}

func (m *Manager) schedule(due time.Time, kind timers.Kind, ref string) {
	if m.sched != nil {
		m.sched.Schedule(due, kind, ref)
	}
}
