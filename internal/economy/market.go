// Package economy is the resource market: resource definitions and price
// discovery, wallets, peer-to-peer trade offers with escrow, and shops.
//
// A Market is not safe for concurrent use. The owning simulation serializes
// every call, which is what makes check-before-mutate sequences atomic.
package economy

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/talgya/substrate/internal/clock"
	"github.com/talgya/substrate/internal/entropy"
	"github.com/talgya/substrate/internal/outcome"
	"github.com/talgya/substrate/internal/timers"
)

// Price bounds relative to base price.
const (
	PriceFloorMul   = 0.1
	PriceCeilingMul = 10.0

	// demandShift is how much one unit traded moves the opposite side.
	demandShift = 0.1
)

// Side is the direction of a market movement.
type Side string

const (
	Sell Side = "sell"
	Buy  Side = "buy"
)

// Currency is the scalar currency configuration.
type Currency struct {
	Name            string
	Symbol          string
	StartingBalance decimal.Decimal
	TaxRate         float64
}

// Config tunes a Market.
type Config struct {
	Currency      Currency
	HistoryWindow int           // price-history ring length
	OfferTTL      time.Duration // default trade-offer lifetime
	OffersPerMin  float64       // per-seller offer rate; 0 disables limiting
	OfferBurst    int
}

// DefaultConfig returns workable defaults.
func DefaultConfig() Config {
	return Config{
		Currency: Currency{
			Name:            "Emerald",
			Symbol:          "E",
			StartingBalance: decimal.NewFromInt(100),
			TaxRate:         0.05,
		},
		HistoryWindow: 20,
		OfferTTL:      time.Hour,
	}
}

// ResourceDef seeds a resource.
type ResourceDef struct {
	ID         string
	BasePrice  float64
	Volatility float64
	Supply     float64
	Demand     float64
}

// Resource holds the supply/demand state and price history of one good.
type Resource struct {
	ID         string    `json:"id"`
	BasePrice  float64   `json:"base_price"`
	Volatility float64   `json:"volatility"`
	Supply     float64   `json:"supply"`
	Demand     float64   `json:"demand"`
	Price      float64   `json:"price"`
	History    []float64 `json:"history"` // most recent last
	Volume     int       `json:"volume"`  // cumulative units traded
}

// Market owns resources, wallets, offers and shops.
type Market struct {
	cfg   Config
	clk   clock.Clock
	rng   entropy.Source
	sched timers.Scheduler

	resources map[string]*Resource
	wallets   map[string]*Wallet
	offers    map[string]*TradeOffer
	shops     map[string]*Shop
	trades    []TradeRecord
	treasury  decimal.Decimal
	limiters  map[string]*rate.Limiter

	onExpire func(*TradeOffer)
}

// New creates an empty market. sched may be nil, in which case offer expiry
// relies on lazy checks and ExpireOffers sweeps only.
func New(cfg Config, clk clock.Clock, rng entropy.Source, sched timers.Scheduler) *Market {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 20
	}
	if cfg.OfferTTL <= 0 {
		cfg.OfferTTL = time.Hour
	}
	return &Market{
		cfg:       cfg,
		clk:       clk,
		rng:       rng,
		sched:     sched,
		resources: make(map[string]*Resource),
		wallets:   make(map[string]*Wallet),
		offers:    make(map[string]*TradeOffer),
		shops:     make(map[string]*Shop),
		treasury:  decimal.Zero,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// OnExpire registers fn to run once for every offer that expires, whichever
// path noticed it.
func (m *Market) OnExpire(fn func(*TradeOffer)) {
	m.onExpire = fn
}

// Currency returns the currency configuration.
func (m *Market) Currency() Currency {
	return m.cfg.Currency
}

// Treasury returns accumulated shop tax.
func (m *Market) Treasury() decimal.Decimal {
	return m.treasury
}

// RegisterResource adds a resource if it is not already known. Returns the
// existing or new definition.
func (m *Market) RegisterResource(def ResourceDef) *Resource {
	if r, ok := m.resources[def.ID]; ok {
		return r
	}
	r := &Resource{
		ID:         def.ID,
		BasePrice:  def.BasePrice,
		Volatility: def.Volatility,
		Supply:     math.Max(def.Supply, 1),
		Demand:     math.Max(def.Demand, 1),
		Price:      def.BasePrice,
		History:    []float64{def.BasePrice},
	}
	m.resources[def.ID] = r
	return r
}

// Resource looks up a resource definition.
func (m *Market) Resource(id string) (*Resource, bool) {
	r, ok := m.resources[id]
	return r, ok
}

// ResourceIDs returns all resource ids in sorted order.
func (m *Market) ResourceIDs() []string {
	ids := make([]string, 0, len(m.resources))
	for id := range m.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Prices returns the current price of every resource.
func (m *Market) Prices() map[string]float64 {
	out := make(map[string]float64, len(m.resources))
	for id, r := range m.resources {
		out[id] = r.Price
	}
	return out
}

// CalculatePrice recomputes a resource's price from supply/demand and jitter,
// records it in the history ring, and returns it.
func (m *Market) CalculatePrice(id string) (float64, error) {
	r, ok := m.resources[id]
	if !ok {
		return 0, outcome.Fail(outcome.KindNotFound, "resource %s", id)
	}
	return m.reprice(r), nil
}

func (m *Market) reprice(r *Resource) float64 {
	price := r.ResolvePrice(m.rng.Float64())
	r.Price = price
	r.History = append(r.History, price)
	if over := len(r.History) - m.cfg.HistoryWindow; over > 0 {
		r.History = append(r.History[:0], r.History[over:]...)
	}
	return price
}

// ResolvePrice computes base × demand/supply × jitter clamped to the price
// bounds. u is a uniform draw in [0,1). Supply and demand are floored at 1
// before the ratio is taken.
func (r *Resource) ResolvePrice(u float64) float64 {
	supply := math.Max(r.Supply, 1)
	demand := math.Max(r.Demand, 1)
	jitter := 1 + (u-0.5)*r.Volatility

	price := r.BasePrice * (demand / supply) * jitter

	floor := r.BasePrice * PriceFloorMul
	ceiling := r.BasePrice * PriceCeilingMul
	if price < floor || math.IsNaN(price) {
		price = floor
	}
	if price > ceiling {
		price = ceiling
	}
	outcome.Invariant(price >= floor && price <= ceiling, "price %f outside [%f, %f] for %s", price, floor, ceiling, r.ID)
	return price
}

// TrailingAverage returns the mean of the price-history window.
func (r *Resource) TrailingAverage() float64 {
	if len(r.History) == 0 {
		return r.Price
	}
	sum := 0.0
	for _, p := range r.History {
		sum += p
	}
	return sum / float64(len(r.History))
}

// UpdateMarketData records qty units moving on side and reprices.
// A sale adds supply and relieves demand; a purchase does the inverse.
func (m *Market) UpdateMarketData(id string, qty int, side Side) error {
	if qty <= 0 {
		return outcome.Fail(outcome.KindInvalidRequest, "quantity %d", qty)
	}
	if side != Sell && side != Buy {
		return outcome.Fail(outcome.KindInvalidRequest, "side %q", side)
	}
	if !m.recordFlow(id, qty, side) {
		return outcome.Fail(outcome.KindNotFound, "resource %s", id)
	}
	return nil
}

// recordFlow is UpdateMarketData for callers that have already validated
// their inputs; unknown resources are skipped.
func (m *Market) recordFlow(id string, qty int, side Side) bool {
	r, ok := m.resources[id]
	if !ok {
		return false
	}
	q := float64(qty)
	switch side {
	case Sell:
		r.Supply += q
		r.Demand = math.Max(1, r.Demand-q*demandShift)
	case Buy:
		r.Demand += q
		r.Supply = math.Max(1, r.Supply-q*demandShift)
	}
	r.Volume += qty
	m.reprice(r)
	return true
}

func (m *Market) now() time.Time {
	return m.clk.Now()
}
