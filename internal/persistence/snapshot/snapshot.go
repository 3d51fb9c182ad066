// Package snapshot defines the versioned, explicitly typed durable form of
// the simulation and a compressed file store for it. Every map or set in
// memory is an ordered slice here; loaders rebuild the maps themselves.
package snapshot

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = 1

// Header is written as the first line of an encoded snapshot so the version
// can be checked before the body is decoded.
type Header struct {
	Version int       `json:"version"`
	TakenAt time.Time `json:"taken_at"`
	Tick    uint64    `json:"tick"`
}

// V1 is the complete durable state of a simulation.
type V1 struct {
	Header Header `json:"header"`

	Currency    CurrencyV1    `json:"currency"`
	Market      MarketV1      `json:"market"`
	Factions    FactionsV1    `json:"factions"`
	Agriculture AgricultureV1 `json:"agriculture"`
}

// CurrencyV1 is the currency configuration in force when the snapshot was taken.
type CurrencyV1 struct {
	Name            string          `json:"name"`
	Symbol          string          `json:"symbol"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	TaxRate         float64         `json:"tax_rate"`
}

// ── Market ──────────────────────────────────────────

// MarketV1 holds every resource, wallet, offer, shop and completed trade.
type MarketV1 struct {
	Resources []ResourceV1    `json:"resources"`
	Wallets   []WalletV1      `json:"wallets"`
	Offers    []OfferV1       `json:"offers"`
	Shops     []ShopV1        `json:"shops"`
	Trades    []TradeV1       `json:"trades"`
	Treasury  decimal.Decimal `json:"treasury"`
}

// ResourceV1 is one tradable resource with its price state.
type ResourceV1 struct {
	ID           string    `json:"id"`
	BasePrice    float64   `json:"base_price"`
	Volatility   float64   `json:"volatility"`
	Supply       float64   `json:"supply"`
	Demand       float64   `json:"demand"`
	CurrentPrice float64   `json:"current_price"`
	History      []float64 `json:"history"`
	Volume       int       `json:"volume"`
}

// QuantityV1 is a resource amount. It replaces map[string]int entries.
type QuantityV1 struct {
	Resource string `json:"resource"`
	Qty      int    `json:"qty"`
}

// WalletV1 is one owner's coins and holdings.
type WalletV1 struct {
	Owner       string          `json:"owner"`
	Coins       decimal.Decimal `json:"coins"`
	Resources   []QuantityV1    `json:"resources"`
	TradedValue float64         `json:"traded_value"`
	Reputation  int             `json:"reputation"`
}

// OfferV1 is a trade offer in any status. Open offers are re-armed on load.
type OfferV1 struct {
	ID          string     `json:"id"`
	Seller      string     `json:"seller"`
	Offered     QuantityV1 `json:"offered"`
	Requested   QuantityV1 `json:"requested"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Buyer       string     `json:"buyer,omitempty"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
}

// ShopItemV1 is one listing in a shop.
type ShopItemV1 struct {
	Resource string          `json:"resource"`
	Stock    int             `json:"stock"`
	Price    decimal.Decimal `json:"price"`
}

// ShopV1 is a player shop with its listings and sales total.
type ShopV1 struct {
	ID       string          `json:"id"`
	Owner    string          `json:"owner"`
	Name     string          `json:"name"`
	Location LocationV1      `json:"location"`
	Items    []ShopItemV1    `json:"items"`
	Sales    decimal.Decimal `json:"sales"`
	Open     bool            `json:"open"`
}

// TradeV1 is one completed trade.
type TradeV1 struct {
	OfferID   string     `json:"offer_id"`
	Seller    string     `json:"seller"`
	Buyer     string     `json:"buyer"`
	Offered   QuantityV1 `json:"offered"`
	Requested QuantityV1 `json:"requested"`
	Value     float64    `json:"value"`
	At        time.Time  `json:"at"`
}

// LocationV1 is a block position.
type LocationV1 struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// ── Factions ────────────────────────────────────────

// FactionsV1 holds factions, relationship scores and the relation log.
type FactionsV1 struct {
	Factions  []FactionV1       `json:"factions"`
	Edges     []EdgeV1          `json:"edges"`
	Alliances [][2]string       `json:"alliances"`
	Conflicts [][2]string       `json:"conflicts"`
	Events    []RelationEventV1 `json:"events"`
}

// FactionV1 is one faction. Members are sorted.
type FactionV1 struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Traits    map[string]float64 `json:"traits"`
	Goals     []string           `json:"goals"`
	Allies    []string           `json:"allies"`
	Enemies   []string           `json:"enemies"`
	Members   []string           `json:"members"`
	Wealth    float64            `json:"wealth"`
	Power     float64            `json:"power"`
	Influence float64            `json:"influence"`
}

// EdgeV1 is the relationship score of an unordered faction pair with A < B.
type EdgeV1 struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Score int    `json:"score"`
}

// RelationEventV1 is one entry of the relation log.
type RelationEventV1 struct {
	A      string    `json:"a"`
	B      string    `json:"b"`
	Kind   string    `json:"kind"`
	Delta  int       `json:"delta"`
	Score  int       `json:"score"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// ── Agriculture ─────────────────────────────────────

// AgricultureV1 holds farms, the catalog and every pending schedule.
type AgricultureV1 struct {
	Farms       []FarmV1       `json:"farms"`
	Crops       []CropV1       `json:"crops"`
	Animals     []AnimalV1     `json:"animals"`
	Tasks       []TaskV1       `json:"tasks"`
	Maturations []MaturationV1 `json:"maturations"`
	Production  []ProductionV1 `json:"production"`
	Totals      []QuantityV1   `json:"totals"`
}

// HerdV1 is one livestock population on a farm.
type HerdV1 struct {
	Animal string `json:"animal"`
	Count  int    `json:"count"`
	Adults int    `json:"adults"`
	Babies int    `json:"babies"`
}

// FarmV1 is one farm.
type FarmV1 struct {
	ID             string          `json:"id"`
	Owner          string          `json:"owner"`
	Name           string          `json:"name"`
	Location       LocationV1      `json:"location"`
	Size           int             `json:"size"`
	Specialization string          `json:"specialization"`
	Crops          []QuantityV1    `json:"crops"`
	Herds          []HerdV1        `json:"herds"`
	Inventory      []QuantityV1    `json:"inventory"`
	Irrigation     bool            `json:"irrigation"`
	Fencing        bool            `json:"fencing"`
	Lighting       bool            `json:"lighting"`
	Automation     int             `json:"automation"`
	Efficiency     float64         `json:"efficiency"`
	Investment     decimal.Decimal `json:"investment"`
	Revenue        decimal.Decimal `json:"revenue"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CropV1 is a crop definition. Durations are milliseconds.
type CropV1 struct {
	ID             string          `json:"id"`
	GrowthTimeMs   int64           `json:"growth_time_ms"`
	AverageYield   float64         `json:"average_yield"`
	YieldVariation float64         `json:"yield_variation"`
	SeedCost       decimal.Decimal `json:"seed_cost"`
	EconomicValue  float64         `json:"economic_value"`
}

// AnimalV1 is an animal definition. Durations are milliseconds.
type AnimalV1 struct {
	ID              string          `json:"id"`
	SpaceRequired   int             `json:"space_required"`
	Cost            decimal.Decimal `json:"cost"`
	BreedingItem    string          `json:"breeding_item"`
	MaturingTimeMs  int64           `json:"maturing_time_ms"`
	Product         string          `json:"product,omitempty"`
	ProductPeriodMs int64           `json:"product_period_ms,omitempty"`
	ProductValue    float64         `json:"product_value,omitempty"`
}

// TaskV1 is a planting task. Growing tasks are re-armed on load.
type TaskV1 struct {
	ID          string      `json:"id"`
	FarmID      string      `json:"farm_id"`
	Crop        string      `json:"crop"`
	Qty         int         `json:"qty"`
	Plot        *LocationV1 `json:"plot,omitempty"`
	PlantedAt   time.Time   `json:"planted_at"`
	HarvestAt   time.Time   `json:"harvest_at"`
	Status      string      `json:"status"`
	Yield       int         `json:"yield"`
	HarvestedAt time.Time   `json:"harvested_at,omitempty"`
}

// MaturationV1 is a bred animal waiting to become an adult.
type MaturationV1 struct {
	ID     string    `json:"id"`
	FarmID string    `json:"farm_id"`
	Animal string    `json:"animal"`
	DueAt  time.Time `json:"due_at"`
	Done   bool      `json:"done"`
}

// ProductionV1 is the product schedule of one herd.
type ProductionV1 struct {
	FarmID   string    `json:"farm_id"`
	Animal   string    `json:"animal"`
	Product  string    `json:"product"`
	PeriodMs int64     `json:"period_ms"`
	NextAt   time.Time `json:"next_at"`
}
