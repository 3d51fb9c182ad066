// Package config loads simulation settings from YAML. Embedded defaults are
// decoded first and a user file, if any, is overlaid on top. Every document
// is checked against an embedded JSON Schema before decoding.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/talgya/substrate/internal/agriculture"
	"github.com/talgya/substrate/internal/economy"
	"github.com/talgya/substrate/internal/social"
)

//go:embed default.yaml
var defaultYAML []byte

//go:embed schema.json
var schemaJSON string

// Config is the full simulation configuration.
type Config struct {
	Seed          int64 `yaml:"seed"`
	Deterministic bool  `yaml:"deterministic"`

	Currency    Currency            `yaml:"currency"`
	Market      Market              `yaml:"market"`
	Factions    []social.FactionDef `yaml:"factions"`
	Relations   Relations           `yaml:"relations"`
	Agriculture Agriculture         `yaml:"agriculture"`
	Engine      Engine              `yaml:"engine"`
	Persistence Persistence         `yaml:"persistence"`
}

// Currency names the money unit and sets new-account balances and sales tax.
type Currency struct {
	Name            string  `yaml:"name"`
	Symbol          string  `yaml:"symbol"`
	StartingBalance float64 `yaml:"starting_balance"`
	TaxRate         float64 `yaml:"tax_rate"`
}

// Market holds price history depth, offer lifetime and the listed resources.
type Market struct {
	PriceHistory int        `yaml:"price_history"`
	OfferTTLMs   int64      `yaml:"offer_ttl_ms"`
	OfferRate    OfferRate  `yaml:"offer_rate"`
	Resources    []Resource `yaml:"resources"`
}

// OfferRate limits how fast a single agent may post trade offers.
type OfferRate struct {
	PerMinute float64 `yaml:"per_minute"`
	Burst     int     `yaml:"burst"`
}

// Resource is one tradable good with its starting price and pressure.
type Resource struct {
	ID         string  `yaml:"id"`
	BasePrice  float64 `yaml:"base_price"`
	Volatility float64 `yaml:"volatility"`
	Supply     float64 `yaml:"supply"`
	Demand     float64 `yaml:"demand"`
}

// Relations tunes faction drift.
type Relations struct {
	DriftPerWeek int `yaml:"drift_per_week"`
}

// Agriculture holds the crop and livestock catalog and farm upgrade bonuses.
type Agriculture struct {
	EconomyIntegration bool     `yaml:"economy_integration"`
	Upgrades           Upgrades `yaml:"upgrades"`
	Crops              []Crop   `yaml:"crops"`
	Animals            []Animal `yaml:"animals"`
}

// Upgrades are multiplicative bonuses applied to every farm.
type Upgrades struct {
	Irrigation      float64 `yaml:"irrigation"`
	Fencing         float64 `yaml:"fencing"`
	Lighting        float64 `yaml:"lighting"`
	AutomationLevel float64 `yaml:"automation_level"`
}

// Crop is the YAML form of agriculture.CropDef. Durations are milliseconds.
type Crop struct {
	ID             string  `yaml:"id"`
	GrowthTimeMs   int64   `yaml:"growth_time_ms"`
	AverageYield   float64 `yaml:"average_yield"`
	YieldVariation float64 `yaml:"yield_variation"`
	SeedCost       float64 `yaml:"seed_cost"`
	EconomicValue  float64 `yaml:"economic_value"`
}

// Animal is the YAML form of agriculture.AnimalDef. Durations are milliseconds.
type Animal struct {
	ID              string  `yaml:"id"`
	SpaceRequired   int     `yaml:"space_required"`
	Cost            float64 `yaml:"cost"`
	BreedingItem    string  `yaml:"breeding_item"`
	MaturingTimeMs  int64   `yaml:"maturing_time_ms"`
	Product         string  `yaml:"product"`
	ProductPeriodMs int64   `yaml:"product_period_ms"`
	ProductValue    float64 `yaml:"product_value"`
}

// Engine sets the tick period and how many ticks pass between periodic jobs.
type Engine struct {
	TickIntervalMs     int64 `yaml:"tick_interval_ms"`
	SweepEveryTicks    int   `yaml:"sweep_every_ticks"`
	ReportEveryTicks   int   `yaml:"report_every_ticks"`
	DriftEveryTicks    int   `yaml:"drift_every_ticks"`
	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks"`
}

// Persistence selects the snapshot backend.
type Persistence struct {
	Driver string `yaml:"driver"` // sqlite or file
	Path   string `yaml:"path"`
	Keep   int    `yaml:"keep"`
}

// Default returns the embedded configuration.
func Default() (Config, error) {
	var c Config
	if err := decode(defaultYAML, &c, "default.yaml"); err != nil {
		return c, err
	}
	return c, nil
}

// Load returns the embedded defaults overlaid with the YAML file at path.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	c, err := Default()
	if err != nil {
		return c, err
	}
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := decode(raw, &c, path); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Parse overlays raw YAML on the embedded defaults.
func Parse(raw []byte) (Config, error) {
	c, err := Default()
	if err != nil {
		return c, err
	}
	if err := decode(raw, &c, "config"); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func decode(raw []byte, c *Config, name string) error {
	if err := validateSchema(raw); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

var schema = jsonschema.MustCompileString("schema.json", schemaJSON)

// validateSchema converts the YAML document to JSON values and validates it.
func validateSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config is not JSON-compatible: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return schema.Validate(v)
}

// Validate checks cross-field rules the schema cannot express.
func (c Config) Validate() error {
	if c.Engine.TickIntervalMs <= 0 {
		return fmt.Errorf("engine.tick_interval_ms must be positive")
	}
	seen := make(map[string]bool)
	for _, f := range c.Factions {
		if seen[f.ID] {
			return fmt.Errorf("duplicate faction %q", f.ID)
		}
		seen[f.ID] = true
	}
	for _, f := range c.Factions {
		for _, other := range append(append([]string(nil), f.Allies...), f.Enemies...) {
			if !seen[other] {
				return fmt.Errorf("faction %q references unknown faction %q", f.ID, other)
			}
		}
	}
	crops := make(map[string]bool)
	for _, cr := range c.Agriculture.Crops {
		if crops[cr.ID] {
			return fmt.Errorf("duplicate crop %q", cr.ID)
		}
		crops[cr.ID] = true
	}
	for _, a := range c.Agriculture.Animals {
		if a.Product != "" && a.ProductPeriodMs <= 0 {
			return fmt.Errorf("animal %q has a product but no product_period_ms", a.ID)
		}
	}
	return nil
}

// TickInterval is the engine tick period.
func (e Engine) TickInterval() time.Duration {
	return time.Duration(e.TickIntervalMs) * time.Millisecond
}

// MarketConfig builds the economy.Market settings.
func (c Config) MarketConfig() economy.Config {
	return economy.Config{
		Currency: economy.Currency{
			Name:            c.Currency.Name,
			Symbol:          c.Currency.Symbol,
			StartingBalance: decimal.NewFromFloat(c.Currency.StartingBalance),
			TaxRate:         c.Currency.TaxRate,
		},
		HistoryWindow: c.Market.PriceHistory,
		OfferTTL:      time.Duration(c.Market.OfferTTLMs) * time.Millisecond,
		OffersPerMin:  c.Market.OfferRate.PerMinute,
		OfferBurst:    c.Market.OfferRate.Burst,
	}
}

// ResourceDefs returns the configured market resources.
func (c Config) ResourceDefs() []economy.ResourceDef {
	out := make([]economy.ResourceDef, 0, len(c.Market.Resources))
	for _, r := range c.Market.Resources {
		out = append(out, economy.ResourceDef{
			ID: r.ID, BasePrice: r.BasePrice, Volatility: r.Volatility, Supply: r.Supply, Demand: r.Demand,
		})
	}
	return out
}

// FactionDefs returns the configured factions.
func (c Config) FactionDefs() []social.FactionDef {
	return c.Factions
}

// AgricultureConfig builds the agriculture.Manager settings.
func (c Config) AgricultureConfig() agriculture.Config {
	u := c.Agriculture.Upgrades
	return agriculture.Config{
		EconomyIntegration: c.Agriculture.EconomyIntegration,
		Upgrades: agriculture.UpgradeCosts{
			Irrigation:      decimal.NewFromFloat(u.Irrigation),
			Fencing:         decimal.NewFromFloat(u.Fencing),
			Lighting:        decimal.NewFromFloat(u.Lighting),
			AutomationLevel: decimal.NewFromFloat(u.AutomationLevel),
		},
	}
}

// Catalog builds the crop and animal tables.
func (c Config) Catalog() agriculture.Catalog {
	crops := make([]agriculture.CropDef, 0, len(c.Agriculture.Crops))
	for _, cr := range c.Agriculture.Crops {
		crops = append(crops, agriculture.CropDef{
			ID:             cr.ID,
			GrowthTime:     time.Duration(cr.GrowthTimeMs) * time.Millisecond,
			AverageYield:   cr.AverageYield,
			YieldVariation: cr.YieldVariation,
			SeedCost:       decimal.NewFromFloat(cr.SeedCost),
			EconomicValue:  cr.EconomicValue,
		})
	}
	animals := make([]agriculture.AnimalDef, 0, len(c.Agriculture.Animals))
	for _, a := range c.Agriculture.Animals {
		animals = append(animals, agriculture.AnimalDef{
			ID:            a.ID,
			SpaceRequired: a.SpaceRequired,
			Cost:          decimal.NewFromFloat(a.Cost),
			BreedingItem:  a.BreedingItem,
			MaturingTime:  time.Duration(a.MaturingTimeMs) * time.Millisecond,
			Product:       a.Product,
			ProductPeriod: time.Duration(a.ProductPeriodMs) * time.Millisecond,
			ProductValue:  a.ProductValue,
		})
	}
	return agriculture.NewCatalog(crops, animals)
}
