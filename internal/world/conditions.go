// Package world derives opening market conditions from layered simplex
// noise. Each resource is placed at a point in noise space derived from its
// id, so the same seed always yields the same supply and demand regardless
// of resource order.
package world

import (
	"hash/fnv"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/substrate/internal/economy"
)

// Defaults for resources configured without explicit supply or demand.
const (
	DefaultSupply = 100.0
	DefaultDemand = 100.0
)

// ConditionsConfig holds noise parameters.
type ConditionsConfig struct {
	Seed        int64
	Octaves     int
	Frequency   float64
	Persistence float64
	Spread      float64 // multiplier range is [1-Spread, 1+Spread]
}

// DefaultConditions returns the standard noise parameters for seed.
func DefaultConditions(seed int64) ConditionsConfig {
	return ConditionsConfig{
		Seed:        seed,
		Octaves:     3,
		Frequency:   0.08,
		Persistence: 0.5,
		Spread:      0.5,
	}
}

// MarketConditions returns defs with supply and demand scaled by seeded
// abundance and appetite noise. Base prices are left alone.
func MarketConditions(cfg ConditionsConfig, defs []economy.ResourceDef) []economy.ResourceDef {
	abundance := opensimplex.NewNormalized(cfg.Seed)
	appetite := opensimplex.NewNormalized(cfg.Seed + 1)

	out := make([]economy.ResourceDef, len(defs))
	for i, d := range defs {
		x, y := position(d.ID)
		supply, demand := d.Supply, d.Demand
		if supply <= 0 {
			supply = DefaultSupply
		}
		if demand <= 0 {
			demand = DefaultDemand
		}
		a := octaveNoise(abundance, x, y, cfg.Octaves, cfg.Frequency, cfg.Persistence)
		p := octaveNoise(appetite, x, y, cfg.Octaves, cfg.Frequency, cfg.Persistence)

		d.Supply = math.Max(1, math.Round(supply*scale(a, cfg.Spread)))
		d.Demand = math.Max(1, math.Round(demand*scale(p, cfg.Spread)))
		out[i] = d
	}
	return out
}

// scale maps normalized noise in [0, 1] onto [1-spread, 1+spread].
func scale(n, spread float64) float64 {
	return 1 + (n*2-1)*spread
}

// position hashes a resource id to a stable point in noise space.
func position(id string) (float64, float64) {
	h := fnv.New64a()
	h.Write([]byte(id))
	v := h.Sum64()
	x := float64(v&0xffff) / 64
	y := float64((v>>16)&0xffff) / 64
	return x, y
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
