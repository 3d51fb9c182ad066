package agriculture

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/talgya/substrate/internal/economy"
)

// Efficiency model.
const (
	BaseEfficiency       = 50.0
	IrrigationBonus      = 15.0
	FencingBonus         = 10.0
	LightingBonus        = 10.0
	AutomationBonusPerLv = 0.3
	MaxEfficiency        = 100.0
)

// Herd is one livestock population on a farm. Adults + Babies == Count.
type Herd struct {
	Count  int `json:"count"`
	Adults int `json:"adults"`
	Babies int `json:"babies"`
}

// Farm is a plot of land with crops, livestock and a harvest inventory.
type Farm struct {
	ID             string           `json:"id"`
	Owner          string           `json:"owner"`
	Name           string           `json:"name"`
	Location       economy.Location `json:"location"`
	Size           int              `json:"size"` // area in space units
	Specialization string           `json:"specialization"`

	Crops     map[string]int   `json:"crops"` // crop -> planted qty still growing
	Herds     map[string]*Herd `json:"herds"`
	Inventory map[string]int   `json:"inventory"`

	Irrigation bool    `json:"irrigation"`
	Fencing    bool    `json:"fencing"`
	Lighting   bool    `json:"lighting"`
	Automation int     `json:"automation"`
	Efficiency float64 `json:"efficiency"`

	Investment decimal.Decimal `json:"investment"`
	Revenue    decimal.Decimal `json:"revenue"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CalculateEfficiency scores a farm's infrastructure, capped at 100.
func CalculateEfficiency(f *Farm) float64 {
	e := BaseEfficiency + AutomationBonusPerLv*float64(f.Automation)
	if f.Irrigation {
		e += IrrigationBonus
	}
	if f.Fencing {
		e += FencingBonus
	}
	if f.Lighting {
		e += LightingBonus
	}
	return min(e, MaxEfficiency)
}

// UsedSpace sums the space taken by every animal on the farm.
func (f *Farm) UsedSpace(cat Catalog) int {
	used := 0
	for id, h := range f.Herds {
		used += h.Count * cat.Animals[id].SpaceRequired
	}
	return used
}

// FreeSpace is the farm area not taken by animals.
func (f *Farm) FreeSpace(cat Catalog) int {
	return f.Size - f.UsedSpace(cat)
}

// HerdIDs returns animal types on the farm in sorted order.
func (f *Farm) HerdIDs() []string {
	ids := make([]string, 0, len(f.Herds))
	for id := range f.Herds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Upgrade requests infrastructure improvements. Flags already set on the
// farm cost nothing; Automation is the target level.
type Upgrade struct {
	Irrigation bool
	Fencing    bool
	Lighting   bool
	Automation int
}

// UpgradeCosts prices each improvement.
type UpgradeCosts struct {
	Irrigation      decimal.Decimal
	Fencing         decimal.Decimal
	Lighting        decimal.Decimal
	AutomationLevel decimal.Decimal // per level gained
}

func (c UpgradeCosts) price(f *Farm, u Upgrade) decimal.Decimal {
	cost := decimal.Zero
	if u.Irrigation && !f.Irrigation {
		cost = cost.Add(c.Irrigation)
	}
	if u.Fencing && !f.Fencing {
		cost = cost.Add(c.Fencing)
	}
	if u.Lighting && !f.Lighting {
		cost = cost.Add(c.Lighting)
	}
	if gain := u.Automation - f.Automation; gain > 0 {
		cost = cost.Add(c.AutomationLevel.Mul(decimal.NewFromInt(int64(gain))))
	}
	return cost
}

// Clone returns a deep copy of the farm.
func (f *Farm) Clone() Farm {
	c := *f
	c.Crops = copyCounts(f.Crops)
	c.Inventory = copyCounts(f.Inventory)
	c.Herds = make(map[string]*Herd, len(f.Herds))
	for id, h := range f.Herds {
		herd := *h
		c.Herds[id] = &herd
	}
	return c
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
