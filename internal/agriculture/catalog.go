package agriculture

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CropDef describes a plantable crop.
type CropDef struct {
	ID             string
	GrowthTime     time.Duration
	AverageYield   float64 // units per planted unit
	YieldVariation float64
	SeedCost       decimal.Decimal // per planted unit
	EconomicValue  float64         // per harvested unit
}

// AnimalDef describes a livestock type. Product is empty for animals with
// no recurring output.
type AnimalDef struct {
	ID            string
	SpaceRequired int
	Cost          decimal.Decimal
	BreedingItem  string
	MaturingTime  time.Duration
	Product       string
	ProductPeriod time.Duration
	ProductValue  float64
}

// Produces reports whether the animal yields a recurring product.
func (a AnimalDef) Produces() bool {
	return a.Product != "" && a.ProductPeriod > 0
}

// Catalog is the set of known crops and animals.
type Catalog struct {
	Crops   map[string]CropDef
	Animals map[string]AnimalDef
}

// NewCatalog indexes crop and animal definitions by id.
func NewCatalog(crops []CropDef, animals []AnimalDef) Catalog {
	c := Catalog{
		Crops:   make(map[string]CropDef, len(crops)),
		Animals: make(map[string]AnimalDef, len(animals)),
	}
	for _, cd := range crops {
		c.Crops[cd.ID] = cd
	}
	for _, ad := range animals {
		c.Animals[ad.ID] = ad
	}
	return c
}

// CropIDs returns crop ids in sorted order.
func (c Catalog) CropIDs() []string {
	ids := make([]string, 0, len(c.Crops))
	for id := range c.Crops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AnimalIDs returns animal ids in sorted order.
func (c Catalog) AnimalIDs() []string {
	ids := make([]string, 0, len(c.Animals))
	for id := range c.Animals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func ms(n int64) time.Duration { return time.Duration(n) * time.Millisecond }
