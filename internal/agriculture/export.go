package agriculture

import (
	"sort"

	"github.com/talgya/substrate/internal/clock"
	"github.com/talgya/substrate/internal/economy"
	"github.com/talgya/substrate/internal/entropy"
	"github.com/talgya/substrate/internal/persistence/snapshot"
	"github.com/talgya/substrate/internal/timers"
)

// Export captures farms, catalogs and every pending schedule.
func (m *Manager) Export() snapshot.AgricultureV1 {
	var out snapshot.AgricultureV1

	for _, id := range sortedIDs(m.farms) {
		f := m.farms[id]
		fv := snapshot.FarmV1{
			ID:             f.ID,
			Owner:          f.Owner,
			Name:           f.Name,
			Location:       economy.ExportLocation(f.Location),
			Size:           f.Size,
			Specialization: f.Specialization,
			Crops:          economy.ExportQuantities(f.Crops),
			Inventory:      economy.ExportQuantities(f.Inventory),
			Irrigation:     f.Irrigation,
			Fencing:        f.Fencing,
			Lighting:       f.Lighting,
			Automation:     f.Automation,
			Efficiency:     f.Efficiency,
			Investment:     f.Investment,
			Revenue:        f.Revenue,
			Active:         f.Active,
			CreatedAt:      f.CreatedAt,
		}
		for _, a := range f.HerdIDs() {
			h := f.Herds[a]
			fv.Herds = append(fv.Herds, snapshot.HerdV1{Animal: a, Count: h.Count, Adults: h.Adults, Babies: h.Babies})
		}
		out.Farms = append(out.Farms, fv)
	}

	for _, id := range m.cat.CropIDs() {
		c := m.cat.Crops[id]
		out.Crops = append(out.Crops, snapshot.CropV1{
			ID:             c.ID,
			GrowthTimeMs:   c.GrowthTime.Milliseconds(),
			AverageYield:   c.AverageYield,
			YieldVariation: c.YieldVariation,
			SeedCost:       c.SeedCost,
			EconomicValue:  c.EconomicValue,
		})
	}
	for _, id := range m.cat.AnimalIDs() {
		a := m.cat.Animals[id]
		out.Animals = append(out.Animals, snapshot.AnimalV1{
			ID:              a.ID,
			SpaceRequired:   a.SpaceRequired,
			Cost:            a.Cost,
			BreedingItem:    a.BreedingItem,
			MaturingTimeMs:  a.MaturingTime.Milliseconds(),
			Product:         a.Product,
			ProductPeriodMs: a.ProductPeriod.Milliseconds(),
			ProductValue:    a.ProductValue,
		})
	}

	for _, id := range sortedIDs(m.tasks) {
		t := m.tasks[id]
		tv := snapshot.TaskV1{
			ID:          t.ID,
			FarmID:      t.FarmID,
			Crop:        t.Crop,
			Qty:         t.Qty,
			PlantedAt:   t.PlantedAt,
			HarvestAt:   t.HarvestAt,
			Status:      string(t.Status),
			Yield:       t.Yield,
			HarvestedAt: t.HarvestedAt,
		}
		if t.Plot != nil {
			p := economy.ExportLocation(*t.Plot)
			tv.Plot = &p
		}
		out.Tasks = append(out.Tasks, tv)
	}
	for _, id := range sortedIDs(m.maturations) {
		mt := m.maturations[id]
		out.Maturations = append(out.Maturations, snapshot.MaturationV1{
			ID: mt.ID, FarmID: mt.FarmID, Animal: mt.Animal, DueAt: mt.DueAt, Done: mt.Done,
		})
	}
	for _, key := range sortedIDs(m.production) {
		p := m.production[key]
		out.Production = append(out.Production, snapshot.ProductionV1{
			FarmID: p.FarmID, Animal: p.Animal, Product: p.Product, PeriodMs: p.Period.Milliseconds(), NextAt: p.NextAt,
		})
	}
	out.Totals = economy.ExportQuantities(m.totals)
	return out
}

// Restore rebuilds a Manager from a snapshot and re-arms every pending
// harvest, maturation and production timer at max(0, due-now).
func Restore(cfg Config, market *economy.Market, clk clock.Clock, rng entropy.Source, sched timers.Scheduler, snap snapshot.AgricultureV1) *Manager {
	crops := make([]CropDef, 0, len(snap.Crops))
	for _, c := range snap.Crops {
		crops = append(crops, CropDef{
			ID:             c.ID,
			GrowthTime:     ms(c.GrowthTimeMs),
			AverageYield:   c.AverageYield,
			YieldVariation: c.YieldVariation,
			SeedCost:       c.SeedCost,
			EconomicValue:  c.EconomicValue,
		})
	}
	animals := make([]AnimalDef, 0, len(snap.Animals))
	for _, a := range snap.Animals {
		animals = append(animals, AnimalDef{
			ID:            a.ID,
			SpaceRequired: a.SpaceRequired,
			Cost:          a.Cost,
			BreedingItem:  a.BreedingItem,
			MaturingTime:  ms(a.MaturingTimeMs),
			Product:       a.Product,
			ProductPeriod: ms(a.ProductPeriodMs),
			ProductValue:  a.ProductValue,
		})
	}
	m := newManager(cfg, NewCatalog(crops, animals), market, clk, rng, sched)
	m.registerResources()

	for _, fv := range snap.Farms {
		f := &Farm{
			ID:             fv.ID,
			Owner:          fv.Owner,
			Name:           fv.Name,
			Location:       economy.RestoreLocation(fv.Location),
			Size:           fv.Size,
			Specialization: fv.Specialization,
			Crops:          economy.RestoreQuantities(fv.Crops),
			Herds:          make(map[string]*Herd, len(fv.Herds)),
			Inventory:      economy.RestoreQuantities(fv.Inventory),
			Irrigation:     fv.Irrigation,
			Fencing:        fv.Fencing,
			Lighting:       fv.Lighting,
			Automation:     fv.Automation,
			Efficiency:     fv.Efficiency,
			Investment:     fv.Investment,
			Revenue:        fv.Revenue,
			Active:         fv.Active,
			CreatedAt:      fv.CreatedAt,
		}
		for _, h := range fv.Herds {
			f.Herds[h.Animal] = &Herd{Count: h.Count, Adults: h.Adults, Babies: h.Babies}
		}
		m.farms[f.ID] = f
	}

	now := clk.Now()
	for _, tv := range snap.Tasks {
		t := &PlantingTask{
			ID:          tv.ID,
			FarmID:      tv.FarmID,
			Crop:        tv.Crop,
			Qty:         tv.Qty,
			PlantedAt:   tv.PlantedAt,
			HarvestAt:   tv.HarvestAt,
			Status:      TaskStatus(tv.Status),
			Yield:       tv.Yield,
			HarvestedAt: tv.HarvestedAt,
		}
		if tv.Plot != nil {
			p := economy.RestoreLocation(*tv.Plot)
			t.Plot = &p
		}
		m.tasks[t.ID] = t
		if t.Status == TaskGrowing {
			m.schedule(timers.Rearm(t.HarvestAt, now), timers.KindHarvest, t.ID)
		}
	}
	for _, mv := range snap.Maturations {
		mt := &Maturation{ID: mv.ID, FarmID: mv.FarmID, Animal: mv.Animal, DueAt: mv.DueAt, Done: mv.Done}
		m.maturations[mt.ID] = mt
		if !mt.Done {
			m.schedule(timers.Rearm(mt.DueAt, now), timers.KindMature, mt.ID)
		}
	}
	for _, pv := range snap.Production {
		p := &ProductionSchedule{
			FarmID:  pv.FarmID,
			Animal:  pv.Animal,
			Product: pv.Product,
			Period:  ms(pv.PeriodMs),
			NextAt:  pv.NextAt,
		}
		m.production[p.Key()] = p
		m.schedule(timers.Rearm(p.NextAt, now), timers.KindProduce, p.Key())
	}
	m.totals = economy.RestoreQuantities(snap.Totals)
	return m
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
