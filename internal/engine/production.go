// Agriculture operations, serialized through the simulation.

package engine

import (
	"fmt"

	"github.com/talgya/substrate/internal/agriculture"
	"github.com/talgya/substrate/internal/economy"
)

// CreateFarm builds a farm for owner.
func (s *Simulation) CreateFarm(owner, name string, loc economy.Location, size int, specialization string) (agriculture.Farm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.world.Farms.CreateFarm(owner, name, loc, size, specialization)
	if err != nil {
		return agriculture.Farm{}, err
	}
	return f.Clone(), nil
}

// Farm returns a copy of a farm.
func (s *Simulation) Farm(id string) (agriculture.Farm, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.world.Farms.Farm(id)
	if !ok {
		return agriculture.Farm{}, false
	}
	return f.Clone(), true
}

// FarmsOf returns copies of owner's farms.
func (s *Simulation) FarmsOf(owner string) []agriculture.Farm {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []agriculture.Farm
	for _, f := range s.world.Farms.FarmsOf(owner) {
		out = append(out, f.Clone())
	}
	return out
}

// SetFarmActive toggles a farm's production.
func (s *Simulation) SetFarmActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Farms.SetFarmActive(id, active)
}

// PlantCrop plants qty of crop and schedules the harvest.
func (s *Simulation) PlantCrop(farmID, crop string, qty int, plot *economy.Location) (agriculture.PlantingTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.world.Farms.PlantCrop(farmID, crop, qty, plot)
	if err != nil {
		return agriculture.PlantingTask{}, err
	}
	return *t, nil
}

// AutoHarvest harvests a growing task immediately. Returns false when the
// task is unknown or already harvested.
func (s *Simulation) AutoHarvest(taskID string) (agriculture.PlantingTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.world.Farms.AutoHarvest(taskID)
	if !ok {
		return agriculture.PlantingTask{}, false
	}
	s.record("agriculture", fmt.Sprintf("farm %s harvested %d %s", t.FarmID, t.Yield, t.Crop))
	return *t, true
}

// AddAnimal buys livestock for a farm.
func (s *Simulation) AddAnimal(farmID, animal string, qty int) (agriculture.Herd, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.world.Farms.AddAnimal(farmID, animal, qty)
	if err != nil {
		return agriculture.Herd{}, err
	}
	return *h, nil
}

// BreedAnimals breeds a pair and schedules the baby's maturation.
func (s *Simulation) BreedAnimals(farmID, animal string) (agriculture.Maturation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mt, err := s.world.Farms.BreedAnimals(farmID, animal)
	if err != nil {
		return agriculture.Maturation{}, err
	}
	return *mt, nil
}

// OptimizeFarm applies infrastructure upgrades.
func (s *Simulation) OptimizeFarm(farmID string, u agriculture.Upgrade) (agriculture.Farm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.world.Farms.OptimizeFarm(farmID, u)
	if err != nil {
		return agriculture.Farm{}, err
	}
	return f.Clone(), nil
}

// CropTotals returns cumulative harvested units per crop.
func (s *Simulation) CropTotals() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Farms.CropTotals()
}
