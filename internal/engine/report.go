package engine

import (
	"log/slog"

	"github.com/dustin/go-humanize"
)

// Stats is an aggregate view of the simulation.
type Stats struct {
	Tick          uint64  `json:"tick"`
	Resources     int     `json:"resources"`
	OpenOffers    int     `json:"open_offers"`
	Trades        int     `json:"trades"`
	Treasury      float64 `json:"treasury"`
	Farms         int     `json:"farms"`
	Growing       int     `json:"growing"`
	Harvested     int     `json:"harvested"`
	Alliances     int     `json:"alliances"`
	Conflicts     int     `json:"conflicts"`
	PendingTimers int     `json:"pending_timers"`
}

// Stats collects the current aggregate view.
func (s *Simulation) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats()
}

func (s *Simulation) stats() Stats {
	harvested := 0
	for _, n := range s.world.Farms.CropTotals() {
		harvested += n
	}
	return Stats{
		Tick:          s.lastTick,
		Resources:     len(s.world.Market.ResourceIDs()),
		OpenOffers:    len(s.world.Market.OpenOffers()),
		Trades:        len(s.world.Market.Trades()),
		Treasury:      s.world.Market.Treasury().InexactFloat64(),
		Farms:         s.world.Farms.FarmCount(),
		Growing:       len(s.world.Farms.GrowingTasks()),
		Harvested:     harvested,
		Alliances:     len(s.world.Diplomacy.Alliances()),
		Conflicts:     len(s.world.Diplomacy.Conflicts()),
		PendingTimers: s.queue.Len(),
	}
}

// Report refreshes faction wealth and logs a summary.
func (s *Simulation) Report(tick uint64) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshFactionWealth()
	st := s.stats()

	// Count events by category.
	eventCounts := make(map[string]int)
	for _, e := range s.events {
		eventCounts[e.Category]++
	}

	slog.Info("simulation report",
		"tick", tick,
		"resources", st.Resources,
		"open_offers", st.OpenOffers,
		"trades", humanize.Comma(int64(st.Trades)),
		"treasury", humanize.CommafWithDigits(st.Treasury, 2)+" "+s.world.Market.Currency().Symbol,
		"farms", st.Farms,
		"growing", st.Growing,
		"harvested", humanize.Comma(int64(st.Harvested)),
		"alliances", st.Alliances,
		"conflicts", st.Conflicts,
		"pending_timers", st.PendingTimers,
		"events_economy", eventCounts["economy"],
		"events_diplomacy", eventCounts["diplomacy"],
		"events_agriculture", eventCounts["agriculture"],
	)

	// Log recent diplomacy events.
	recentStart := 0
	if len(s.events) > 20 {
		recentStart = len(s.events) - 20
	}
	for _, e := range s.events[recentStart:] {
		if e.Category == "diplomacy" {
			slog.Info("event", "category", e.Category, "description", e.Description)
		}
	}
	return st
}
