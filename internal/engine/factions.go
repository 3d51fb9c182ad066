// Faction operations, serialized through the simulation.

package engine

import (
	"fmt"
	"strings"

	"github.com/talgya/substrate/internal/social"
)

// UpdateRelationship changes the score between two factions.
func (s *Simulation) UpdateRelationship(a, b string, delta int, reason string) (social.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, err := s.world.Diplomacy.UpdateRelationship(a, b, delta, reason)
	if err != nil {
		return ch, err
	}
	s.recordTransitions(ch, reason)
	return ch, nil
}

// HandleFactionAction applies the relationship delta for an action verb.
func (s *Simulation) HandleFactionAction(actor, verb, target, details string) (social.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, err := s.world.Diplomacy.HandleFactionAction(actor, verb, target, details)
	if err != nil {
		return ch, err
	}
	s.recordTransitions(ch, actor+" "+verb+" "+target)
	return ch, nil
}

// RelationshipStatus returns the derived standing between two factions.
func (s *Simulation) RelationshipStatus(a, b string) social.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Diplomacy.RelationshipStatus(a, b)
}

// GenerateFactionGoals returns static and relationship-derived goals.
func (s *Simulation) GenerateFactionGoals(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Diplomacy.GenerateFactionGoals(id)
}

// JoinFaction moves member into a faction.
func (s *Simulation) JoinFaction(member, faction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Diplomacy.Join(member, faction)
}

// LeaveFaction removes member from its faction.
func (s *Simulation) LeaveFaction(member string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Diplomacy.Leave(member)
}

// AdjustFactionResources changes a faction's power and influence. Wealth
// is recomputed from member wallets on each report.
func (s *Simulation) AdjustFactionResources(id string, power, influence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Diplomacy.AdjustResources(id, 0, power, influence)
}

// Drift relaxes every relationship toward neutral by the configured step.
func (s *Simulation) Drift() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changes := s.world.Diplomacy.Drift(s.cfg.Relations.DriftPerWeek)
	for _, ch := range changes {
		s.recordTransitions(ch, "drift")
	}
	return len(changes)
}

// refreshFactionWealth sets each faction's wealth to the coin total of its
// members. Callers hold the lock.
func (s *Simulation) refreshFactionWealth() {
	d := s.world.Diplomacy
	for _, id := range d.FactionIDs() {
		members, _ := d.Members(id)
		total := 0.0
		for _, m := range members {
			if w, ok := s.world.Market.LookupWallet(m); ok {
				total += w.Coins.InexactFloat64()
			}
		}
		d.SetWealth(id, total)
	}
}

func (s *Simulation) recordTransitions(ch social.Change, reason string) {
	for _, t := range ch.Transitions {
		desc := fmt.Sprintf("%s between %s and %s (%s)", strings.ReplaceAll(string(t), "_", " "), ch.Pair.A, ch.Pair.B, reason)
		if len(ch.Effects) > 0 {
			desc += ": " + strings.Join(ch.Effects, ", ")
		}
		s.record("diplomacy", desc)
	}
}
