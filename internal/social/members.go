package social

import (
	"github.com/talgya/substrate/internal/outcome"
)

// Join moves member into faction id. A member belongs to at most one
// faction; joining a new one leaves the old.
func (d *Diplomacy) Join(member, id string) error {
	f, ok := d.factions[id]
	if !ok {
		return outcome.Fail(outcome.KindNotFound, "faction %s", id)
	}
	if prev, ok := d.memberOf[member]; ok {
		if prev == id {
			return nil
		}
		delete(d.factions[prev].Members, member)
	}
	f.Members[member] = struct{}{}
	d.memberOf[member] = id
	return nil
}

// Leave removes member from whatever faction holds it.
func (d *Diplomacy) Leave(member string) bool {
	id, ok := d.memberOf[member]
	if !ok {
		return false
	}
	delete(d.factions[id].Members, member)
	delete(d.memberOf, member)
	return true
}

// FactionOf returns the faction member belongs to.
func (d *Diplomacy) FactionOf(member string) (string, bool) {
	id, ok := d.memberOf[member]
	return id, ok
}

// Members returns the sorted member ids of faction id.
func (d *Diplomacy) Members(id string) ([]string, error) {
	f, ok := d.factions[id]
	if !ok {
		return nil, outcome.Fail(outcome.KindNotFound, "faction %s", id)
	}
	return f.MemberIDs(), nil
}

// AdjustResources adds the given deltas to a faction's aggregates. Power
// and influence never go below zero.
func (d *Diplomacy) AdjustResources(id string, wealth, power, influence float64) error {
	f, ok := d.factions[id]
	if !ok {
		return outcome.Fail(outcome.KindNotFound, "faction %s", id)
	}
	f.Wealth += wealth
	f.Power = max(0, f.Power+power)
	f.Influence = max(0, f.Influence+influence)
	return nil
}

// SetWealth overwrites a faction's wealth with an externally computed total.
func (d *Diplomacy) SetWealth(id string, wealth float64) {
	if f, ok := d.factions[id]; ok {
		f.Wealth = wealth
	}
}
