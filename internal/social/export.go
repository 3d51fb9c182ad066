package social

import (
	"github.com/talgya/substrate/internal/clock"
	"github.com/talgya/substrate/internal/persistence/snapshot"
)

// Export captures the faction registry and relationship graph.
func (d *Diplomacy) Export() snapshot.FactionsV1 {
	var out snapshot.FactionsV1
	for _, id := range d.FactionIDs() {
		f := d.factions[id]
		out.Factions = append(out.Factions, snapshot.FactionV1{
			ID:        f.ID,
			Name:      f.Name,
			Traits:    f.Traits,
			Goals:     f.Goals,
			Allies:    f.Allies,
			Enemies:   f.Enemies,
			Members:   f.MemberIDs(),
			Wealth:    f.Wealth,
			Power:     f.Power,
			Influence: f.Influence,
		})
	}
	for _, p := range d.Pairs() {
		out.Edges = append(out.Edges, snapshot.EdgeV1{A: p.A, B: p.B, Score: d.scores[p]})
	}
	for _, p := range d.Alliances() {
		out.Alliances = append(out.Alliances, [2]string{p.A, p.B})
	}
	for _, p := range d.Conflicts() {
		out.Conflicts = append(out.Conflicts, [2]string{p.A, p.B})
	}
	for _, e := range d.events {
		out.Events = append(out.Events, snapshot.RelationEventV1{
			A: e.A, B: e.B, Kind: string(e.Kind), Delta: e.Delta, Score: e.Score, Reason: e.Reason, At: e.At,
		})
	}
	return out
}

// Restore rebuilds a Diplomacy from a snapshot without re-applying seed biases.
func Restore(clk clock.Clock, snap snapshot.FactionsV1) *Diplomacy {
	d := newDiplomacy(clk)
	for _, fv := range snap.Factions {
		f := newFaction(FactionDef{
			ID: fv.ID, Name: fv.Name, Traits: fv.Traits, Goals: fv.Goals, Allies: fv.Allies, Enemies: fv.Enemies,
		})
		f.Wealth, f.Power, f.Influence = fv.Wealth, fv.Power, fv.Influence
		for _, m := range fv.Members {
			f.Members[m] = struct{}{}
			d.memberOf[m] = f.ID
		}
		d.factions[f.ID] = f
	}
	for _, e := range snap.Edges {
		d.scores[MakePair(e.A, e.B)] = clampScore(e.Score)
	}
	for _, a := range snap.Alliances {
		d.alliances[MakePair(a[0], a[1])] = struct{}{}
	}
	for _, c := range snap.Conflicts {
		d.conflicts[MakePair(c[0], c[1])] = struct{}{}
	}
	for _, e := range snap.Events {
		d.events = append(d.events, RelationEvent{
			A: e.A, B: e.B, Kind: EventKind(e.Kind), Delta: e.Delta, Score: e.Score, Reason: e.Reason, At: e.At,
		})
	}
	return d
}
