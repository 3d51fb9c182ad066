package social

import (
	"errors"
	"testing"
	"time"

	"github.com/talgya/substrate/internal/clock"
	"github.com/talgya/substrate/internal/outcome"
)

var epoch = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func plainDefs(ids ...string) []FactionDef {
	defs := make([]FactionDef, 0, len(ids))
	for _, id := range ids {
		defs = append(defs, FactionDef{ID: id, Name: id})
	}
	return defs
}

func mustDiplomacy(t *testing.T, defs []FactionDef) *Diplomacy {
	t.Helper()
	d, err := New(defs, clock.NewFake(epoch))
	if err != nil {
		t.Fatalf("new diplomacy: %v", err)
	}
	return d
}

func TestRaidsDeclareWarOnFourthCrossing(t *testing.T) {
	d := mustDiplomacy(t, plainDefs("north", "south"))

	for i := 0; i < 3; i++ {
		if _, err := d.HandleFactionAction("north", "raid", "south", ""); err != nil {
			t.Fatalf("raid %d: %v", i, err)
		}
	}
	if got := d.Score("north", "south"); got != -45 {
		t.Fatalf("score after 3 raids = %d, want -45", got)
	}
	if len(d.Conflicts()) != 0 {
		t.Fatalf("conflict before crossing: %v", d.Conflicts())
	}

	ch, err := d.HandleFactionAction("north", "raid", "south", "border farms")
	if err != nil {
		t.Fatalf("raid 4: %v", err)
	}
	if ch.New != -60 {
		t.Fatalf("score after 4 raids = %d, want -60", ch.New)
	}
	if len(ch.Transitions) != 1 || ch.Transitions[0] != EventWar {
		t.Fatalf("transitions = %v, want [war_declared]", ch.Transitions)
	}
	if len(ch.Effects) != len(WarEffects) {
		t.Fatalf("effects = %v", ch.Effects)
	}
	if st := d.RelationshipStatus("south", "north"); st != StatusAtWar {
		t.Fatalf("status = %s, want at_war", st)
	}
	if !d.Embargoed("north", "south") {
		t.Fatalf("expected embargo while at war")
	}
}

func TestWarRemovesAlliance(t *testing.T) {
	d := mustDiplomacy(t, plainDefs("a", "b"))
	ch, err := d.UpdateRelationship("a", "b", 60, "treaty")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(ch.Transitions) != 1 || ch.Transitions[0] != EventAlliance {
		t.Fatalf("transitions = %v", ch.Transitions)
	}
	if d.RelationshipStatus("a", "b") != StatusAllied {
		t.Fatalf("expected allied")
	}

	if _, err := d.UpdateRelationship("a", "b", -120, "betrayal"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(d.Alliances()) != 0 {
		t.Fatalf("alliance survived war: %v", d.Alliances())
	}
	if len(d.Conflicts()) != 1 {
		t.Fatalf("conflicts = %v", d.Conflicts())
	}
}

func TestScoreClamps(t *testing.T) {
	d := mustDiplomacy(t, plainDefs("a", "b"))
	if _, err := d.UpdateRelationship("a", "b", 500, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := d.Score("a", "b"); got != MaxScore {
		t.Fatalf("score = %d, want %d", got, MaxScore)
	}
	if _, err := d.UpdateRelationship("b", "a", -1000, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := d.Score("a", "b"); got != MinScore {
		t.Fatalf("score = %d, want %d", got, MinScore)
	}
}

func TestTransitionsFireOnlyOnCrossing(t *testing.T) {
	d := mustDiplomacy(t, plainDefs("a", "b"))
	if _, err := d.UpdateRelationship("a", "b", 55, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	ch, err := d.UpdateRelationship("a", "b", 5, "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(ch.Transitions) != 0 {
		t.Fatalf("repeat alliance fired: %v", ch.Transitions)
	}

	// Dip below and recross while still allied: no duplicate event.
	if _, err := d.UpdateRelationship("a", "b", -20, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	ch, err = d.UpdateRelationship("a", "b", 20, "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(ch.Transitions) != 0 {
		t.Fatalf("recross fired while allied: %v", ch.Transitions)
	}

	alliances := 0
	for _, e := range d.Events() {
		if e.Kind == EventAlliance {
			alliances++
		}
	}
	if alliances != 1 {
		t.Fatalf("alliance events = %d, want 1", alliances)
	}
}

func TestPeaceRequiresRiseAbovePeaceThreshold(t *testing.T) {
	d := mustDiplomacy(t, plainDefs("a", "b"))
	if _, err := d.UpdateRelationship("a", "b", -60, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	ch, err := d.UpdateRelationship("a", "b", 35, "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(ch.Transitions) != 0 || d.RelationshipStatus("a", "b") != StatusAtWar {
		t.Fatalf("peace at -25: %v", ch.Transitions)
	}

	if _, err := d.UpdateRelationship("a", "b", -30, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	ch, err = d.UpdateRelationship("a", "b", 45, "envoys")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(ch.Transitions) != 1 || ch.Transitions[0] != EventPeace {
		t.Fatalf("transitions = %v, want [peace_made]", ch.Transitions)
	}
	if d.RelationshipStatus("a", "b") != StatusNeutral {
		t.Fatalf("status = %s", d.RelationshipStatus("a", "b"))
	}
}

func TestSeedBiasesAppliedOncePerPair(t *testing.T) {
	d := mustDiplomacy(t, seedFactions())
	// crown and iron list each other as allies.
	if got := d.Score("crown", "iron"); got != SeedAllyBonus {
		t.Fatalf("crown/iron = %d, want %d", got, SeedAllyBonus)
	}
	if got := d.Score("crown", "ashen"); got != SeedEnemyPenalty {
		t.Fatalf("crown/ashen = %d, want %d", got, SeedEnemyPenalty)
	}
	if got := d.Score("crown", "merchants"); got != 0 {
		t.Fatalf("crown/merchants = %d, want 0", got)
	}
	if len(d.Pairs()) != 10 {
		t.Fatalf("edges = %d, want 10", len(d.Pairs()))
	}
}

func TestStatusPrecedence(t *testing.T) {
	d := mustDiplomacy(t, plainDefs("a", "b", "c"))
	if _, err := d.UpdateRelationship("a", "b", 35, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	if st := d.RelationshipStatus("a", "b"); st != StatusFriendly {
		t.Fatalf("status = %s, want friendly", st)
	}
	if _, err := d.UpdateRelationship("a", "c", -30, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	if st := d.RelationshipStatus("a", "c"); st != StatusHostile {
		t.Fatalf("status = %s, want hostile", st)
	}
	if st := d.RelationshipStatus("b", "c"); st != StatusNeutral {
		t.Fatalf("status = %s, want neutral", st)
	}
}

func TestUnknownActionAndFaction(t *testing.T) {
	d := mustDiplomacy(t, plainDefs("a", "b"))
	_, err := d.HandleFactionAction("a", "wave", "b", "")
	if !errors.Is(err, outcome.ErrInvalidRequest) {
		t.Fatalf("err = %v, want invalid request", err)
	}
	_, err = d.UpdateRelationship("a", "nobody", 5, "")
	if !errors.Is(err, outcome.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	_, err = d.UpdateRelationship("a", "a", 5, "")
	if !errors.Is(err, outcome.ErrInvalidRequest) {
		t.Fatalf("err = %v, want invalid request", err)
	}
}

func TestGenerateFactionGoals(t *testing.T) {
	d := mustDiplomacy(t, []FactionDef{
		{ID: "a", Name: "Alpha", Goals: []string{"Grow"}},
		{ID: "b", Name: "Beta"},
		{ID: "c", Name: "Gamma"},
	})
	if _, err := d.UpdateRelationship("a", "b", -70, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := d.UpdateRelationship("a", "c", 60, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	goals, err := d.GenerateFactionGoals("a")
	if err != nil {
		t.Fatalf("goals: %v", err)
	}
	want := []string{
		"Grow",
		"Raid Beta territory",
		"Defeat Beta forces",
		"Support Gamma in their endeavors",
		"Establish trade routes with Gamma",
	}
	if len(goals) != len(want) {
		t.Fatalf("goals = %v", goals)
	}
	for i := range want {
		if goals[i] != want[i] {
			t.Fatalf("goal[%d] = %q, want %q", i, goals[i], want[i])
		}
	}
}

func TestDriftMovesTowardZero(t *testing.T) {
	d := mustDiplomacy(t, plainDefs("a", "b", "c"))
	if _, err := d.UpdateRelationship("a", "b", 3, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := d.UpdateRelationship("a", "c", -52, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	d.Drift(5)
	if got := d.Score("a", "b"); got != 0 {
		t.Fatalf("a/b = %d, want 0", got)
	}
	if got := d.Score("a", "c"); got != -47 {
		t.Fatalf("a/c = %d, want -47", got)
	}
	if d.RelationshipStatus("a", "c") != StatusAtWar {
		t.Fatalf("drift should not end a war above the peace threshold")
	}
}

func TestMembership(t *testing.T) {
	d := mustDiplomacy(t, plainDefs("a", "b"))
	if err := d.Join("p1", "a"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := d.Join("p1", "b"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if id, _ := d.FactionOf("p1"); id != "b" {
		t.Fatalf("faction = %s, want b", id)
	}
	if m, _ := d.Members("a"); len(m) != 0 {
		t.Fatalf("a still has members %v", m)
	}
	if !d.Leave("p1") || d.Leave("p1") {
		t.Fatalf("leave should succeed once")
	}
	if err := d.Join("p2", "zz"); !errors.Is(err, outcome.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestExportRestoreKeepsGraph(t *testing.T) {
	d := mustDiplomacy(t, seedFactions())
	for i := 0; i < 3; i++ {
		if _, err := d.HandleFactionAction("ashen", "attack", "crown", ""); err != nil {
			t.Fatalf("attack: %v", err)
		}
	}
	if err := d.Join("p1", "merchants"); err != nil {
		t.Fatalf("join: %v", err)
	}

	r := Restore(clock.NewFake(epoch), d.Export())
	if got, want := r.Score("ashen", "crown"), d.Score("ashen", "crown"); got != want {
		t.Fatalf("restored score = %d, want %d", got, want)
	}
	if r.RelationshipStatus("ashen", "crown") != StatusAtWar {
		t.Fatalf("war not restored")
	}
	if r.Score("crown", "iron") != SeedAllyBonus {
		t.Fatalf("seed bias reapplied or lost: %d", r.Score("crown", "iron"))
	}
	if id, _ := r.FactionOf("p1"); id != "merchants" {
		t.Fatalf("membership not restored")
	}
	if len(r.Events()) != len(d.Events()) {
		t.Fatalf("events = %d, want %d", len(r.Events()), len(d.Events()))
	}
}

// seedFactions matches the factions in the default configuration.
func seedFactions() []FactionDef {
	return []FactionDef{
		{
			ID:      "crown",
			Name:    "The Crown",
			Traits:  map[string]float64{"aggression": 0.5, "cooperation": 0.4, "economy": 0.3},
			Goals:   []string{"Hold the capital", "Collect tribute from the provinces"},
			Allies:  []string{"iron"},
			Enemies: []string{"ashen"},
		},
		{
			ID:      "merchants",
			Name:    "Merchant's Compact",
			Traits:  map[string]float64{"aggression": 0.1, "cooperation": 0.8, "economy": 0.9},
			Goals:   []string{"Control the trade routes", "Stockpile rare goods"},
			Allies:  []string{"verdant"},
			Enemies: []string{"ashen"},
		},
		{
			ID:      "iron",
			Name:    "Iron Brotherhood",
			Traits:  map[string]float64{"aggression": 0.9, "cooperation": 0.3, "economy": 0.2},
			Goals:   []string{"Forge superior weapons", "Secure the mountain passes"},
			Allies:  []string{"crown"},
			Enemies: []string{"verdant"},
		},
		{
			ID:      "verdant",
			Name:    "Verdant Circle",
			Traits:  map[string]float64{"aggression": 0.1, "cooperation": 0.7, "economy": 0.4},
			Goals:   []string{"Tend the sacred groves", "Expand the farmlands"},
			Allies:  []string{"merchants"},
			Enemies: []string{"ashen"},
		},
		{
			ID:      "ashen",
			Name:    "Ashen Path",
			Traits:  map[string]float64{"aggression": 0.7, "cooperation": 0.1, "economy": 0.5},
			Goals:   []string{"Undermine the Crown", "Smuggle contraband"},
			Enemies: []string{"crown"},
		},
	}
}
