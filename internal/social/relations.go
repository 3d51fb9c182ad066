// Package social is the faction relationship engine: a faction registry and
// a pairwise relationship graph whose alliance/war transitions fire on
// threshold crossings, never on absolute values.
//
// Diplomacy is not safe for concurrent use; the owning simulation
// serializes calls.
package social

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/talgya/substrate/internal/clock"
	"github.com/talgya/substrate/internal/outcome"
)

// Score bounds and thresholds.
const (
	MinScore = -100
	MaxScore = 100

	AllianceThreshold = 50
	WarThreshold      = -50
	PeaceThreshold    = -20

	FriendlyThreshold = 30
	HostileThreshold  = -30

	// Changes at least this large are written to the event history.
	NotableDelta = 10

	SeedAllyBonus    = 30
	SeedEnemyPenalty = -20

	maxEvents = 1000
)

// Status is the derived standing between two factions.
type Status string

const (
	StatusAtWar    Status = "at_war"
	StatusAllied   Status = "allied"
	StatusFriendly Status = "friendly"
	StatusHostile  Status = "hostile"
	StatusNeutral  Status = "neutral"
)

// EventKind classifies a relationship event.
type EventKind string

const (
	EventChange   EventKind = "relationship_change"
	EventAlliance EventKind = "alliance_formed"
	EventWar      EventKind = "war_declared"
	EventPeace    EventKind = "peace_made"
)

// One-time effects granted by a transition.
var (
	AllianceEffects = []string{"shared_resources", "defensive_pact", "trade_bonus"}
	WarEffects      = []string{"hostile_territory", "raid_permission", "trade_embargo"}
)

// actionDeltas maps faction actions to relationship deltas.
var actionDeltas = map[string]int{
	"trade":  3,
	"gift":   8,
	"raid":   -15,
	"attack": -20,
	"help":   12,
	"betray": -30,
}

// ActionDelta returns the relationship delta for verb.
func ActionDelta(verb string) (int, bool) {
	d, ok := actionDeltas[verb]
	return d, ok
}

// Pair is an unordered faction pair, stored with A < B.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// MakePair normalizes the order of a and b.
func MakePair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

func (p Pair) String() string { return p.A + "/" + p.B }

// RelationEvent is one entry in the relationship history.
type RelationEvent struct {
	A      string    `json:"a"`
	B      string    `json:"b"`
	Kind   EventKind `json:"kind"`
	Delta  int       `json:"delta"`
	Score  int       `json:"score"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Change reports the result of one relationship update.
type Change struct {
	Pair        Pair        `json:"pair"`
	Old         int         `json:"old"`
	New         int         `json:"new"`
	Transitions []EventKind `json:"transitions,omitempty"`
	Effects     []string    `json:"effects,omitempty"`
}

// Diplomacy owns the faction registry and the relationship graph.
type Diplomacy struct {
	clk clock.Clock

	factions  map[string]*Faction
	memberOf  map[string]string
	scores    map[Pair]int
	alliances map[Pair]struct{}
	conflicts map[Pair]struct{}
	events    []RelationEvent
}

func newDiplomacy(clk clock.Clock) *Diplomacy {
	return &Diplomacy{
		clk:       clk,
		factions:  make(map[string]*Faction),
		memberOf:  make(map[string]string),
		scores:    make(map[Pair]int),
		alliances: make(map[Pair]struct{}),
		conflicts: make(map[Pair]struct{}),
	}
}

// New registers defs, creates one zero-score edge per unordered pair, then
// applies the seed ally (+30) and enemy (-20) biases once per pair.
func New(defs []FactionDef, clk clock.Clock) (*Diplomacy, error) {
	d := newDiplomacy(clk)
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("faction with empty id")
		}
		if _, dup := d.factions[def.ID]; dup {
			return nil, fmt.Errorf("duplicate faction %q", def.ID)
		}
		d.factions[def.ID] = newFaction(def)
	}
	ids := d.FactionIDs()
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			d.scores[MakePair(ids[i], ids[j])] = 0
		}
	}

	allied := make(map[Pair]bool)
	hostile := make(map[Pair]bool)
	for _, def := range defs {
		for _, other := range def.Allies {
			if _, ok := d.factions[other]; ok && other != def.ID {
				allied[MakePair(def.ID, other)] = true
			}
		}
		for _, other := range def.Enemies {
			if _, ok := d.factions[other]; ok && other != def.ID {
				hostile[MakePair(def.ID, other)] = true
			}
		}
	}
	for p := range allied {
		d.scores[p] = clampScore(d.scores[p] + SeedAllyBonus)
	}
	for p := range hostile {
		d.scores[p] = clampScore(d.scores[p] + SeedEnemyPenalty)
	}

	slog.Info("factions initialized", "count", len(d.factions), "edges", len(d.scores))
	return d, nil
}

// Faction looks up a faction.
func (d *Diplomacy) Faction(id string) (*Faction, bool) {
	f, ok := d.factions[id]
	return f, ok
}

// FactionIDs returns registered faction ids in sorted order.
func (d *Diplomacy) FactionIDs() []string {
	ids := make([]string, 0, len(d.factions))
	for id := range d.factions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Score returns the relationship score between a and b.
func (d *Diplomacy) Score(a, b string) int {
	return d.scores[MakePair(a, b)]
}

// UpdateRelationship applies delta to the a–b score (clamped to
// [-100, 100]) and fires any threshold transitions the change crosses.
func (d *Diplomacy) UpdateRelationship(a, b string, delta int, reason string) (Change, error) {
	if err := d.checkPair(a, b); err != nil {
		return Change{}, err
	}
	p := MakePair(a, b)
	old := d.scores[p]
	score := clampScore(old + delta)
	outcome.Invariant(score >= MinScore && score <= MaxScore, "score %d outside clamp for %s", score, p)
	d.scores[p] = score

	ch := Change{Pair: p, Old: old, New: score}
	now := d.clk.Now()
	if abs(delta) >= NotableDelta {
		d.record(RelationEvent{A: p.A, B: p.B, Kind: EventChange, Delta: delta, Score: score, Reason: reason, At: now})
	}

	if old < AllianceThreshold && score >= AllianceThreshold {
		if d.formAlliance(p) {
			ch.Transitions = append(ch.Transitions, EventAlliance)
			ch.Effects = append(ch.Effects, AllianceEffects...)
			d.record(RelationEvent{A: p.A, B: p.B, Kind: EventAlliance, Delta: delta, Score: score, Reason: reason, At: now})
		}
	}
	if old > WarThreshold && score <= WarThreshold {
		if d.declareWar(p) {
			ch.Transitions = append(ch.Transitions, EventWar)
			ch.Effects = append(ch.Effects, WarEffects...)
			d.record(RelationEvent{A: p.A, B: p.B, Kind: EventWar, Delta: delta, Score: score, Reason: reason, At: now})
		}
	}
	if old <= WarThreshold && score > PeaceThreshold {
		if d.makePeace(p) {
			ch.Transitions = append(ch.Transitions, EventPeace)
			d.record(RelationEvent{A: p.A, B: p.B, Kind: EventPeace, Delta: delta, Score: score, Reason: reason, At: now})
		}
	}
	return ch, nil
}

func (d *Diplomacy) formAlliance(p Pair) bool {
	if _, ok := d.alliances[p]; ok {
		return false
	}
	d.alliances[p] = struct{}{}
	slog.Info("alliance formed", "a", p.A, "b", p.B)
	return true
}

func (d *Diplomacy) declareWar(p Pair) bool {
	delete(d.alliances, p)
	if _, ok := d.conflicts[p]; ok {
		return false
	}
	d.conflicts[p] = struct{}{}
	slog.Info("war declared", "a", p.A, "b", p.B)
	return true
}

func (d *Diplomacy) makePeace(p Pair) bool {
	if _, ok := d.conflicts[p]; !ok {
		return false
	}
	delete(d.conflicts, p)
	slog.Info("peace made", "a", p.A, "b", p.B)
	return true
}

// HandleFactionAction translates an action verb into a relationship delta.
func (d *Diplomacy) HandleFactionAction(actor, verb, target, details string) (Change, error) {
	delta, ok := actionDeltas[verb]
	if !ok {
		return Change{}, outcome.Fail(outcome.KindInvalidRequest, "unknown faction action %q", verb)
	}
	reason := fmt.Sprintf("%s %s %s", actor, verb, target)
	if details != "" {
		reason += ": " + details
	}
	return d.UpdateRelationship(actor, target, delta, reason)
}

// RelationshipStatus derives standing: at_war > allied > friendly > hostile > neutral.
func (d *Diplomacy) RelationshipStatus(a, b string) Status {
	p := MakePair(a, b)
	if _, ok := d.conflicts[p]; ok {
		return StatusAtWar
	}
	if _, ok := d.alliances[p]; ok {
		return StatusAllied
	}
	score := d.scores[p]
	switch {
	case score >= FriendlyThreshold:
		return StatusFriendly
	case score <= HostileThreshold:
		return StatusHostile
	default:
		return StatusNeutral
	}
}

// Embargoed reports whether trade between a and b is under a war embargo.
func (d *Diplomacy) Embargoed(a, b string) bool {
	_, ok := d.conflicts[MakePair(a, b)]
	return ok
}

// GenerateFactionGoals returns the faction's static goals plus goals derived
// from each relationship's current status.
func (d *Diplomacy) GenerateFactionGoals(id string) ([]string, error) {
	f, ok := d.factions[id]
	if !ok {
		return nil, outcome.Fail(outcome.KindNotFound, "faction %s", id)
	}
	goals := append([]string(nil), f.Goals...)
	for _, other := range d.FactionIDs() {
		if other == id {
			continue
		}
		name := d.factions[other].Name
		switch d.RelationshipStatus(id, other) {
		case StatusAtWar:
			goals = append(goals,
				fmt.Sprintf("Raid %s territory", name),
				fmt.Sprintf("Defeat %s forces", name))
		case StatusAllied:
			goals = append(goals,
				fmt.Sprintf("Support %s in their endeavors", name),
				fmt.Sprintf("Establish trade routes with %s", name))
		case StatusHostile:
			goals = append(goals, fmt.Sprintf("Strengthen defenses against %s", name))
		}
	}
	return goals, nil
}

// Drift moves every non-zero score step points toward zero through
// UpdateRelationship, so crossings still fire.
func (d *Diplomacy) Drift(step int) []Change {
	if step <= 0 {
		return nil
	}
	pairs := d.Pairs()
	var out []Change
	for _, p := range pairs {
		score := d.scores[p]
		if score == 0 {
			continue
		}
		delta := -step
		if score < 0 {
			delta = step
		}
		if abs(delta) > abs(score) {
			delta = -score
		}
		ch, err := d.UpdateRelationship(p.A, p.B, delta, "drift")
		if err == nil && len(ch.Transitions) > 0 {
			out = append(out, ch)
		}
	}
	return out
}

// Pairs returns every edge in sorted order.
func (d *Diplomacy) Pairs() []Pair {
	return sortPairs(d.scores)
}

// Alliances returns allied pairs in sorted order.
func (d *Diplomacy) Alliances() []Pair {
	return sortPairs(d.alliances)
}

// Conflicts returns warring pairs in sorted order.
func (d *Diplomacy) Conflicts() []Pair {
	return sortPairs(d.conflicts)
}

// Events returns the relationship history, oldest first.
func (d *Diplomacy) Events() []RelationEvent {
	return d.events
}

func (d *Diplomacy) record(e RelationEvent) {
	d.events = append(d.events, e)
	if len(d.events) > maxEvents {
		d.events = d.events[len(d.events)-maxEvents:]
	}
}

func (d *Diplomacy) checkPair(a, b string) error {
	if a == b {
		return outcome.Fail(outcome.KindInvalidRequest, "faction %s cannot relate to itself", a)
	}
	if _, ok := d.factions[a]; !ok {
		return outcome.Fail(outcome.KindNotFound, "faction %s", a)
	}
	if _, ok := d.factions[b]; !ok {
		return outcome.Fail(outcome.KindNotFound, "faction %s", b)
	}
	return nil
}

func sortPairs[V any](m map[Pair]V) []Pair {
	out := make([]Pair, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A == out[j].A {
			return out[i].B < out[j].B
		}
		return out[i].A < out[j].A
	})
	return out
}

func clampScore(s int) int {
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
