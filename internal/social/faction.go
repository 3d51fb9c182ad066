package social

import "sort"

// FactionDef is the static definition of a faction.
type FactionDef struct {
	ID      string             `json:"id" yaml:"id"`
	Name    string             `json:"name" yaml:"name"`
	Traits  map[string]float64 `json:"traits" yaml:"traits"` // aggression, cooperation, economy
	Goals   []string           `json:"goals" yaml:"goals"`
	Allies  []string           `json:"allies" yaml:"allies"`
	Enemies []string           `json:"enemies" yaml:"enemies"`
}

// Faction is a registered faction with live membership and resources.
type Faction struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Traits  map[string]float64 `json:"traits"`
	Goals   []string           `json:"goals"`
	Allies  []string           `json:"allies"`
	Enemies []string           `json:"enemies"`

	Members map[string]struct{} `json:"-"`

	Wealth    float64 `json:"wealth"`
	Power     float64 `json:"power"`
	Influence float64 `json:"influence"`
}

// MemberIDs returns members in sorted order.
func (f *Faction) MemberIDs() []string {
	ids := make([]string, 0, len(f.Members))
	for id := range f.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func newFaction(def FactionDef) *Faction {
	traits := make(map[string]float64, len(def.Traits))
	for k, v := range def.Traits {
		traits[k] = v
	}
	return &Faction{
		ID:      def.ID,
		Name:    def.Name,
		Traits:  traits,
		Goals:   append([]string(nil), def.Goals...),
		Allies:  append([]string(nil), def.Allies...),
		Enemies: append([]string(nil), def.Enemies...),
		Members: make(map[string]struct{}),
	}
}
