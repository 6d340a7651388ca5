package progression

import "sort"

// Tier is a named progression milestone unlocked at a level threshold and
// represented externally as a guild role.
type Tier struct {
	Level int
	Name  string
	Color int
}

// Ladder is the ordered table of level thresholds to tier names. The zero
// value is a valid empty ladder.
type Ladder struct {
	tiers []Tier
}

// NewLadder builds a ladder from the configured tiers, sorted ascending by
// level threshold. Duplicate thresholds keep the last entry.
func NewLadder(tiers []Tier) Ladder {
	byLevel := make(map[int]Tier, len(tiers))
	for _, t := range tiers {
		byLevel[t.Level] = t
	}

	sorted := make([]Tier, 0, len(byLevel))
	for _, t := range byLevel {
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	return Ladder{tiers: sorted}
}

// TierForLevel returns the tier with the greatest threshold at or below the
// given level. The second return value is false when no tier qualifies and
// the user stays at the baseline role.
func (l Ladder) TierForLevel(level int) (Tier, bool) {
	var (
		best  Tier
		found bool
	)
	for _, t := range l.tiers {
		if t.Level > level {
			break
		}
		best = t
		found = true
	}

	return best, found
}

// TierByName looks up a ladder entry by its role name.
func (l Ladder) TierByName(name string) (Tier, bool) {
	for _, t := range l.tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// Tiers returns the ladder entries in ascending threshold order.
func (l Ladder) Tiers() []Tier {
	out := make([]Tier, len(l.tiers))
	copy(out, l.tiers)
	return out
}

// Names returns every tier name on the ladder.
func (l Ladder) Names() []string {
	names := make([]string, 0, len(l.tiers))
	for _, t := range l.tiers {
		names = append(names, t.Name)
	}
	return names
}
