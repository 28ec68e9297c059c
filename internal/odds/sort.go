package odds

import (
	"fmt"
	"sort"

	"umaai/internal/types"
)

// SortMode orders combination odds for display.
type SortMode string

const (
	SortCombination SortMode = "combination" // published order
	SortOddsAsc     SortMode = "odds_asc"
	SortOddsDesc    SortMode = "odds_desc"
)

// ParseSortMode validates a sort mode name. Empty means SortCombination.
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(s) {
	case "", SortCombination:
		return SortCombination, nil
	case SortOddsAsc, SortOddsDesc:
		return SortMode(s), nil
	}
	return "", fmt.Errorf("unknown sort mode %q (valid: combination, odds_asc, odds_desc)", s)
}

// SortCombinations returns a sorted copy of combos; the input is never
// reordered. Ranges sort by their minimum. Entries without odds sort last in
// both directions and ties keep published order.
func SortCombinations(combos []types.Combination, mode SortMode) []types.Combination {
	out := make([]types.Combination, len(combos))
	copy(out, combos)
	if mode == SortCombination || mode == "" {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		return oddsLess(out[i].Odds, out[j].Odds, mode)
	})
	return out
}

// SortHorseOdds is SortCombinations for win/place lists.
func SortHorseOdds(rows []types.HorseOdds, mode SortMode) []types.HorseOdds {
	out := make([]types.HorseOdds, len(rows))
	copy(out, rows)
	if mode == SortCombination || mode == "" {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		return oddsLess(out[i].Odds, out[j].Odds, mode)
	})
	return out
}

func oddsLess(a, b types.OddsValue, mode SortMode) bool {
	ap, bp := hasValue(a), hasValue(b)
	if ap != bp {
		return ap
	}
	if !ap {
		return false
	}
	if mode == SortOddsDesc {
		return a.Low() > b.Low()
	}
	return a.Low() < b.Low()
}

func hasValue(o types.OddsValue) bool {
	if o.IsRange {
		return o.Min.Valid
	}
	return o.Scalar.Valid
}
