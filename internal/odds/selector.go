// Package odds decides which odds categories go into an analysis document
// and provides ordered views over combination odds.
package odds

import (
	"strings"

	"umaai/internal/logging"
	"umaai/internal/types"
)

// labelCategories maps bet-type labels to odds categories. Win and place
// share the tfw category.
var labelCategories = map[string]types.OddsType{
	"単勝":  types.OddsTFW,
	"複勝":  types.OddsTFW,
	"単複":  types.OddsTFW,
	"枠連":  types.OddsWakuren,
	"馬連":  types.OddsUmaren,
	"ワイド": types.OddsWide,
	"馬単":  types.OddsUmatan,
	"3連複": types.OddsSanrenpuku,
	"3連単": types.OddsSanrentan,
	"三連複": types.OddsSanrenpuku,
	"三連単": types.OddsSanrentan,
}

// fullWidthDigits folds "３連複" to "3連複".
var fullWidthDigits = strings.NewReplacer(
	"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
	"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
)

// CategoryFor maps one label to its category. Raw category keys such as
// "umaren" are accepted as well.
func CategoryFor(label string) (types.OddsType, bool) {
	l := strings.TrimSpace(fullWidthDigits.Replace(label))
	if t, ok := labelCategories[l]; ok {
		return t, true
	}
	t := types.OddsType(strings.ToLower(l))
	if t.Known() {
		return t, true
	}
	return "", false
}

// Categories maps bet-type labels to the odds categories to include.
// The result keeps first-seen order without duplicates, and tfw is always
// first, even when no label is recognized.
func Categories(labels []string) []types.OddsType {
	out := []types.OddsType{types.OddsTFW}
	seen := map[types.OddsType]bool{types.OddsTFW: true}

	for _, label := range labels {
		t, ok := CategoryFor(label)
		if !ok {
			logging.Get(logging.CategoryOdds).Debug("ignoring unknown bet type %q", label)
			continue
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Filter returns the entries of bundle whose type is in categories, in
// category order. Categories missing from bundle are skipped. The entries
// share storage with bundle and must not be modified.
func Filter(bundle types.OddsBundle, categories []types.OddsType) types.OddsBundle {
	out := make(types.OddsBundle, 0, len(categories))
	for _, t := range categories {
		if e, ok := bundle.Find(t); ok {
			out = append(out, e)
		}
	}
	if len(out) < len(categories) {
		logging.Get(logging.CategoryOdds).Debug("filter: %d of %d categories published", len(out), len(categories))
	}
	return out
}

// Select is Categories followed by Filter.
func Select(bundle types.OddsBundle, labels []string) types.OddsBundle {
	return Filter(bundle, Categories(labels))
}
