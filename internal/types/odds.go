package types

import (
	"bytes"
	"encoding/json"
)

// =============================================================================
// ODDS DATA
// =============================================================================

// OddsType is a bet-type category key as used in odds/<race_number>.json.
type OddsType string

const (
	OddsTFW        OddsType = "tfw" // win + place
	OddsWakuren    OddsType = "wakuren"
	OddsUmaren     OddsType = "umaren"
	OddsWide       OddsType = "wide"
	OddsUmatan     OddsType = "umatan"
	OddsSanrenpuku OddsType = "sanrenpuku"
	OddsSanrentan  OddsType = "sanrentan"
)

// AllOddsTypes lists every category in display order.
var AllOddsTypes = []OddsType{
	OddsTFW, OddsWakuren, OddsUmaren, OddsWide, OddsUmatan, OddsSanrenpuku, OddsSanrentan,
}

// Known reports whether t is one of the published categories.
func (t OddsType) Known() bool {
	for _, k := range AllOddsTypes {
		if k == t {
			return true
		}
	}
	return false
}

// OddsValue is either a scalar (win, quinella, ...) or a {min,max} range
// (place, quinella-place).
type OddsValue struct {
	Scalar  Num
	Min     Num
	Max     Num
	IsRange bool
}

// ScalarOdds returns a scalar odds value.
func ScalarOdds(v float64) OddsValue {
	return OddsValue{Scalar: NumOf(v)}
}

// RangeOdds returns a range odds value.
func RangeOdds(lo, hi float64) OddsValue {
	return OddsValue{Min: NumOf(lo), Max: NumOf(hi), IsRange: true}
}

// Present reports whether any odds were published.
func (o OddsValue) Present() bool {
	if o.IsRange {
		return o.Min.Present() || o.Max.Present()
	}
	return o.Scalar.Present()
}

// String renders a scalar as published and a range as "min - max".
// Values without published text use one decimal, the precision odds are
// quoted in.
func (o OddsValue) String() string {
	if o.IsRange {
		return o.Min.Literal(1) + " - " + o.Max.Literal(1)
	}
	return o.Scalar.Literal(1)
}

// Low returns the value used for ordering: the scalar, or the range minimum.
func (o OddsValue) Low() float64 {
	if o.IsRange {
		return o.Min.Value
	}
	return o.Scalar.Value
}

// UnmarshalJSON accepts a scalar (number or string) or a {min,max} object.
func (o *OddsValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var r struct {
			Min Num `json:"min"`
			Max Num `json:"max"`
		}
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return err
		}
		*o = OddsValue{Min: r.Min, Max: r.Max, IsRange: true}
		return nil
	}
	var n Num
	if err := n.UnmarshalJSON(trimmed); err != nil {
		return err
	}
	*o = OddsValue{Scalar: n}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (o OddsValue) MarshalJSON() ([]byte, error) {
	if o.IsRange {
		return json.Marshal(struct {
			Min Num `json:"min"`
			Max Num `json:"max"`
		}{o.Min, o.Max})
	}
	return o.Scalar.MarshalJSON()
}

// HorseOdds is one row of the win (tansho) or place (fukusho) list.
type HorseOdds struct {
	Waku      Num       `json:"waku"`
	HorseNum  Num       `json:"horse_num"`
	HorseName string    `json:"horse_name"`
	Odds      OddsValue `json:"odds"`
}

// UnmarshalJSON also accepts the horse_number and odds_min/odds_max spellings.
func (h *HorseOdds) UnmarshalJSON(data []byte) error {
	type plain HorseOdds
	var aux struct {
		plain
		HorseNumber Num `json:"horse_number"`
		OddsMin     Num `json:"odds_min"`
		OddsMax     Num `json:"odds_max"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*h = HorseOdds(aux.plain)
	if !h.HorseNum.Present() {
		h.HorseNum = aux.HorseNumber
	}
	if !h.Odds.Present() && (aux.OddsMin.Present() || aux.OddsMax.Present()) {
		h.Odds = OddsValue{Min: aux.OddsMin, Max: aux.OddsMax, IsRange: true}
	}
	return nil
}

// Combination is one multi-horse combination record.
type Combination struct {
	Combination string    `json:"combination"`
	Odds        OddsValue `json:"odds"`
}

// UnmarshalJSON also accepts odds_min/odds_max.
func (c *Combination) UnmarshalJSON(data []byte) error {
	type plain Combination
	var aux struct {
		plain
		OddsMin Num `json:"odds_min"`
		OddsMax Num `json:"odds_max"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Combination(aux.plain)
	if !c.Odds.Present() && (aux.OddsMin.Present() || aux.OddsMax.Present()) {
		c.Odds = OddsValue{Min: aux.OddsMin, Max: aux.OddsMax, IsRange: true}
	}
	return nil
}

// OddsData is the type-specific payload of an OddsTypeEntry.
type OddsData struct {
	Tansho       []HorseOdds   `json:"tansho,omitempty"`
	Fukusho      []HorseOdds   `json:"fukusho,omitempty"`
	Combinations []Combination `json:"combinations,omitempty"`
}

// OddsTypeEntry holds the odds for one bet-type category.
type OddsTypeEntry struct {
	Type OddsType `json:"odds_type"`
	Name string   `json:"odds_type_name"`
	Data OddsData `json:"data"`
}

// OddsBundle is every published category for one race, in file order.
type OddsBundle []OddsTypeEntry

// Find returns the entry for t.
func (b OddsBundle) Find(t OddsType) (OddsTypeEntry, bool) {
	for _, e := range b {
		if e.Type == t {
			return e, true
		}
	}
	return OddsTypeEntry{}, false
}

// Has reports whether t is present.
func (b OddsBundle) Has(t OddsType) bool {
	_, ok := b.Find(t)
	return ok
}

// Types returns the categories in bundle order.
func (b OddsBundle) Types() []OddsType {
	out := make([]OddsType, 0, len(b))
	for _, e := range b {
		out = append(out, e.Type)
	}
	return out
}
