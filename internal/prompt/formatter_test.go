package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umaai/internal/types"
)

// dataRows returns the table rows below the header separator in the first
// table after heading.
func dataRows(rendered, heading string) []string {
	idx := strings.Index(rendered, heading)
	if idx < 0 {
		return nil
	}
	lines := strings.Split(rendered[idx:], "\n")
	var rows []string
	inTable := false
	for _, l := range lines[1:] {
		switch {
		case strings.HasPrefix(l, "|---"):
			inTable = true
		case inTable && strings.HasPrefix(l, "|"):
			rows = append(rows, l)
		case inTable:
			return rows
		}
	}
	return rows
}

func TestFormatOddsEntry_WinTableSingleRow(t *testing.T) {
	var one types.Num
	require.NoError(t, one.UnmarshalJSON([]byte(`"2.5"`)))

	entry := types.OddsTypeEntry{
		Type: types.OddsTFW,
		Data: types.OddsData{
			Tansho: []types.HorseOdds{{HorseNum: types.NumOf(1), Odds: types.OddsValue{Scalar: one}}},
		},
	}

	rendered := FormatOddsEntry(entry)
	rows := dataRows(rendered, "#### 単勝")
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0], "| 1 |")
	assert.Contains(t, rows[0], "| 2.5 |")

	assert.Empty(t, dataRows(rendered, "#### 複勝"))
}

func TestFormatOddsEntry_RangeCell(t *testing.T) {
	_, bundle := loadFixtures(t)
	wide, ok := bundle.Find(types.OddsWide)
	require.True(t, ok)

	rendered := FormatOddsEntry(wide)
	rows := dataRows(rendered, "### ワイド")
	require.Len(t, rows, 1)
	assert.Equal(t, "| 3-5 | 3.1 - 4.0 |", rows[0])

	// constructed values without published text render at odds precision
	rendered = FormatOddsEntry(types.OddsTypeEntry{
		Type: types.OddsWide,
		Data: types.OddsData{Combinations: []types.Combination{{Combination: "1-2", Odds: types.RangeOdds(3.1, 4.0)}}},
	})
	assert.Contains(t, rendered, "| 1-2 | 3.1 - 4.0 |")
}

func TestFormatOddsEntry_AllRowsEmitted(t *testing.T) {
	combos := make([]types.Combination, 0, 40)
	for i := 0; i < 40; i++ {
		combos = append(combos, types.Combination{Combination: "x", Odds: types.ScalarOdds(float64(i) + 1.5)})
	}
	rendered := FormatOddsEntry(types.OddsTypeEntry{Type: types.OddsUmaren, Data: types.OddsData{Combinations: combos}})
	assert.Len(t, dataRows(rendered, "### 馬連"), 40)
}

func TestFormatOddsEntry_PlaceAliases(t *testing.T) {
	_, bundle := loadFixtures(t)
	tfw, _ := bundle.Find(types.OddsTFW)

	rows := dataRows(FormatOddsEntry(tfw), "#### 複勝")
	require.Len(t, rows, 2)
	assert.Equal(t, "| 5 | サンプルホース | 1.2 - 1.5 |", rows[0])
	assert.Equal(t, "| 3 | データナシ | 3.0 - 4.5 |", rows[1])
}

func TestOddsRoundTrip(t *testing.T) {
	combos := []types.Combination{
		{Combination: "1-2", Odds: types.ScalarOdds(12.3)},
		{Combination: "1-3", Odds: types.RangeOdds(3.1, 4.0)},
		{Combination: "2-3", Odds: types.ScalarOdds(105.0)},
		{Combination: "4-5", Odds: types.RangeOdds(1.0, 1.2)},
	}
	for _, typ := range []types.OddsType{types.OddsUmaren, types.OddsWide} {
		rendered := FormatOdds(types.OddsBundle{{Type: typ, Data: types.OddsData{Combinations: combos}}})
		parsed := ParseCombinationTable(rendered)
		require.Len(t, parsed, len(combos))

		for i, want := range combos {
			got := parsed[i]
			assert.Equal(t, want.Combination, got.Combination)
			assert.Equal(t, want.Odds.IsRange, got.Odds.IsRange)
			if want.Odds.IsRange {
				assert.InDelta(t, want.Odds.Min.Value, got.Odds.Min.Value, 0.05)
				assert.InDelta(t, want.Odds.Max.Value, got.Odds.Max.Value, 0.05)
			} else {
				assert.InDelta(t, want.Odds.Scalar.Value, got.Odds.Scalar.Value, 0.05)
			}
			// re-rendering the parsed value is stable
			assert.Equal(t, want.Odds.String(), got.Odds.String())
		}
	}
}

func TestParseOddsCell(t *testing.T) {
	v, err := ParseOddsCell("2.5")
	require.NoError(t, err)
	assert.False(t, v.IsRange)
	assert.Equal(t, 2.5, v.Scalar.Value)

	v, err = ParseOddsCell(" 3.1 - 4.0 ")
	require.NoError(t, err)
	assert.True(t, v.IsRange)
	assert.Equal(t, "3.1 - 4.0", v.String())

	_, err = ParseOddsCell("-")
	assert.Error(t, err)
	_, err = ParseOddsCell("abc")
	assert.Error(t, err)
}

func TestParseCombinationTable_MissingAndText(t *testing.T) {
	rendered := FormatOddsEntry(types.OddsTypeEntry{
		Type: types.OddsUmaren,
		Data: types.OddsData{Combinations: []types.Combination{
			{Combination: "1-2"},
			{Combination: "1-3", Odds: types.OddsValue{Scalar: types.Num{Text: "取消"}}},
		}},
	})
	parsed := ParseCombinationTable(rendered)
	require.Len(t, parsed, 2)
	assert.False(t, parsed[0].Odds.Present())
	assert.Equal(t, "取消", parsed[1].Odds.String())
}

func TestFormatHorseTable(t *testing.T) {
	race, _ := loadFixtures(t)
	table := FormatHorseTable(race.Horses)
	lines := strings.Split(strings.TrimSpace(table), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t,
		"| 1 | 5 | サンプルホース | 78.26 | 65.4 | 60.2 | 70.1 | 55.0 | 1.00012 | 0.99987 | 1 | 2 | 1 | 騎手A | 15.3% | 調教師A | 10.0% | 4 | 2 |",
		lines[2])

	// missing values render as the placeholder
	assert.Equal(t,
		"| 2 | 3 | データナシ | 60.10 | - | - | - | - | - | - | - | - | - | 騎手B | - | 調教師B | - | - | - |",
		lines[3])
}

func TestFormatHorseTable_EscapesPipes(t *testing.T) {
	table := FormatHorseTable([]types.HorseEntry{{HorseNumber: types.NumOf(1), HorseName: "A|B"}})
	assert.Contains(t, table, `A\|B`)
}

func TestFormatHorseDetails_TopFive(t *testing.T) {
	horses := make([]types.HorseEntry, 8)
	for i := range horses {
		horses[i] = types.HorseEntry{HorseNumber: types.NumOf(float64(i + 1)), HorseName: "H"}
	}
	details := FormatHorseDetails(horses)
	assert.Equal(t, DetailHorses, strings.Count(details, "#### "))
	assert.Contains(t, details, "#### 5位: 5番 H")
	assert.NotContains(t, details, "6位")
	assert.Contains(t, details, "1.0以上は今回条件への適性あり")

	assert.Empty(t, FormatHorseDetails(nil))
}
