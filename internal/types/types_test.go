package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNum_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		valid   bool
		text    string
		value   float64
		wantErr bool
	}{
		{"number keeps literal", `4.0`, true, "4.0", 4, false},
		{"numeric string", `"2.5"`, true, "2.5", 2.5, false},
		{"free text", `"中止"`, false, "中止", 0, false},
		{"null", `null`, false, "", 0, false},
		{"garbage", `tru`, false, "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Num
			err := json.Unmarshal([]byte(tt.input), &n)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.valid, n.Valid)
			assert.Equal(t, tt.text, n.Text)
			assert.InDelta(t, tt.value, n.Value, 1e-9)
		})
	}
}

func TestNum_Formatting(t *testing.T) {
	assert.Equal(t, "1.00012", NumOf(1.000123).Fixed(5))
	assert.Equal(t, "62.35", NumOf(62.345678).Fixed(2))
	assert.Equal(t, Placeholder, Num{}.Fixed(2))
	assert.Equal(t, "中止", Num{Text: "中止"}.Fixed(1))

	published := Num{Value: 4, Text: "4.0", Valid: true}
	assert.Equal(t, "4.0", published.Literal(1))
	assert.Equal(t, "4", published.Fixed(0))
	assert.Equal(t, "3.0", NumOf(3).Literal(1))
}

func TestNum_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Num `json:"a"`
		B Num `json:"b"`
		C Num `json:"c"`
	}{A: Num{Value: 4, Text: "4.0", Valid: true}, B: Num{Text: "取消"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":4.0,"b":"取消","c":null}`, string(data))
}

func TestOddsValue_JSON(t *testing.T) {
	t.Run("scalar", func(t *testing.T) {
		var o OddsValue
		require.NoError(t, json.Unmarshal([]byte(`"2.5"`), &o))
		assert.False(t, o.IsRange)
		assert.Equal(t, "2.5", o.String())
		assert.InDelta(t, 2.5, o.Low(), 1e-9)
	})

	t.Run("range keeps trailing zero", func(t *testing.T) {
		var o OddsValue
		require.NoError(t, json.Unmarshal([]byte(`{"min":3.1,"max":4.0}`), &o))
		assert.True(t, o.IsRange)
		assert.Equal(t, "3.1 - 4.0", o.String())
		assert.InDelta(t, 3.1, o.Low(), 1e-9)
	})

	t.Run("constructed values use one decimal", func(t *testing.T) {
		assert.Equal(t, "3.1 - 4.0", RangeOdds(3.1, 4).String())
		assert.Equal(t, "12.0", ScalarOdds(12).String())
	})
}

func TestHorseOdds_Aliases(t *testing.T) {
	var rows []HorseOdds
	input := `[
		{"waku": 1, "horse_num": 1, "horse_name": "アルファ", "odds": {"min": 1.2, "max": 1.5}},
		{"waku": 2, "horse_number": 2, "horse_name": "ベータ", "odds_min": 2.0, "odds_max": 3.4}
	]`
	require.NoError(t, json.Unmarshal([]byte(input), &rows))
	require.Len(t, rows, 2)

	assert.Equal(t, "1", rows[0].HorseNum.String())
	assert.Equal(t, "1.2 - 1.5", rows[0].Odds.String())
	assert.Equal(t, "2", rows[1].HorseNum.String())
	assert.Equal(t, "2.0 - 3.4", rows[1].Odds.String())
}

func TestOddsBundle_Decode(t *testing.T) {
	input := `[
		{"odds_type": "tfw", "odds_type_name": "単勝・複勝", "data": {
			"tansho": [{"horse_num": 1, "horse_name": "アルファ", "odds": "2.5"}],
			"fukusho": [{"horse_num": 1, "horse_name": "アルファ", "odds": {"min": 1.1, "max": 1.3}}]
		}},
		{"odds_type": "wide", "odds_type_name": "ワイド", "data": {
			"combinations": [{"combination": "1-2", "odds": {"min": 3.1, "max": 4.0}}]
		}}
	]`
	var b OddsBundle
	require.NoError(t, json.Unmarshal([]byte(input), &b))

	assert.Equal(t, []OddsType{OddsTFW, OddsWide}, b.Types())
	assert.True(t, b.Has(OddsWide))
	assert.False(t, b.Has(OddsUmaren))

	wide, ok := b.Find(OddsWide)
	require.True(t, ok)
	assert.Equal(t, "3.1 - 4.0", wide.Data.Combinations[0].Odds.String())
}

func TestRaceRecord_Validate(t *testing.T) {
	race := RaceRecord{
		RaceNumber: "東京1R",
		Horses: []HorseEntry{
			{HorseNumber: NumOf(1)},
			{HorseNumber: NumOf(2)},
		},
	}
	assert.NoError(t, race.Validate())

	race.Horses = append(race.Horses, HorseEntry{HorseNumber: NumOf(1)})
	assert.Error(t, race.Validate())
}

func TestHorseEntry_LastFinish(t *testing.T) {
	h := HorseEntry{}
	assert.Equal(t, Placeholder, h.LastFinish())

	h.PastRaces = []PastRace{{Rank: NumOf(3)}, {Rank: NumOf(1)}}
	assert.Equal(t, "3", h.LastFinish())
}

func TestUserConstraints(t *testing.T) {
	c := UserConstraints{Budget: 10000, MinReturn: 100, TargetReturn: 150, BetTypes: []string{"馬連"}}
	assert.NoError(t, c.Validate())

	bad := c
	bad.BetTypes = nil
	assert.Error(t, bad.Validate())

	bad = c
	bad.TargetReturn = 50
	assert.Error(t, bad.Validate())

	bad = c
	bad.Budget = 0
	assert.Error(t, bad.Validate())

	c.Flags = []int{7, 3, 7, 1}
	assert.Equal(t, []int{1, 3, 7}, c.SortedFlags())
	assert.Equal(t, []int{7, 3, 7, 1}, c.Flags, "SortedFlags must not reorder the caller's slice")
}

func TestUserConstraints_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want UserConstraints
	}{
		{"numbers", `{"budget":3000,"minReturn":110,"targetReturn":180,"betTypes":["馬連"],"flags":[5,3]}`,
			UserConstraints{Budget: 3000, MinReturn: 110, TargetReturn: 180, BetTypes: []string{"馬連"}, Flags: []int{5, 3}}},
		{"form strings", `{"budget":"1000","minReturn":"100","targetReturn":" 150 ","betTypes":["単勝","ワイド"],"flags":["7"]}`,
			UserConstraints{Budget: 1000, MinReturn: 100, TargetReturn: 150, BetTypes: []string{"単勝", "ワイド"}, Flags: []int{7}}},
		{"empty strings", `{"budget":"","minReturn":null,"betTypes":[]}`,
			UserConstraints{BetTypes: []string{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got UserConstraints
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{`{"budget":"千円"}`, `{"budget":"1000.5"}`, `{"budget":true}`} {
		var c UserConstraints
		assert.Error(t, json.Unmarshal([]byte(bad), &c), bad)
	}
}
