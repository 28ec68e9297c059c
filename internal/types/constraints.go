package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// UserConstraints are captured once per analysis invocation.
// Return rates are percentages and apply to the whole ticket set.
type UserConstraints struct {
	Budget       int      `json:"budget"`
	MinReturn    int      `json:"minReturn"`
	TargetReturn int      `json:"targetReturn"`
	BetTypes     []string `json:"betTypes"`
	Flags        []int    `json:"flags,omitempty"`
}

// UnmarshalJSON accepts the numeric fields as JSON numbers or as numeric
// strings, which is how HTML form values arrive. An empty string is zero.
func (c *UserConstraints) UnmarshalJSON(data []byte) error {
	var raw struct {
		Budget       formInt   `json:"budget"`
		MinReturn    formInt   `json:"minReturn"`
		TargetReturn formInt   `json:"targetReturn"`
		BetTypes     []string  `json:"betTypes"`
		Flags        []formInt `json:"flags"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = UserConstraints{
		Budget:       int(raw.Budget),
		MinReturn:    int(raw.MinReturn),
		TargetReturn: int(raw.TargetReturn),
		BetTypes:     raw.BetTypes,
	}
	for _, f := range raw.Flags {
		c.Flags = append(c.Flags, int(f))
	}
	return nil
}

// formInt is a whole number sent as a number or a numeric string.
type formInt int

func (n *formInt) UnmarshalJSON(data []byte) error {
	var v Num
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	switch {
	case !v.Present():
		*n = 0
		return nil
	case !v.Valid:
		return fmt.Errorf("invalid number %q", v.Text)
	case v.Value != math.Trunc(v.Value) || math.Abs(v.Value) > math.MaxInt32:
		return fmt.Errorf("%s is not a whole number", v.Literal(-1))
	}
	*n = formInt(v.Value)
	return nil
}

// Validate rejects constraints the analysis cannot honour.
func (c UserConstraints) Validate() error {
	if c.Budget <= 0 {
		return fmt.Errorf("budget must be positive, got %d", c.Budget)
	}
	if c.MinReturn < 0 || c.TargetReturn < 0 {
		return errors.New("return rates must not be negative")
	}
	if c.TargetReturn < c.MinReturn {
		return fmt.Errorf("target return %d%% is below minimum return %d%%", c.TargetReturn, c.MinReturn)
	}
	if len(c.BetTypes) == 0 {
		return errors.New("at least one bet type is required")
	}
	for _, f := range c.Flags {
		if f <= 0 {
			return fmt.Errorf("invalid flagged horse number %d", f)
		}
	}
	return nil
}

// SortedFlags returns the flagged horse numbers ascending and deduplicated.
func (c UserConstraints) SortedFlags() []int {
	if len(c.Flags) == 0 {
		return nil
	}
	out := append([]int(nil), c.Flags...)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i > 0 && v == out[n-1] {
			continue
		}
		out[n] = v
		n++
	}
	return out[:n]
}

// =============================================================================
// ANALYSIS RESULT
// =============================================================================

// Section is a titled block extracted from the analysis text.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// AnalysisResult is produced once per invocation and may be cached by race.
type AnalysisResult struct {
	ID             string    `json:"id"`
	RaceID         string    `json:"race_id"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	Text           string    `json:"text"`
	Recommendation string    `json:"recommendation"`
	Sections       []Section `json:"sections,omitempty"`
	Attempts       int       `json:"attempts"`
	FellBack       bool      `json:"fell_back"`
	CreatedAt      time.Time `json:"created_at"`
}
