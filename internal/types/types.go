// Package types provides the shared race, odds and analysis data structures used
// across umaai packages.
// Types in this package are plain data with JSON mappings that follow the
// published racedata/ and odds/ files; they carry no I/O.
package types

import (
	"fmt"
)

// Placeholder is rendered wherever an optional value is missing.
const Placeholder = "-"

// =============================================================================
// RACE DATA
// =============================================================================

// RaceRecord is one race as published under racedata/<race_number>.json.
// Horses are pre-sorted upstream by final score.
type RaceRecord struct {
	RaceNumber     string       `json:"race_number"`
	RaceName       string       `json:"race_name"`
	Place          string       `json:"place"`
	Surface        string       `json:"surface,omitempty"`
	Distance       Num          `json:"distance"`
	TrackCondition string       `json:"track_condition"`
	StartTime      string       `json:"start_time,omitempty"`
	Horses         []HorseEntry `json:"horses"`
}

// ID returns the race identifier used for data paths and cache keys.
func (r *RaceRecord) ID() string {
	return r.RaceNumber
}

// Validate checks that horse numbers are unique within the race.
func (r *RaceRecord) Validate() error {
	seen := make(map[string]int, len(r.Horses))
	for i, h := range r.Horses {
		key := h.HorseNumber.String()
		if key == Placeholder {
			continue
		}
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("race %s: horse number %s appears at positions %d and %d", r.RaceNumber, key, prev+1, i+1)
		}
		seen[key] = i
	}
	return nil
}

// HorseEntry is one runner with its precomputed indices and model outputs.
type HorseEntry struct {
	HorseNumber  Num          `json:"horse_number"`
	HorseName    string       `json:"horse_name"`
	Indices      Indices      `json:"indices"`
	BattleMining Num          `json:"battle_mining"`
	ZIIndex      Num          `json:"zi_index"`
	Predictions  *Predictions `json:"predictions,omitempty"`
	Jockey       Jockey       `json:"jockey"`
	Trainer      Trainer      `json:"trainer"`
	Interval     Num          `json:"interval"`
	PastRaces    []PastRace   `json:"past_races,omitempty"`
}

// Indices holds the numeric handicapping indices. Similarity and stability
// coefficients are centered at 1.0 and move in very small increments.
type Indices struct {
	FinalScore             Num `json:"final_score"`
	MiningIndex            Num `json:"mining_index"`
	CorrectedTimeDeviation Num `json:"corrected_time_deviation"`
	SimilarityCoefficient  Num `json:"similarity_coefficient"`
	StabilityCoefficient   Num `json:"stability_coefficient"`
}

// Predictions are model outputs, not probabilities. Ranks are authoritative;
// raw rates are not comparable across horses.
type Predictions struct {
	WinRate       Num `json:"win_rate"`
	WinRateRank   Num `json:"win_rate_rank"`
	PlaceRate     Num `json:"place_rate"`
	PlaceRateRank Num `json:"place_rate_rank"`
	ShowRate      Num `json:"show_rate"`
	ShowRateRank  Num `json:"show_rate_rank"`
}

// Season holds this-year statistics.
type Season struct {
	WinRate Num `json:"win_rate"`
}

// Jockey is the rider for this race.
type Jockey struct {
	Name     string `json:"name"`
	Weight   Num    `json:"weight"`
	ThisYear Season `json:"this_year"`
}

// Trainer is the stable trainer.
type Trainer struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ThisYear    Season `json:"this_year"`
}

// PastRace is one previous start, most recent first.
type PastRace struct {
	Date           string `json:"date"`
	Place          string `json:"place"`
	Surface        string `json:"surface,omitempty"`
	Distance       Num    `json:"distance"`
	TrackCondition string `json:"track_condition"`
	Rank           Num    `json:"rank"`
}

// LastFinish returns the finish rank of the most recent past race, or the
// placeholder when the horse has no recorded starts.
func (h *HorseEntry) LastFinish() string {
	if len(h.PastRaces) == 0 {
		return Placeholder
	}
	return h.PastRaces[0].Rank.Literal(0)
}

// Prediction returns the predictions block, never nil.
func (h *HorseEntry) Prediction() Predictions {
	if h.Predictions == nil {
		return Predictions{}
	}
	return *h.Predictions
}
