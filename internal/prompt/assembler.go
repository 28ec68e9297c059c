// Package prompt renders race data into the analysis document sent to the
// LLM providers.
//
// Everything here is a pure function of its inputs: the same race, odds and
// constraints always produce byte-identical text.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"umaai/internal/logging"
	"umaai/internal/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var analysisTemplate = template.Must(
	template.New("analysis.tmpl").Option("missingkey=error").ParseFS(templateFS, "templates/analysis.tmpl"),
)

// documentData is the template input. Tables are rendered before templating
// so the template only places them.
type documentData struct {
	Race         *types.RaceRecord
	Distance     string
	HorseCount   int
	HorseTable   string
	DetailCount  int
	HorseDetails string
	OddsTables   string
	Budget       int
	MinReturn    int
	TargetReturn int
	BetTypes     string
	Flags        []int
}

// Assemble builds the analysis document from a race, its already filtered
// odds and the user's constraints. A race without horses is valid and yields
// an empty horse table.
func Assemble(race *types.RaceRecord, filtered types.OddsBundle, c types.UserConstraints) (string, error) {
	if race == nil {
		return "", fmt.Errorf("assemble: race is nil")
	}
	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("assemble: %w", err)
	}

	detail := len(race.Horses)
	if detail > DetailHorses {
		detail = DetailHorses
	}

	data := documentData{
		Race:         race,
		Distance:     distance(race.Distance),
		HorseCount:   len(race.Horses),
		HorseTable:   FormatHorseTable(race.Horses),
		DetailCount:  detail,
		HorseDetails: FormatHorseDetails(race.Horses),
		OddsTables:   FormatOdds(filtered),
		Budget:       c.Budget,
		MinReturn:    c.MinReturn,
		TargetReturn: c.TargetReturn,
		BetTypes:     strings.Join(c.BetTypes, "、"),
		Flags:        c.SortedFlags(),
	}

	var sb strings.Builder
	if err := analysisTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("assemble: render template: %w", err)
	}

	doc := sb.String()
	logging.Get(logging.CategoryPrompt).Debug("assembled document for %s: %d bytes, ~%d tokens, %d odds categories",
		race.RaceNumber, len(doc), EstimateTokens(doc), len(filtered))
	return doc, nil
}

func distance(n types.Num) string {
	if !n.Present() {
		return types.Placeholder
	}
	s := n.Literal(0)
	if n.Valid {
		s += "m"
	}
	return s
}
