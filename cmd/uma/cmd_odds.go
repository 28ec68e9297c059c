package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"umaai/internal/analysis"
	"umaai/internal/odds"
	"umaai/internal/types"
)

var (
	oddsTypes []string
	oddsSort  string
	oddsLimit int
)

// oddsCmd shows the published odds of a race
var oddsCmd = &cobra.Command{
	Use:   "odds [race-id]",
	Short: "Show the odds of a race",
	Long: `Shows the published odds as tables. Without --type every category is shown.

Sort modes:
  combination  published order (default)
  odds_asc     lowest odds first
  odds_desc    highest odds first

Example:
  uma odds 東京11R --type 馬連 --type ワイド --sort odds_asc --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: runOdds,
}

func init() {
	oddsCmd.Flags().StringSliceVar(&oddsTypes, "type", nil, "Bet type to show, repeatable")
	oddsCmd.Flags().StringVar(&oddsSort, "sort", "combination", "Sort mode: combination, odds_asc, odds_desc")
	oddsCmd.Flags().IntVar(&oddsLimit, "limit", 0, "Show at most this many rows per table (0 = all)")
}

func runOdds(cmd *cobra.Command, args []string) error {
	mode, err := odds.ParseSortMode(oddsSort)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	data, err := newLoader().Load(ctx, args[0])
	if err != nil {
		return describe(analysis.ClassifyLoadError(args[0], err))
	}
	if data.OddsMissing {
		fmt.Fprintln(cmd.OutOrStdout(), styles.Warning.Render("オッズ未発表"))
		return nil
	}

	bundle := data.Odds
	if len(oddsTypes) > 0 {
		bundle = odds.Filter(bundle, odds.Categories(oddsTypes))
	}
	writeOddsTables(cmd.OutOrStdout(), bundle, mode, oddsLimit)
	return nil
}

// writeOddsTables renders each category of bundle as a table.
func writeOddsTables(w io.Writer, bundle types.OddsBundle, mode odds.SortMode, limit int) {
	for _, e := range bundle {
		name := e.Name
		if name == "" {
			name = string(e.Type)
		}
		fmt.Fprintln(w, styles.Heading.Render(name))

		if e.Type == types.OddsTFW {
			if len(e.Data.Tansho) > 0 {
				fmt.Fprintln(w, styles.Muted.Render("単勝"))
				fmt.Fprintln(w, horseOddsTable(odds.SortHorseOdds(e.Data.Tansho, mode), limit))
			}
			if len(e.Data.Fukusho) > 0 {
				fmt.Fprintln(w, styles.Muted.Render("複勝"))
				fmt.Fprintln(w, horseOddsTable(odds.SortHorseOdds(e.Data.Fukusho, mode), limit))
			}
			continue
		}
		fmt.Fprintln(w, combinationTable(odds.SortCombinations(e.Data.Combinations, mode), limit))
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.Border).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}
			if col == len(headers)-1 {
				return styles.Number
			}
			return styles.Cell
		})
}

func horseOddsTable(rows []types.HorseOdds, limit int) string {
	t := newTable("馬番", "馬名", "オッズ")
	for i, r := range rows {
		if limit > 0 && i >= limit {
			break
		}
		t.Row(r.HorseNum.Literal(0), r.HorseName, oddsCell(r.Odds))
	}
	return t.String()
}

func combinationTable(rows []types.Combination, limit int) string {
	t := newTable("組み合わせ", "オッズ")
	for i, r := range rows {
		if limit > 0 && i >= limit {
			break
		}
		t.Row(r.Combination, oddsCell(r.Odds))
	}
	return t.String()
}

func oddsCell(o types.OddsValue) string {
	if !o.Present() {
		return types.Placeholder
	}
	return o.String()
}
