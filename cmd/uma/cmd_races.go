package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"umaai/internal/loader"
	"umaai/internal/types"
)

var racesWithOdds bool

// racesCmd lists races fetched in parallel
var racesCmd = &cobra.Command{
	Use:   "races [race-id]...",
	Short: "List several races side by side",
	Long: `Fetches the given races in parallel and lists the ones that could be loaded,
in the order given. Races that are not published are reported and skipped.

Example:
  uma races 東京1R 東京2R 東京11R --odds`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		l := newLoader()
		var bundles []*loader.RaceData
		if racesWithOdds {
			loaded, err := l.LoadBundles(ctx, args)
			if err != nil {
				return err
			}
			bundles = loaded
		} else {
			races, err := l.LoadRaces(ctx, args)
			if err != nil {
				return err
			}
			for _, r := range races {
				bundles = append(bundles, &loader.RaceData{Race: r})
			}
		}

		out := cmd.OutOrStdout()
		if len(bundles) == 0 {
			fmt.Fprintln(out, styles.Warning.Render("読み込めるレースがありません"))
			return nil
		}

		headers := []string{"レース", "レース名", "距離", "馬場", "発走", "頭数"}
		if racesWithOdds {
			headers = append(headers, "オッズ")
		}
		t := newTable(headers...)
		loaded := make(map[string]bool, len(bundles))
		for _, b := range bundles {
			r := b.Race
			loaded[r.ID()] = true
			row := []string{r.ID(), r.RaceName, r.Distance.String(), orDash(r.TrackCondition), orDash(r.StartTime), fmt.Sprint(len(r.Horses))}
			if racesWithOdds {
				row = append(row, oddsStatus(b))
			}
			t.Row(row...)
		}
		fmt.Fprintln(out, t.String())

		for _, id := range args {
			if !loaded[id] {
				fmt.Fprintln(out, styles.Muted.Render(id+": データなし"))
			}
		}
		return nil
	},
}

func init() {
	racesCmd.Flags().BoolVar(&racesWithOdds, "odds", false, "Also fetch odds and show whether they are published")
}

func oddsStatus(b *loader.RaceData) string {
	if b.OddsMissing {
		return "未発表"
	}
	return fmt.Sprintf("%d種", len(b.Odds))
}

func orDash(s string) string {
	if s == "" {
		return types.Placeholder
	}
	return s
}
