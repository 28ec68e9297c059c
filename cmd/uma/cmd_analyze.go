package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"umaai/internal/analysis"
	"umaai/internal/llm"
	"umaai/internal/types"
)

// constraintFlags are shared by prompt and analyze.
type constraintFlags struct {
	budget       int
	minReturn    int
	targetReturn int
	betTypes     []string
	flags        []int
}

func (f *constraintFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.budget, "budget", 0, "Budget in yen (default from config)")
	cmd.Flags().IntVar(&f.minReturn, "min-return", 0, "Minimum return rate in percent (default from config)")
	cmd.Flags().IntVar(&f.targetReturn, "target-return", 0, "Target return rate in percent (default from config)")
	cmd.Flags().StringSliceVar(&f.betTypes, "bet-type", nil, "Bet type to consider, repeatable (単勝, 馬連, ワイド, 3連複, ...)")
	cmd.Flags().IntSliceVar(&f.flags, "flag", nil, "Horse number flagged from paddock observation, repeatable")
}

// constraints fills unset flags from the configured defaults.
func (f *constraintFlags) constraints(cmd *cobra.Command) types.UserConstraints {
	c := types.UserConstraints{
		Budget:       cfg.Defaults.Budget,
		MinReturn:    cfg.Defaults.MinReturn,
		TargetReturn: cfg.Defaults.TargetReturn,
		BetTypes:     cfg.Defaults.BetTypes,
		Flags:        f.flags,
	}
	if cmd.Flags().Changed("budget") {
		c.Budget = f.budget
	}
	if cmd.Flags().Changed("min-return") {
		c.MinReturn = f.minReturn
	}
	if cmd.Flags().Changed("target-return") {
		c.TargetReturn = f.targetReturn
	}
	if len(f.betTypes) > 0 {
		c.BetTypes = f.betTypes
	}
	return c
}

var (
	analyzeConstraints constraintFlags
	analyzeProvider    string
	analyzeModel       string
	analyzeNoFallback  bool
	analyzeRaw         bool
)

// analyzeCmd runs the full pipeline for one race
var analyzeCmd = &cobra.Command{
	Use:   "analyze [race-id]",
	Short: "Analyze a race and print the recommended tickets",
	Long: `Loads the race and its odds, selects the odds for the requested bet types,
assembles the analysis document and sends it to the configured provider.

Transient failures are retried with exponential backoff. When the provider
stays overloaded and the other provider has a key configured, the same
document is sent there once.

Example:
  uma analyze 東京11R --budget 3000 --bet-type 馬連 --bet-type ワイド --flag 5`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeConstraints.register(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeProvider, "provider", "", "Provider: gemini or openai (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeModel, "model", "", "Model for the provider")
	analyzeCmd.Flags().BoolVar(&analyzeNoFallback, "no-fallback", false, "Never switch to the other provider")
	analyzeCmd.Flags().BoolVar(&analyzeRaw, "raw", false, "Print Markdown without terminal rendering")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()
	raceID := args[0]

	data, err := newLoader().Load(ctx, raceID)
	if err != nil {
		return describe(analysis.ClassifyLoadError(raceID, err))
	}
	if data.OddsMissing {
		fmt.Fprintln(cmd.ErrOrStderr(), styles.Warning.Render("オッズ未発表のため、オッズなしで分析します"))
	}

	results, err := openStore()
	if err != nil {
		return err
	}
	defer results.Close()

	fmt.Fprintln(cmd.ErrOrStderr(), styles.Muted.Render("分析中... "+raceID))
	res, err := newService(results).RunAnalysis(ctx, data.Race, data.Odds, analyzeConstraints.constraints(cmd), analysis.Choice{
		Provider:   analyzeProvider,
		Model:      analyzeModel,
		NoFallback: analyzeNoFallback,
	})
	if err != nil {
		return describe(err)
	}

	if res.FellBack {
		fmt.Fprintln(cmd.ErrOrStderr(), styles.Warning.Render(fmt.Sprintf("%s に切り替えて分析しました", res.Provider)))
	}
	return printResult(cmd, res, analyzeRaw)
}

// printResult renders an analysis as terminal Markdown.
func printResult(cmd *cobra.Command, res *types.AnalysisResult, raw bool) error {
	out := cmd.OutOrStdout()
	header := styles.Title.Render(fmt.Sprintf("%s  %s / %s", res.RaceID, res.Provider, res.Model))
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, styles.Muted.Render(res.CreatedAt.Local().Format("2006-01-02 15:04:05")))

	if raw {
		fmt.Fprintln(out, res.Text)
		return nil
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Fprintln(out, res.Text)
		return nil
	}
	rendered, err := renderer.Render(res.Text)
	if err != nil {
		fmt.Fprintln(out, res.Text)
		return nil
	}
	fmt.Fprint(out, rendered)
	return nil
}

// describe turns a classified failure into the message shown to the user.
func describe(err error) error {
	var le *llm.Error
	if errors.As(err, &le) {
		return fmt.Errorf("%s (%v)", le.UserMessage(), le)
	}
	return err
}
