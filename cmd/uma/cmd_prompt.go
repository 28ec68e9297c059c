package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"umaai/internal/analysis"
	"umaai/internal/prompt"
)

var promptConstraints constraintFlags

// promptCmd prints the analysis document without contacting a provider
var promptCmd = &cobra.Command{
	Use:   "prompt [race-id]",
	Short: "Print the analysis document for a race",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		data, err := newLoader().Load(ctx, args[0])
		if err != nil {
			return describe(analysis.ClassifyLoadError(args[0], err))
		}

		svc := analysis.NewService(nil, nil, analysis.ServiceConfig{})
		doc, err := svc.Document(data.Race, data.Odds, promptConstraints.constraints(cmd))
		if err != nil {
			return describe(err)
		}
		fmt.Fprint(cmd.OutOrStdout(), doc)
		fmt.Fprintln(cmd.ErrOrStderr(), styles.Muted.Render(fmt.Sprintf("~%d tokens", prompt.EstimateTokens(doc))))
		return nil
	},
}

func init() {
	promptConstraints.register(promptCmd)
}
