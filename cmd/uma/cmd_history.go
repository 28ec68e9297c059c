package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"umaai/internal/store"
)

var (
	historyAll   bool
	historyLimit int
	historyRaw   bool
)

// historyCmd shows cached results
var historyCmd = &cobra.Command{
	Use:   "history [race-id]",
	Short: "Show the cached analysis of a race",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		results, err := openStore()
		if err != nil {
			return err
		}
		defer results.Close()

		if !historyAll {
			res, err := results.Latest(ctx, args[0])
			if errors.Is(err, store.ErrNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s の分析結果はありません\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			return printResult(cmd, res, historyRaw)
		}

		list, err := results.History(ctx, args[0], historyLimit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s の分析結果はありません\n", args[0])
			return nil
		}
		t := newTable("日時", "ID", "プロバイダ", "モデル", "試行")
		for _, r := range list {
			provider := r.Provider
			if r.FellBack {
				provider += " (fallback)"
			}
			t.Row(r.CreatedAt.Local().Format("01/02 15:04"), r.ID[:min(8, len(r.ID))], provider, r.Model, fmt.Sprint(r.Attempts))
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.String())
		return nil
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "List every cached result instead of showing the latest")
	historyCmd.Flags().IntVar(&historyLimit, "limit", store.HistoryLimit, "Maximum results to list with --all")
	historyCmd.Flags().BoolVar(&historyRaw, "raw", false, "Print Markdown without terminal rendering")
}
