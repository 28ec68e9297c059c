package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"umaai/internal/logging"
	"umaai/internal/share"
	"umaai/internal/store"
	"umaai/internal/types"
)

var shareDryRun bool

// shareCmd posts the summary of the cached analysis to Telegram
var shareCmd = &cobra.Command{
	Use:   "share [race-id]",
	Short: "Send the cached analysis summary to Telegram",
	Long: `Builds the share text from the latest cached analysis (race header, summary,
targets, marks, per-horse notes and data analysis) and posts it to the chat
configured under share.telegram. Recommended tickets are not shared.

With --dry-run the text is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()
		raceID := args[0]

		results, err := openStore()
		if err != nil {
			return err
		}
		defer results.Close()

		res, err := results.Latest(ctx, raceID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%s の分析結果がありません。先に uma analyze を実行してください", raceID)
		}
		if err != nil {
			return err
		}

		race, err := newLoader().Race(ctx, raceID)
		if err != nil {
			logging.Get(logging.CategoryShare).Warn("race header unavailable for %s: %v", raceID, err)
			race = &types.RaceRecord{RaceNumber: raceID}
		}
		text := share.Text(race, res.Text)

		if shareDryRun {
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		}
		if !cfg.IsTelegramEnabled() {
			return fmt.Errorf("telegram is not configured (set TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID)")
		}
		sender, err := share.NewTelegramSender(cfg.Share.Telegram.Token, cfg.Share.Telegram.ChatID)
		if err != nil {
			return err
		}
		if err := sender.Send(ctx, text); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), styles.Title.Render("共有しました"))
		return nil
	},
}

func init() {
	shareCmd.Flags().BoolVar(&shareDryRun, "dry-run", false, "Print the share text instead of sending it")
}
