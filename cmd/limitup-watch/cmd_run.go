package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runDate string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Screen one trade date and email the summary",
	Long: `Collect the limit-up list for one trade date, match each stock's top
buying broker against the watchlist and send exactly one summary email.

Examples:
  limitup-watch run
  limitup-watch run --date 2024-05-02
  limitup-watch run --date yesterday --dry-run`,
	Args: cobra.NoArgs,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runDate, "date", "today", "Trade date: YYYY-MM-DD, today/今日 or yesterday/昨日")
}

func runOnce(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = a.pipeline.Run(ctx, runDate)
	return err
}
