package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	settingsPath string
	brokersPath  string
	dryRun       bool
)

var rootCmd = &cobra.Command{
	Use:   "limitup-watch",
	Short: "Daily Taiwan limit-up screener with broker matching",
	Long: `limitup-watch collects the day's limit-up stocks from TWSE and TPEX,
looks up each stock's top buying broker branch, matches it against a
watchlist and emails a summary.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

// .env is loaded during package variable initialization, which Go runs
// before every init function that reads the environment for flag defaults.
var _ = godotenv.Load(".env")

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", envOr("LIMITUP_SETTINGS", "config/settings.yaml"), "Path to settings.yaml")
	rootCmd.PersistentFlags().StringVar(&brokersPath, "brokers", envOr("LIMITUP_BROKERS", "config/brokers.yaml"), "Path to the broker watchlist")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log the email instead of sending it and skip snapshots")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
