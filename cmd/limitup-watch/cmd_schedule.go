package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"LimitUpWatch/internal/scheduler"
)

var runOnStart bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the screener daily on the configured cron schedule",
	Long: `Stay in the foreground and run the screener for "today" on every tick of
schedule.cron (six fields, seconds first) in the configured timezone.
A failed run is logged and the daemon keeps running. SIGINT or SIGTERM
stops it after the current run returns.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "Also run once immediately (default from RUN_ON_START=true)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(ctx, a.pipeline, a.cfg.Location(), a.log)
	if err := sched.Register(a.cfg.Schedule.Cron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if shouldRunOnStart(cmd) {
		a.log.Info().Msg("run-on-start enabled, running now")
		go sched.RunNow()
	}

	a.log.Info().Str("timezone", a.cfg.Timezone).Msg("scheduler running, press Ctrl+C to stop")
	<-ctx.Done()
	a.log.Info().Msg("shutdown signal received, stopping")
	return nil
}

// shouldRunOnStart prefers an explicit flag over RUN_ON_START.
func shouldRunOnStart(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("run-on-start") {
		return runOnStart
	}
	return strings.EqualFold(strings.TrimSpace(os.Getenv("RUN_ON_START")), "true")
}
