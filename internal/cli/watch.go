package cli

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/plugincheck/pkg/report"
	"github.com/harun/plugincheck/pkg/watch"
)

var (
	watchDebounce time.Duration
	watchSchedule string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-validate the registry whenever a manifest changes",
	Long: `Run the invariant check once, then again every time a manifest or contract
file below the registry root changes. With --schedule the check also re-runs
on a cron schedule, catching remote contract definitions that disappear.
Every run starts from scratch. Stops on interrupt.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 200*time.Millisecond, "quiet period before a re-run")
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", `cron expression for periodic re-runs, e.g. "@every 15m"`)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("schedule") {
		if _, err := watch.ParseSchedule(watchSchedule); err != nil {
			return err
		}
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer a.close(ctx)

	if cmd.Flags().Changed("debounce") {
		a.cfg.Watch.Debounce = watchDebounce
	}
	if cmd.Flags().Changed("schedule") {
		a.cfg.Watch.Schedule = watchSchedule
	}

	var runMu sync.Mutex
	check := func() {
		runMu.Lock()
		defer runMu.Unlock()
		if err := a.run(ctx); err != nil && !errors.Is(err, report.ErrValidationFailed) {
			a.log.Error().Err(err).Msg("Validation run failed")
		}
	}

	watcher, err := watch.NewRegistryWatcher(watch.Config{
		Root:               a.cfg.RootDir,
		StabilityThreshold: a.cfg.Watch.Debounce,
		OnChange: func(path string) {
			fmt.Fprintf(a.out, "Change detected in %s\n", path)
			check()
		},
	}, a.log.Logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	if a.cfg.Watch.Schedule != "" {
		scheduler, err := watch.NewScheduler(watch.ScheduleConfig{
			Expr: a.cfg.Watch.Schedule,
			TZ:   a.cfg.Watch.Timezone,
			Job:  check,
		}, a.log.Logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()

		a.log.Info().
			Time("next_run", scheduler.Next()).
			Msg("Scheduled re-validation enabled")
	}

	check()
	<-ctx.Done()
	return nil
}
