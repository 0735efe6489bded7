package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/emailscope/pkg/events"
	"github.com/Sriram-PR/emailscope/pkg/orchestrate"
	"github.com/Sriram-PR/emailscope/pkg/pipeline"
	"github.com/Sriram-PR/emailscope/pkg/watch"
)

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <domain>...",
		Short: "Re-run discovery for domains on a schedule",
		Long: `Watch runs discovery for each domain whenever its interval has elapsed and
reports valid addresses not seen in earlier runs. Schedule state is kept in
watch_state.json under the state directory (or the output directory when no
state directory is configured).

Examples:
  emailscope watch --interval 24h example.com
  emailscope watch --interval 7d --state-dir ./state example.com acme.io`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatch,
	}
	addCrawlFlags(cmd)
	cmd.Flags().String("interval", "24h", "Discovery interval (e.g., 30m, 1h, 24h, 7d)")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	log, cfg, err := prepare(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	intervalStr, _ := cmd.Flags().GetString("interval")
	interval, err := watch.ParseInterval(intervalStr)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}
	domains, err := orchestrate.NormalizeDomains(args)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stop := pipeline.NewStopToken()
	interrupts := handleInterrupts(stop, cancel, log)
	defer interrupts.Release()

	if a.store != nil {
		go a.store.RunGC(ctx, 10*time.Minute)
	}

	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir = cfg.OutputDir
	}
	scheduler := watch.NewScheduler(a.orchestrator(), domains, interval, stateDir,
		events.NewLogObserver(log.WithField("component", "events")), log.WithField("component", "watch"))

	if err := scheduler.Run(ctx, stop); err != nil {
		return fmt.Errorf("watch scheduler: %w", err)
	}
	log.Info("Watch mode stopped")

	if interrupts.Interrupted() {
		return errInterrupted
	}
	return nil
}
