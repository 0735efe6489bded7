package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/emailscope/pkg/events"
	"github.com/Sriram-PR/emailscope/pkg/orchestrate"
	"github.com/Sriram-PR/emailscope/pkg/pipeline"
	"github.com/Sriram-PR/emailscope/pkg/report"
)

// NewDiscoverCmd creates the discover command
func NewDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover <domain>...",
		Short: "Crawl domains and verify the email addresses found",
		Long: `Discover crawls each domain from its home page, extracts published addresses,
adds common role addresses, and verifies every candidate.

Examples:
  emailscope discover example.com
  emailscope discover --max-pages 50 --export csv,xlsx example.com acme.io
  emailscope discover --mock-dns --state-dir ./state https://www.example.com

Press Ctrl+C once to stop after in-flight work (partial results are kept),
twice to abort.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDiscover,
	}
	addCrawlFlags(cmd)
	cmd.Flags().StringSlice("export", nil, "Export formats (json, csv, xlsx)")
	cmd.Flags().String("output-dir", "", "Directory for exported files")
	return cmd
}

func runDiscover(cmd *cobra.Command, args []string) error {
	log, cfg, err := prepare(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.OutputDir, _ = cmd.Flags().GetString("output-dir")
	}
	exportNames, _ := cmd.Flags().GetStringSlice("export")
	formats, err := report.ParseFormats(exportNames)
	if err != nil {
		return err
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

	results := a.orchestrator().Run(ctx, domains, stop, events.NewLogObserver(log.WithField("component", "events")))

	out := cmd.OutOrStdout()
	exporter := report.NewExporter(cfg.OutputDir, log.WithField("component", "report"))
	exportedAt := time.Now()
	failed := false
	for _, r := range results {
		if err := report.PrintTable(out, r.Report); err != nil {
			return err
		}
		fmt.Fprintln(out)
		if r.Err != nil {
			failed = true
		}
		paths, err := exporter.Export(r.Report, r.SessionID, formats, exportedAt)
		if err != nil {
			failed = true
		}
		for _, p := range paths {
			fmt.Fprintf(out, "Exported: %s\n", p)
		}
	}
	if len(results) > 1 {
		if err := report.PrintSummary(out, results); err != nil {
			return err
		}
	}

	if interrupts.Interrupted() {
		return errInterrupted
	}
	if failed {
		return errRunFailed
	}
	return nil
}
