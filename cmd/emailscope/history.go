package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/parse"
	"github.com/Sriram-PR/emailscope/pkg/report"
	"github.com/Sriram-PR/emailscope/pkg/storage"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <domain>",
		Short: "Show stored results and past sessions of a domain",
		Long: `History lists the addresses stored for a domain across all discovery runs,
with how often each was seen, followed by the recorded sessions.
Requires a state directory (state_dir in the config or --state-dir).`,
		Args: cobra.ExactArgs(1),
		RunE: runHistory,
	}
	cmd.Flags().String("state-dir", "", "Directory of the result store")
	cmd.Flags().Bool("valid-only", false, "Only list addresses whose latest verdict is valid")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	log, cfg, err := prepare(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("state-dir") {
		cfg.StateDir, _ = cmd.Flags().GetString("state-dir")
	}
	if !cfg.PersistenceEnabled() {
		return fmt.Errorf("%w: history needs a state directory (state_dir or --state-dir)", utils.ErrConfigValidation)
	}
	if _, err := parse.SeedURL(args[0]); err != nil {
		return fmt.Errorf("%w: invalid domain %q: %w", utils.ErrConfigValidation, args[0], err)
	}
	domain := parse.BareDomain(args[0])

	store, err := storage.NewBadgerStore(cfg.StateDir, log.WithField("component", "store"))
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.ListResults(domain)
	if err != nil {
		return err
	}
	if validOnly, _ := cmd.Flags().GetBool("valid-only"); validOnly {
		entries = filterValid(entries)
	}
	sessions, err := store.ListSessions(domain)
	if err != nil {
		return err
	}
	return report.PrintHistory(cmd.OutOrStdout(), domain, entries, sessions)
}

func filterValid(entries []models.ResultDBEntry) []models.ResultDBEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.IsValid {
			out = append(out, e)
		}
	}
	return out
}
