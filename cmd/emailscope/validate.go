package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/emailscope/pkg/config"
)

// NewValidateCmd creates the validate command
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file and data tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			if doValidate(configPath, cmd.OutOrStdout(), cmd.ErrOrStderr()) != exitOK {
				return errValidation
			}
			return nil
		},
	}
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	warnings, err := appCfg.Validate()
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitError
	}
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}

	tables, err := config.LoadTables(appCfg.TablesFile)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: tables: %v\n", err)
		return exitError
	}
	fmt.Fprintf(stdout, "OK: tables (%d disposable domains, %d generic local parts, %d user agents)\n",
		len(tables.DisposableDomains), len(tables.GenericLocalParts), len(tables.UserAgents))

	domains := make([]string, 0, len(appCfg.Domains))
	for d := range appCfg.Domains {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	for _, d := range domains {
		eff := config.GetEffectiveCrawl(d, *appCfg)
		fmt.Fprintf(stdout, "OK: [%s] max_pages=%d max_depth=%d bypass_exclusion=%t\n",
			d, eff.MaxPages, eff.MaxDepth, eff.BypassExclusion)
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return exitOK
}
