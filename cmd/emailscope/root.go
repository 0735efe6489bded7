package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.4.0"

// Exit codes
const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

var (
	errInterrupted = errors.New("interrupted")
	errRunFailed   = errors.New("one or more domains failed")
	errValidation  = errors.New("configuration invalid")
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emailscope",
		Short: "Discover and verify contact email addresses of a company website",
		Long: `emailscope crawls a company website within its registrable domain, collects
the email addresses it publishes (page text and mailto links), adds common
role addresses for the domain, and verifies every candidate.

Each address is reported with a 0-100 confidence score, a validity verdict
and a reason.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to YAML config file (built-in defaults when empty)")
	cmd.PersistentFlags().String("loglevel", "info", "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(NewDiscoverCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewMcpServerCmd())

	return cmd
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	return executeWith(NewRootCmd(), os.Args[1:], os.Stderr)
}

func executeWith(cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)
	err := cmd.Execute()
	code := exitCode(err)
	if code == exitError {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errInterrupted):
		return exitInterrupted
	default:
		return exitError
	}
}
