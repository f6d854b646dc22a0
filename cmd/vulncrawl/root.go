package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	vclog "github.com/krishna0605/vulnscanner-sub001/internal/log"
)

// NewRootCmd creates the root command for vulncrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vulncrawl",
		Short: "Web application crawler for vulnerability discovery",
		Long: `vulncrawl maps a web application before it is tested for vulnerabilities.

It crawls from a seed URL within a configurable scope, honours robots.txt
and rate limits, logs in when credentials are configured, and records every
page, form, CSRF token and detected technology in a local database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the redacting logger selected by the persistent flags.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	asJSON, _ := cmd.Flags().GetBool("log-json")

	if asJSON {
		return vclog.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return vclog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}
