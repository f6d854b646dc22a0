package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
	"github.com/krishna0605/vulnscanner-sub001/internal/database"
	"github.com/krishna0605/vulnscanner-sub001/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host]",
		Short: "List stored scans and show their results",
		Long: `History lists the scans stored in the scan database, newest first.

With a host argument only scans of that host are listed. --scan-id prints
the report of a stored scan in any report format, and --delete removes a
scan together with its pages, forms and technologies.

Examples:
  # List every scan
  vulncrawl history

  # List scans of one host
  vulncrawl history app.example.com

  # Show a stored scan as Markdown
  vulncrawl history --scan-id 12 -f markdown

  # Delete a scan
  vulncrawl history --delete 12`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("scan-id", "i", 0, "Show the report of this scan")
	cmd.Flags().Int64("delete", 0, "Delete this scan")
	cmd.Flags().StringP("format", "f", formatText, "Report format for --scan-id: text, json or markdown")
	cmd.Flags().String("db-dir", "", "Directory of the SQLite database (default: XDG data directory)")
	cmd.Flags().String("postgres", "", "PostgreSQL DSN to read scans from")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	scanID, err := flags.GetInt64("scan-id")
	if err != nil {
		return err
	}
	deleteID, err := flags.GetInt64("delete")
	if err != nil {
		return err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	if err := validateFormat(format); err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	dsn, err := flags.GetString("postgres")
	if err != nil {
		return err
	}
	verbose, _ := flags.GetBool("verbose")

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var db *database.CrawlDB
	if dsn != "" {
		db, err = database.OpenPostgres(ctx, dsn)
	} else {
		if dbDir == "" {
			dbDir = config.XDGDataDir()
		}
		db, err = database.Open(dbDir, database.Options{CreateIfNotExists: false})
	}
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(out, "No scans recorded yet.")
		fmt.Fprintln(out, "\nUse 'vulncrawl crawl <seed-url>' to crawl a site.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	switch {
	case deleteID != 0:
		if err := db.DeleteScan(ctx, deleteID); err != nil {
			return fmt.Errorf("failed to delete scan %d: %w", deleteID, err)
		}
		fmt.Fprintf(out, "Deleted scan %d\n", deleteID)
		return nil
	case scanID != 0:
		return showScan(ctx, out, db, scanID, format, verbose)
	default:
		host := ""
		if len(args) > 0 {
			host = args[0]
		}
		return listScans(ctx, out, db, host)
	}
}

func listScans(ctx context.Context, out io.Writer, db *database.CrawlDB, host string) error {
	scans, err := db.ListScans(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to list scans: %w", err)
	}

	if len(scans) == 0 {
		if host != "" {
			fmt.Fprintf(out, "No scans found for %s\n", host)
		} else {
			fmt.Fprintln(out, "No scans recorded yet.")
		}
		return nil
	}

	fmt.Fprintf(out, "  %-6s  %-19s  %-10s  %7s  %6s  %s\n", "ID", "Date", "Status", "Crawled", "Errors", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 76))
	for _, rec := range scans {
		fmt.Fprintf(out, "  %-6d  %-19s  %-10s  %7d  %6d  %s\n",
			rec.ID,
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Status,
			rec.Stats.URLsCrawled,
			rec.Stats.Errors,
			rec.SeedURL,
		)
	}
	fmt.Fprintln(out, "\nUse 'vulncrawl history --scan-id <id>' to show a scan.")
	return nil
}

// showScan rebuilds the summary of a stored scan by replaying its records
// through a report.Collector, so stored and live reports look the same.
func showScan(ctx context.Context, out io.Writer, db *database.CrawlDB, id int64, format string, verbose bool) error {
	rec, err := db.GetScan(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load scan %d: %w", id, err)
	}
	urls, err := db.ListDiscoveredURLs(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}
	forms, err := db.ListForms(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load forms: %w", err)
	}
	techs, err := db.ListTechnologies(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load technologies: %w", err)
	}

	c := report.NewCollector(nil)
	for i := range urls {
		urlID, err := c.SaveDiscoveredURL(ctx, &urls[i])
		if err != nil {
			return err
		}
		if fp, ok := techs[urls[i].URL]; ok {
			if err := c.SaveTechnology(ctx, urlID, &fp); err != nil {
				return err
			}
		}
	}
	if err := c.SaveForms(ctx, 0, forms); err != nil {
		return err
	}
	_ = c.UpdateScanStatus(ctx, rec.Status)
	_ = c.UpdateScanStats(ctx, rec.Stats)

	_, err = newReportWriter(out, format, verbose).Write(c.Summary(strconv.FormatInt(id, 10), rec.SeedURL))
	return err
}
