package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
	"github.com/krishna0605/vulnscanner-sub001/internal/database"
	"github.com/krishna0605/vulnscanner-sub001/internal/metrics"
	"github.com/krishna0605/vulnscanner-sub001/internal/model"
	"github.com/krishna0605/vulnscanner-sub001/internal/report"
	"github.com/krishna0605/vulnscanner-sub001/internal/scan"
)

// Report formats accepted by --format.
const (
	formatText     = "text"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

// Environment variables holding secrets that should not appear on the
// command line.
const (
	envPassword = "VULNCRAWL_PASSWORD"
	envToken    = "VULNCRAWL_TOKEN"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>...",
		Short: "Crawl a web application from one or more seed URLs",
		Long: `Crawl maps a web application starting at each seed URL.

Every fetched page, the forms on it and the detected technologies are
stored in the scan database (SQLite in the XDG data directory, or
PostgreSQL with --postgres). A summary is printed when the crawl ends.

Settings are read from .vulncrawl.yaml when present. Flags override the
file. Credentials for --auth-mode are read from the VULNCRAWL_PASSWORD
and VULNCRAWL_TOKEN environment variables.

Press Ctrl+C once to stop gracefully and keep partial results, twice to
abort in-flight requests.

Examples:
  # Crawl a site with default limits
  vulncrawl crawl https://app.example.com/

  # Deeper crawl, slower rate, Markdown report to a file
  vulncrawl crawl -d 5 -r 2 -f markdown -o report.md https://app.example.com/

  # Crawl behind a login form
  VULNCRAWL_PASSWORD=secret vulncrawl crawl --auth-mode form \
    --login-url /login --username scanner https://app.example.com/

  # Crawl several applications, two at a time
  vulncrawl crawl -b 2 https://a.example.com/ https://b.example.com/ https://c.example.com/

  # Expose Prometheus metrics while crawling
  vulncrawl crawl --metrics-addr :9090 https://app.example.com/`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl limits
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth, "Maximum link depth from the seed")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages, "Maximum number of pages fetched per seed")
	cmd.Flags().Float64P("rate", "r", config.DefaultRequestsPerSecond, "Maximum requests per second")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().IntP("concurrency", "n", config.DefaultMaxConcurrentRequests, "Concurrent requests")
	cmd.Flags().String("user-agent", config.DefaultUserAgent, "User-Agent header")
	cmd.Flags().Bool("ignore-robots", false, "Do not honour robots.txt")
	cmd.Flags().Bool("no-redirects", false, "Do not follow redirects")

	// Scope
	cmd.Flags().StringSlice("scope", nil, "Only crawl URLs matching these patterns")
	cmd.Flags().StringSlice("exclude", nil, "Never crawl URLs matching these patterns")
	cmd.Flags().StringArrayP("header", "H", nil, `Extra request header ("Name: value"), repeatable`)

	// Authentication
	cmd.Flags().String("auth-mode", "", "Authentication mode: none, form, basic or bearer")
	cmd.Flags().String("login-url", "", "Login page for form authentication")
	cmd.Flags().String("username", "", "Username for form or basic authentication")

	// Configuration and storage
	cmd.Flags().StringP("config", "c", "", "Configuration file path (default: .vulncrawl.yaml or XDG config)")
	cmd.Flags().IntP("batch", "b", scan.DefaultBatchConcurrency, "Seeds crawled concurrently")
	cmd.Flags().String("db-dir", "", "Directory of the SQLite database (default: XDG data directory)")
	cmd.Flags().String("postgres", "", "PostgreSQL DSN; stores scans in PostgreSQL instead of SQLite")
	cmd.Flags().Bool("no-save", false, "Do not store results")

	// Output
	cmd.Flags().StringP("format", "f", formatText, "Report format: text, json or markdown")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file; the terminal still gets a text summary")
	cmd.Flags().Bool("progress", false, "Print progress while crawling")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

// crawlOptions holds the non-crawl settings of the crawl command.
type crawlOptions struct {
	seeds       []string
	batch       int
	format      string
	output      string
	dbDir       string
	postgresDSN string
	noSave      bool
	progress    bool
	metricsAddr string
	verbose     bool
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseCrawlOptions(cmd, args)
	if err != nil {
		return err
	}

	cfgFor, err := buildConfigFunc(cmd)
	if err != nil {
		return err
	}

	// Configuration errors are fatal before anything is stored.
	for _, seed := range opts.seeds {
		if err := cfgFor(seed).Validate(); err != nil {
			return fmt.Errorf("configuration error for %s: %w", seed, err)
		}
	}

	logger := newLogger(cmd)
	return runCrawl(cmd.Context(), cmd, opts, cfgFor, logger)
}

func parseCrawlOptions(cmd *cobra.Command, args []string) (*crawlOptions, error) {
	flags := cmd.Flags()
	opts := &crawlOptions{seeds: args}

	var err error
	if opts.batch, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if opts.format, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if err := validateFormat(opts.format); err != nil {
		return nil, err
	}
	if opts.output, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}
	if opts.postgresDSN, err = flags.GetString("postgres"); err != nil {
		return nil, err
	}
	if opts.noSave, err = flags.GetBool("no-save"); err != nil {
		return nil, err
	}
	if opts.progress, err = flags.GetBool("progress"); err != nil {
		return nil, err
	}
	if opts.metricsAddr, err = flags.GetString("metrics-addr"); err != nil {
		return nil, err
	}
	opts.verbose, _ = flags.GetBool("verbose")
	return opts, nil
}

// buildConfigFunc loads the configuration file and returns a function that
// resolves the configuration of a seed: file defaults, then the seed's site
// overrides, then the flags that were set explicitly.
func buildConfigFunc(cmd *cobra.Command) (scan.ConfigFunc, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	file := &config.File{Crawl: config.NewScanConfiguration()}
	if found := config.FindConfigFile(configPath); found != "" {
		if file, err = config.LoadFile(found); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
	} else if configPath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
	}

	apply, err := flagOverrides(cmd)
	if err != nil {
		return nil, err
	}

	return func(seed string) config.ScanConfiguration {
		cfg := file.ForSeed(seed)
		apply(&cfg)
		return cfg
	}, nil
}

// flagOverrides reads every explicitly set crawl flag once and returns a
// function applying them to a configuration.
func flagOverrides(cmd *cobra.Command) (func(*config.ScanConfiguration), error) {
	flags := cmd.Flags()
	var overrides []func(*config.ScanConfiguration)
	set := func(fn func(*config.ScanConfiguration)) {
		overrides = append(overrides, fn)
	}

	if flags.Changed("depth") {
		v, err := flags.GetInt("depth")
		if err != nil {
			return nil, err
		}
		set(func(c *config.ScanConfiguration) { c.MaxDepth = v })
	}
	if flags.Changed("max-pages") {
		v, err := flags.GetInt("max-pages")
		if err != nil {
			return nil, err
		}
		set(func(c *config.ScanConfiguration) { c.MaxPages = v })
	}
	if flags.Changed("rate") {
		v, err := flags.GetFloat64("rate")
		if err != nil {
			return nil, err
		}
		set(func(c *config.ScanConfiguration) { c.RequestsPerSecond = v })
	}
	if flags.Changed("timeout") {
		v, err := flags.GetDuration("timeout")
		if err != nil {
			return nil, err
		}
		set(func(c *config.ScanConfiguration) { c.Timeout = config.Duration{Duration: v} })
	}
	if flags.Changed("concurrency") {
		v, err := flags.GetInt("concurrency")
		if err != nil {
			return nil, err
		}
		set(func(c *config.ScanConfiguration) { c.MaxConcurrentRequests = v })
	}
	if flags.Changed("user-agent") {
		v, err := flags.GetString("user-agent")
		if err != nil {
			return nil, err
		}
		set(func(c *config.ScanConfiguration) { c.UserAgent = v })
	}
	if flags.Changed("ignore-robots") {
		v, err := flags.GetBool("ignore-robots")
		if err != nil {
			return nil, err
		}
		set(func(c *config.ScanConfiguration) { c.RespectRobots = !v })
	}
	if flags.Changed("no-redirects") {
		v, err := flags.GetBool("no-redirects")
		if err != nil {
			return nil, err
		}
		set(func(c *config.ScanConfiguration) { c.FollowRedirects = !v })
	}
	if flags.Changed("scope") {
		v, err := flags.GetStringSlice("scope")
		if err != nil {
			return nil, err
		}
		set(func(c *config.ScanConfiguration) { c.ScopePatterns = append([]string(nil), v...) })
	}
	if flags.Changed("exclude") {
		v, err := flags.GetStringSlice("exclude")
		if err != nil {
			return nil, err
		}
		set(func(c *config.ScanConfiguration) { c.ExcludePatterns = append([]string(nil), v...) })
	}
	if flags.Changed("header") {
		raw, err := flags.GetStringArray("header")
		if err != nil {
			return nil, err
		}
		headers, err := parseHeaders(raw)
		if err != nil {
			return nil, err
		}
		set(func(c *config.ScanConfiguration) {
			if c.Headers == nil {
				c.Headers = make(map[string]string, len(headers))
			}
			for k, v := range headers {
				c.Headers[k] = v
			}
		})
	}

	authFn, err := authOverride(cmd)
	if err != nil {
		return nil, err
	}
	if authFn != nil {
		set(authFn)
	}

	return func(c *config.ScanConfiguration) {
		for _, fn := range overrides {
			fn(c)
		}
	}, nil
}

// authOverride builds the authentication block from --auth-mode and the
// credential environment variables. It returns nil when --auth-mode is unset.
func authOverride(cmd *cobra.Command) (func(*config.ScanConfiguration), error) {
	flags := cmd.Flags()
	if !flags.Changed("auth-mode") {
		return nil, nil
	}

	mode, err := flags.GetString("auth-mode")
	if err != nil {
		return nil, err
	}
	loginURL, err := flags.GetString("login-url")
	if err != nil {
		return nil, err
	}
	username, err := flags.GetString("username")
	if err != nil {
		return nil, err
	}

	auth := config.AuthConfig{
		Mode:     config.AuthMode(strings.ToLower(mode)),
		LoginURL: loginURL,
		Username: username,
		Password: os.Getenv(envPassword),
		Token:    os.Getenv(envToken),
	}
	return func(c *config.ScanConfiguration) { c.Authentication = auth }, nil
}

// parseHeaders parses "Name: value" pairs.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (want \"Name: value\")", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// openStore opens the scan database selected by opts. It returns nil when
// results are not saved.
func openStore(ctx context.Context, opts *crawlOptions) (*database.CrawlDB, error) {
	switch {
	case opts.noSave:
		return nil, nil
	case opts.postgresDSN != "":
		return database.OpenPostgres(ctx, opts.postgresDSN)
	default:
		return database.Open(opts.dbDir, database.DefaultOptions())
	}
}

func runCrawl(ctx context.Context, cmd *cobra.Command, opts *crawlOptions, cfgFor scan.ConfigFunc, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	db, err := openStore(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if db != nil {
		defer db.Close()
	}

	var collector *metrics.Collector
	if opts.metricsAddr != "" {
		collector = metrics.New(true)
		go func() {
			if err := collector.Serve(ctx, opts.metricsAddr); err != nil {
				logger.Error("metrics server stopped", "addr", opts.metricsAddr, "error", err)
			}
		}()
	}

	factory := func(ctx context.Context, seed string) (*scan.Task, error) {
		taskOpts := []scan.Option{scan.WithLogger(logger), scan.WithMetrics(collector)}
		if opts.progress {
			taskOpts = append(taskOpts, scan.WithProgress(progressPrinter(cmd.ErrOrStderr(), seed)))
		}
		if db == nil {
			return scan.NewTask(nil, taskOpts...), nil
		}

		id, err := db.CreateScan(ctx, seed, cfgFor(seed))
		if err != nil {
			return nil, fmt.Errorf("create scan record: %w", err)
		}
		taskOpts = append(taskOpts, scan.WithScanID(strconv.FormatInt(id, 10)))
		return scan.NewTask(db.ForScan(id), taskOpts...), nil
	}

	runner := scan.NewBatchRunner(factory,
		scan.WithConcurrency(opts.batch),
		scan.WithBatchLogger(logger),
	)

	stopSignals := handleSignals(cmd.ErrOrStderr(), runner, cancel)
	defer stopSignals()

	out := cmd.OutOrStdout()
	if len(opts.seeds) > 1 {
		fmt.Fprintf(out, "Crawling %d seeds (concurrency: %d)...\n\n", len(opts.seeds), opts.batch)
	} else {
		fmt.Fprintf(out, "Crawling %s...\n\n", opts.seeds[0])
	}

	startTime := time.Now()
	results := runner.Run(ctx, opts.seeds, cfgFor)

	var failed, written int
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "Crawl error for %s: %v\n", res.Seed, res.Err)
			continue
		}
		if err := writeReport(out, opts, res.Summary, written == 0); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		written++
	}

	if len(results) > 1 {
		fmt.Fprintf(out, "\nCrawled %d seeds in %s\n", len(results), time.Since(startTime).Round(time.Millisecond))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d crawls failed", failed, len(results))
	}
	return nil
}

// handleSignals stops the crawl gracefully on the first interrupt and
// cancels in-flight requests on the second. The returned function
// unregisters the handler.
func handleSignals(stderr io.Writer, runner *scan.BatchRunner, cancel context.CancelFunc) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigCh:
		case <-done:
			return
		}
		fmt.Fprintln(stderr, "\nStopping; waiting for in-flight requests (press Ctrl+C again to abort)...")
		go runner.Stop()

		select {
		case <-sigCh:
			cancel()
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
		})
	}
}

// progressPrinter returns a progress callback that writes one line per
// snapshot.
func progressPrinter(w io.Writer, seed string) func(model.CrawlStats) {
	var mu sync.Mutex
	return func(s model.CrawlStats) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "[%s] crawled=%d discovered=%d forms=%d errors=%d elapsed=%s\n",
			seed, s.URLsCrawled, s.URLsDiscovered, s.FormsFound, s.Errors,
			s.Duration().Round(time.Second))
	}
}

// writeReport prints the text summary to out and, with --output, writes
// the selected format to the file. Without --output the selected format
// goes to out. first marks the first report of the run.
func writeReport(out io.Writer, opts *crawlOptions, summary *model.CrawlSummary, first bool) error {
	if opts.output == "" {
		_, err := newReportWriter(out, opts.format, opts.verbose).Write(summary)
		return err
	}

	f, err := createReportFile(opts.output, first)
	if err != nil {
		return err
	}
	defer f.Close()

	w := report.NewMultiWriter(
		report.NewTextWriter(out, report.WithVerbose(opts.verbose)),
		newReportWriter(f, opts.format, opts.verbose),
	)
	if _, err := w.Write(summary); err != nil {
		return err
	}
	fmt.Fprintf(out, "Report written to %s\n", opts.output)
	return nil
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatMarkdown:
		return nil
	default:
		return fmt.Errorf("unknown report format %q (want text, json or markdown)", format)
	}
}

func newReportWriter(w io.Writer, format string, verbose bool) report.Writer {
	switch format {
	case formatJSON:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case formatMarkdown:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewTextWriter(w, report.WithVerbose(verbose))
	}
}

// createReportFile opens path for appending, truncating it first when
// truncate is set. Reports may contain session data, so the file is
// private to the owner.
func createReportFile(path string, truncate bool) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	flag := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flag |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flag, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
