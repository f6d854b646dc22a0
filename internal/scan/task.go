package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/krishna0605/vulnscanner-sub001/internal/auth"
	"github.com/krishna0605/vulnscanner-sub001/internal/config"
	"github.com/krishna0605/vulnscanner-sub001/internal/crawler"
	"github.com/krishna0605/vulnscanner-sub001/internal/fetcher"
	"github.com/krishna0605/vulnscanner-sub001/internal/metrics"
	"github.com/krishna0605/vulnscanner-sub001/internal/model"
	"github.com/krishna0605/vulnscanner-sub001/internal/report"
)

// Task runs a single crawl against a sink scoped to one scan record.
// A Task is used once.
type Task struct {
	sink     model.Sink
	scanID   string
	metrics  *metrics.Collector
	progress func(model.CrawlStats)
	logger   *slog.Logger

	mu        sync.Mutex
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	spider    *crawler.Spider
	collector *report.Collector
	seed      string
}

// Option configures a Task.
type Option func(*Task)

// WithLogger sets the logger passed to every component of the crawl.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Task) {
		t.logger = logger
	}
}

// WithScanID sets the scan identity shown in the summary.
func WithScanID(id string) Option {
	return func(t *Task) {
		t.scanID = id
	}
}

// WithMetrics records crawl and fetch metrics in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(t *Task) {
		t.metrics = c
	}
}

// WithProgress sets a callback that receives stats snapshots while the
// crawl runs and once at the end.
func WithProgress(fn func(model.CrawlStats)) Option {
	return func(t *Task) {
		t.progress = fn
	}
}

// NewTask creates a Task writing into sink. A nil sink discards results;
// the summary is still collected.
func NewTask(sink model.Sink, opts ...Option) *Task {
	if sink == nil {
		sink = model.NopSink{}
	}
	t := &Task{
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.collector = report.NewCollector(t.sink)
	return t
}

// StartCrawl crawls from seed with cfg and blocks until the crawl ends.
//
// An invalid cfg is reported to the sink as a failed scan and returned
// wrapped in ErrInvalidConfiguration; nothing is fetched in that case. Any
// other failure is counted in the returned stats.
func (t *Task) StartCrawl(ctx context.Context, seed string, cfg config.ScanConfiguration) (model.CrawlStats, error) {
	if err := cfg.Validate(); err != nil {
		t.logger.Error("rejecting scan configuration", "seed", seed, "error", err)
		if serr := t.collector.UpdateScanStatus(ctx, model.ScanStatusFailed); serr != nil {
			t.logger.Warn("failed to report scan status", "error", serr)
		}
		return model.CrawlStats{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return model.CrawlStats{}, ErrTaskUsed
	}
	t.started = true
	t.seed = seed
	t.cancel = cancel
	if t.stopped {
		cancel()
	}
	t.spider = t.build(cfg)
	spider := t.spider
	t.mu.Unlock()

	return spider.Start(ctx, seed)
}

// build wires the components of one crawl. The session and the fetcher
// share the HTTP client so login cookies reach every request.
func (t *Task) build(cfg config.ScanConfiguration) *crawler.Spider {
	client := fetcher.NewHTTPClient(cfg)
	session := auth.NewSession(client, auth.WithLogger(t.logger))

	fetchOpts := []fetcher.Option{
		fetcher.WithAuthenticator(session),
		fetcher.WithLogger(t.logger),
	}
	spiderOpts := []crawler.Option{
		crawler.WithSession(session),
		crawler.WithLogger(t.logger),
	}
	if t.metrics != nil {
		fetchOpts = append(fetchOpts, fetcher.WithRecorder(t.metrics))
		spiderOpts = append(spiderOpts, crawler.WithRecorder(t.metrics))
	}
	if t.progress != nil {
		spiderOpts = append(spiderOpts, crawler.WithProgress(t.progress))
	}

	f := fetcher.New(cfg, client, fetchOpts...)
	return crawler.NewSpider(cfg, f, t.collector, spiderOpts...)
}

// StopCrawl asks a running crawl to finish and returns once in-flight
// fetches are done. Calling it before StartCrawl makes the crawl end
// immediately as cancelled.
func (t *Task) StopCrawl() {
	t.mu.Lock()
	t.stopped = true
	spider, cancel := t.spider, t.cancel
	t.mu.Unlock()

	if spider != nil {
		spider.Stop()
	}
	if cancel != nil {
		cancel()
	}
}

// Stats returns the current counters. It is zero before StartCrawl.
func (t *Task) Stats() model.CrawlStats {
	t.mu.Lock()
	spider := t.spider
	t.mu.Unlock()

	if spider == nil {
		return model.CrawlStats{}
	}
	return spider.Stats()
}

// Summary returns what the crawl collected so far.
func (t *Task) Summary() *model.CrawlSummary {
	t.mu.Lock()
	seed := t.seed
	t.mu.Unlock()
	return t.collector.Summary(t.scanID, seed)
}
