package scan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
	"github.com/krishna0605/vulnscanner-sub001/internal/model"
)

// DefaultBatchConcurrency is how many seeds are crawled at once.
const DefaultBatchConcurrency = 4

// TaskFactory creates the Task for one seed, usually after creating the
// scan record its sink writes into.
type TaskFactory func(ctx context.Context, seed string) (*Task, error)

// ConfigFunc returns the configuration for one seed.
type ConfigFunc func(seed string) config.ScanConfiguration

// Result is the outcome of one seed of a batch.
type Result struct {
	Seed    string
	Stats   model.CrawlStats
	Summary *model.CrawlSummary

	// Err is set when the Task could not be created or the configuration
	// was rejected. Summary is nil when the Task was never created.
	Err error
}

// BatchRunner crawls several seeds concurrently.
type BatchRunner struct {
	factory     TaskFactory
	concurrency int
	logger      *slog.Logger

	mu      sync.Mutex
	running map[*Task]struct{}
	stopped bool
}

// BatchOption configures a BatchRunner.
type BatchOption func(*BatchRunner)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchRunner) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchRunner) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchRunner creates a BatchRunner that builds a Task per seed with factory.
func NewBatchRunner(factory TaskFactory, opts ...BatchOption) *BatchRunner {
	b := &BatchRunner{
		factory:     factory,
		concurrency: DefaultBatchConcurrency,
		running:     make(map[*Task]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Run crawls every seed and returns one Result per seed, in seed order.
// Seeds not started when ctx is cancelled are returned with Err set to
// ctx.Err(). Seeds started after Stop end at once as cancelled.
func (b *BatchRunner) Run(ctx context.Context, seeds []string, cfgFor ConfigFunc) []Result {
	b.logger.Info("starting batch crawl",
		"seeds", len(seeds),
		"concurrency", b.concurrency,
	)
	startTime := time.Now()

	results := make([]Result, len(seeds))

	// Results are per seed; the group never fails as a whole.
	var g errgroup.Group
	g.SetLimit(b.concurrency)

	for i, seed := range seeds {
		results[i].Seed = seed
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			b.runOne(ctx, seed, cfgFor(seed), &results[i])
			return nil
		})
	}
	_ = g.Wait()

	b.logger.Info("batch crawl complete",
		"seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)
	return results
}

func (b *BatchRunner) runOne(ctx context.Context, seed string, cfg config.ScanConfiguration, res *Result) {
	task, err := b.factory(ctx, seed)
	if err != nil {
		b.logger.Warn("failed to create crawl task", "seed", seed, "error", err)
		res.Err = err
		return
	}

	if !b.track(task) {
		task.StopCrawl()
	}
	defer b.untrack(task)

	res.Stats, res.Err = task.StartCrawl(ctx, seed, cfg)
	res.Summary = task.Summary()

	if res.Err != nil {
		b.logger.Warn("crawl rejected", "seed", seed, "error", res.Err)
		return
	}
	b.logger.Info("crawl finished",
		"seed", seed,
		"status", res.Summary.Status.String(),
		"urls_crawled", res.Stats.URLsCrawled,
	)
}

// track registers a running task. It returns false after Stop.
func (b *BatchRunner) track(t *Task) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running[t] = struct{}{}
	return !b.stopped
}

func (b *BatchRunner) untrack(t *Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.running, t)
}

// Stop stops every running crawl and keeps new ones from fetching
// anything. It returns once the running crawls have drained.
func (b *BatchRunner) Stop() {
	b.mu.Lock()
	b.stopped = true
	tasks := make([]*Task, 0, len(b.running))
	for t := range b.running {
		tasks = append(tasks, t)
	}
	b.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Go(t.StopCrawl)
	}
	wg.Wait()
}
