package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
	"github.com/krishna0605/vulnscanner-sub001/internal/fetcher"
	"github.com/krishna0605/vulnscanner-sub001/internal/model"
	"github.com/krishna0605/vulnscanner-sub001/internal/techdetect"
	"github.com/krishna0605/vulnscanner-sub001/internal/urlnorm"
)

// State is the lifecycle state of a Spider.
type State int32

const (
	Idle State = iota
	Running
	Stopping
	Completed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// PageFetcher retrieves one URL. *fetcher.Fetcher implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, headers http.Header) (*fetcher.Response, error)
}

// Session is the authentication state the spider consults and feeds with
// the CSRF tokens it finds. *auth.Session implements it.
type Session interface {
	Configure(ctx context.Context, cfg config.AuthConfig, baseURL string) bool
	Authenticated() bool
	UpdateToken(pageURL, token string)
}

// Fingerprinter identifies the technologies behind a response.
// *techdetect.Detector implements it.
type Fingerprinter interface {
	Analyze(headers http.Header, body []byte, statusCode int) model.TechnologyFingerprint
}

// Recorder observes crawl progress, typically to export metrics.
type Recorder interface {
	URLCrawled()
	URLDiscovered()
	FormsFound(n int)
	TechnologiesDetected(n int)
	Error(stage string)
}

// Error stages reported to the Recorder.
const (
	stageSeed    = "seed"
	stageFetch   = "fetch"
	stagePersist = "persist"
	stagePanic   = "panic"
)

// Spider crawls one web application breadth-first with a pool of workers.
//
// A Spider runs a single crawl: Idle -> Running -> (Stopping) -> Completed.
// Reset returns a completed Spider to Idle.
type Spider struct {
	cfg      config.ScanConfiguration
	fetcher  PageFetcher
	sink     model.Sink
	session  Session
	detector Fingerprinter
	recorder Recorder
	progress func(model.CrawlStats)
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	frontier *Frontier
	budget   *pageBudget
	wg       sync.WaitGroup

	stopping atomic.Bool

	visited *VisitedSet
	stats   StatsRecorder
}

// Option configures a Spider.
type Option func(*Spider)

// WithSession makes the spider configure and consult an authentication session.
func WithSession(session Session) Option {
	return func(s *Spider) {
		s.session = session
	}
}

// WithDetector replaces the default technology detector.
func WithDetector(d Fingerprinter) Option {
	return func(s *Spider) {
		s.detector = d
	}
}

// WithRecorder sets the progress observer.
func WithRecorder(r Recorder) Option {
	return func(s *Spider) {
		s.recorder = r
	}
}

// WithProgress registers fn to receive a stats snapshot every status
// interval and once at completion.
func WithProgress(fn func(model.CrawlStats)) Option {
	return func(s *Spider) {
		s.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates an idle Spider. cfg is copied and must not change
// afterwards. A nil sink discards results.
func NewSpider(cfg config.ScanConfiguration, f PageFetcher, sink model.Sink, opts ...Option) *Spider {
	if sink == nil {
		sink = model.NopSink{}
	}
	s := &Spider{
		cfg:     cfg.Clone(),
		fetcher: f,
		sink:    sink,
		logger:  slog.Default(),
		visited: NewVisitedSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.detector == nil {
		s.detector = techdetect.New(techdetect.WithLogger(s.logger))
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	return s
}

// State returns the lifecycle state.
func (s *Spider) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the counters. It is safe to call while the
// crawl runs.
func (s *Spider) Stats() model.CrawlStats {
	return s.stats.Snapshot()
}

// Start crawls from seed and blocks until the frontier is exhausted, the
// page budget is spent, Stop is called or ctx is cancelled. It returns the
// final stats.
//
// Only an invalid configuration or a Spider that is not Idle produce an
// error. Failures while crawling are counted in the stats; a seed that is
// not crawlable yields a completed crawl with one error.
func (s *Spider) Start(ctx context.Context, seed string) (model.CrawlStats, error) {
	if err := s.cfg.Validate(); err != nil {
		return model.CrawlStats{}, err
	}

	frontier, budget, err := s.begin()
	if err != nil {
		return model.CrawlStats{}, err
	}

	s.stats.begin(time.Now())
	s.report(ctx, model.ScanStatusRunning)

	w := &worker{spider: s, frontier: frontier, budget: budget}
	if canonical, ok := s.seed(ctx, seed); ok {
		w.matcher = s.matcher(canonical)
		s.visited.Add(canonical)
		frontier.Push(Entry{URL: canonical})
	}

	stopOnCancel := context.AfterFunc(ctx, func() {
		frontier.Close()
		budget.close()
	})
	defer stopOnCancel()

	tickerDone := s.startStatusTicker(ctx)

	// Workers are started even without a seed; they see a drained
	// frontier and exit at once.
	for range s.cfg.MaxConcurrentRequests {
		go w.run(ctx)
	}
	s.wg.Wait()

	close(tickerDone)
	return s.finish(ctx), nil
}

// seed canonicalizes the seed and configures authentication against it.
func (s *Spider) seed(ctx context.Context, raw string) (string, bool) {
	canonical := urlnorm.Normalize(raw)
	if !urlnorm.IsValid(canonical) {
		s.countError(stageSeed)
		s.logger.Warn("seed is not crawlable",
			"error", fmt.Errorf("%w: %q", ErrInvalidSeed, raw),
		)
		return "", false
	}

	if s.session != nil && s.cfg.Authentication.Enabled() {
		s.session.Configure(ctx, s.cfg.Authentication, canonical)
	}

	s.logger.Info("crawl started",
		"seed", canonical,
		"max_depth", s.cfg.MaxDepth,
		"max_pages", s.cfg.MaxPages,
		"workers", s.cfg.MaxConcurrentRequests,
	)
	return canonical, true
}

func (s *Spider) matcher(seed string) *urlnorm.Matcher {
	m, err := urlnorm.NewMatcher(seed, s.cfg.ScopePatterns, s.cfg.ExcludePatterns)
	if err != nil {
		// Unreachable after Validate; fall back to the seed's host.
		s.logger.Warn("ignoring scope patterns", "error", err)
		m, _ = urlnorm.NewMatcher(seed, nil, nil)
	}
	return m
}

// begin moves Idle to Running and prepares a fresh frontier and page budget.
func (s *Spider) begin() (*Frontier, *pageBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return nil, nil, fmt.Errorf("%w: state is %s", ErrAlreadyRunning, s.state)
	}
	s.state = Running
	s.frontier = NewFrontier()
	s.budget = newPageBudget(s.cfg.MaxPages)
	s.wg.Add(s.cfg.MaxConcurrentRequests)
	return s.frontier, s.budget, nil
}

// finish records the end time, reports the terminal status and returns the
// final stats.
func (s *Spider) finish(ctx context.Context) model.CrawlStats {
	status := model.ScanStatusCompleted
	if s.stopping.Load() || ctx.Err() != nil {
		status = model.ScanStatusCancelled
	}

	// Final reporting must reach the sink even when ctx was cancelled.
	ctx = context.WithoutCancel(ctx)

	s.stats.finish(time.Now())
	stats := s.stats.Snapshot()

	if err := s.sink.UpdateScanStats(ctx, stats); err != nil {
		s.logger.Warn("failed to report final stats", "error", err)
	}
	s.report(ctx, status)
	if s.progress != nil {
		s.progress(stats)
	}

	s.mu.Lock()
	s.state = Completed
	s.mu.Unlock()

	s.logger.Info("crawl finished",
		"status", status.String(),
		"urls_crawled", stats.URLsCrawled,
		"urls_discovered", stats.URLsDiscovered,
		"forms_found", stats.FormsFound,
		"technologies_detected", stats.TechnologiesDetected,
		"errors", stats.Errors,
		"duration", stats.Duration().String(),
	)
	return stats
}

// Stop asks a running crawl to finish. Fetches in flight complete, nothing
// new is dispatched, and Stop returns once every worker has exited.
// Stop on a Spider that is not running does nothing.
func (s *Spider) Stop() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	s.state = Stopping
	frontier, budget := s.frontier, s.budget
	s.mu.Unlock()

	s.logger.Info("stop requested, draining workers")
	s.report(context.Background(), model.ScanStatusStopping)

	s.stopping.Store(true)
	frontier.Close()
	budget.close()
	s.wg.Wait()
}

// Reset returns a completed Spider to Idle with empty stats and visited set.
func (s *Spider) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Idle:
		return nil
	case Completed:
	default:
		return fmt.Errorf("%w: state is %s", ErrAlreadyRunning, s.state)
	}

	s.state = Idle
	s.frontier = nil
	s.budget = nil
	s.stopping.Store(false)
	s.visited = NewVisitedSet()
	s.stats.reset()
	return nil
}

func (s *Spider) report(ctx context.Context, status model.ScanStatus) {
	if err := s.sink.UpdateScanStatus(ctx, status); err != nil {
		s.logger.Warn("failed to report scan status", "status", status.String(), "error", err)
	}
}

// startStatusTicker pushes running stats to the sink every status interval
// until the returned channel is closed.
func (s *Spider) startStatusTicker(ctx context.Context) chan struct{} {
	done := make(chan struct{})
	interval := s.cfg.StatusInterval.Duration
	if interval <= 0 {
		return done
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := s.stats.Snapshot()
				if err := s.sink.UpdateScanStats(ctx, stats); err != nil {
					s.logger.Debug("failed to report stats", "error", err)
				}
				if s.progress != nil {
					s.progress(stats)
				}
			}
		}
	}()
	return done
}

func (s *Spider) countError(stage string) {
	s.stats.errors.Add(1)
	s.recorder.Error(stage)
}

type nopRecorder struct{}

func (nopRecorder) URLCrawled()              {}
func (nopRecorder) URLDiscovered()           {}
func (nopRecorder) FormsFound(int)           {}
func (nopRecorder) TechnologiesDetected(int) {}
func (nopRecorder) Error(string)             {}

// worker is the per-URL loop shared by every worker goroutine.
type worker struct {
	spider   *Spider
	frontier *Frontier
	budget   *pageBudget
	matcher  *urlnorm.Matcher
}

func (w *worker) run(ctx context.Context) {
	defer w.spider.wg.Done()

	for {
		entry, ok := w.frontier.Next()
		if !ok {
			return
		}
		w.visit(ctx, entry)
		w.frontier.Done()
	}
}

// visit processes one entry. Nothing that happens here stops the crawl.
func (w *worker) visit(ctx context.Context, entry Entry) {
	s := w.spider
	defer func() {
		if r := recover(); r != nil {
			s.countError(stagePanic)
			s.logger.Error("recovered while processing url", "url", entry.URL, "panic", r)
		}
	}()

	if s.stopping.Load() || ctx.Err() != nil {
		return
	}
	if entry.Depth > s.cfg.MaxDepth {
		return
	}
	if !w.budget.reserve() {
		return
	}
	spent := false
	defer func() {
		if !spent {
			w.budget.release()
		}
	}()

	resp, err := s.fetcher.Fetch(ctx, entry.URL, nil)
	if err != nil {
		switch {
		case errors.Is(err, fetcher.ErrRobotsDisallowed):
			s.logger.Debug("skipped by robots.txt", "url", entry.URL)
		case ctx.Err() != nil:
			s.logger.Debug("fetch cancelled", "url", entry.URL)
		default:
			s.countError(stageFetch)
			s.logger.Warn("fetch failed", "url", entry.URL, "error", err)
		}
		return
	}

	if final := urlnorm.Normalize(resp.FinalURL); resp.FinalURL != "" && final != entry.URL {
		s.visited.Add(final)
		if !w.matcher.Allowed(final) {
			s.logger.Debug("redirect left scope", "url", entry.URL, "final", resp.FinalURL)
			return
		}
	}

	w.budget.spend()
	spent = true
	s.stats.crawled.Add(1)
	s.recorder.URLCrawled()

	w.process(ctx, entry, resp)
}

// process persists what was found on a fetched page and enqueues its links.
func (w *worker) process(ctx context.Context, entry Entry, resp *fetcher.Response) {
	s := w.spider

	var page *ParseResult
	if resp.Processable {
		base := resp.FinalURL
		if base == "" {
			base = entry.URL
		}
		page = Parse(string(resp.Body), base)
	}

	record := &model.DiscoveredURL{
		URL:            entry.URL,
		ParentURL:      entry.Parent,
		Method:         http.MethodGet,
		StatusCode:     resp.StatusCode,
		ContentType:    resp.ContentType,
		ContentLength:  resp.ContentLength,
		ResponseTimeMS: resp.Elapsed.Milliseconds(),
		Depth:          entry.Depth,
		DiscoveredAt:   time.Now(),
	}
	if page != nil {
		record.PageTitle = page.Title
		if len(page.CSRFTokens) > 0 && s.session != nil {
			s.session.UpdateToken(entry.URL, page.CSRFTokens[0].Value)
		}
	}

	urlID, err := s.sink.SaveDiscoveredURL(ctx, record)
	saved := err == nil
	if err != nil {
		s.countError(stagePersist)
		s.logger.Warn("failed to save url", "url", entry.URL, "error", err)
	}

	if page != nil && len(page.Forms) > 0 {
		w.saveForms(ctx, urlID, saved, entry, page.Forms)
	}

	fingerprint := s.detector.Analyze(resp.Headers, resp.Body, resp.StatusCode)
	if n := fingerprint.TechnologyCount(); n > 0 {
		s.stats.techs.Add(int64(n))
		s.recorder.TechnologiesDetected(n)
	}
	if saved && !fingerprint.IsEmpty() {
		if err := s.sink.SaveTechnology(ctx, urlID, &fingerprint); err != nil {
			s.countError(stagePersist)
			s.logger.Warn("failed to save technology", "url", entry.URL, "error", err)
		}
	}

	if page != nil {
		w.enqueue(entry, page.Links)
	}
}

func (w *worker) saveForms(ctx context.Context, urlID int64, saved bool, entry Entry, forms []model.ExtractedForm) {
	s := w.spider

	authenticated := s.session != nil && s.session.Authenticated()
	for i := range forms {
		forms[i].AuthenticationRequired = authenticated && !forms[i].HasPasswordField()
	}

	s.stats.forms.Add(int64(len(forms)))
	s.recorder.FormsFound(len(forms))

	if !saved {
		return
	}
	if err := s.sink.SaveForms(ctx, urlID, forms); err != nil {
		s.countError(stagePersist)
		s.logger.Warn("failed to save forms", "url", entry.URL, "forms", len(forms), "error", err)
	}
}

// enqueue pushes the links of entry that are crawlable, in scope and new.
func (w *worker) enqueue(entry Entry, links []string) {
	s := w.spider

	depth := entry.Depth + 1
	if depth > s.cfg.MaxDepth || w.budget.exhausted() {
		return
	}

	for _, canonical := range w.admit(links) {
		if !s.visited.Add(canonical) {
			continue
		}
		if !w.frontier.Push(Entry{URL: canonical, Depth: depth, Parent: entry.URL}) {
			return
		}
		s.stats.discovered.Add(1)
		s.recorder.URLDiscovered()
	}
}

// admit returns the canonical form of every crawlable, in-scope link once,
// in page order.
func (w *worker) admit(links []string) []string {
	valid := urlnorm.Dedupe(links)
	ordered := make([]string, 0, len(valid))
	for _, link := range links {
		canonical := urlnorm.Normalize(link)
		if _, ok := valid[canonical]; !ok {
			continue
		}
		delete(valid, canonical)
		ordered = append(ordered, canonical)
	}
	return w.matcher.Filter(ordered)
}
