package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
	"github.com/krishna0605/vulnscanner-sub001/internal/metrics"
	"github.com/krishna0605/vulnscanner-sub001/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() config.ScanConfiguration {
	cfg := config.NewScanConfiguration()
	cfg.RequestsPerSecond = 1000
	cfg.Timeout = config.Seconds(5)
	cfg.MaxConcurrentRequests = 4
	cfg.MaxRetries = 0
	cfg.RespectRobots = false
	cfg.StatusInterval = config.Duration{}
	return cfg
}

// statusSink records every status it is given.
type statusSink struct {
	model.NopSink

	mu       sync.Mutex
	statuses []model.ScanStatus
}

func (s *statusSink) UpdateScanStatus(_ context.Context, status model.ScanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *statusSink) last() model.ScanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return ""
	}
	return s.statuses[len(s.statuses)-1]
}

// newSite serves a home page linking to /about and a login form, and
// counts requests.
func newSite(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Server", "nginx/1.18.0")
		fmt.Fprint(w, `<html><head><title>Home</title></head><body>
<a href="/about">About</a>
<form action="/login" method="post"><input name="username"><input type="password" name="password"></form>
</body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>About</title></head><body>
<form action="/search"><input name="q"></form>
</body></html>`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestTaskStartCrawl(t *testing.T) {
	t.Parallel()

	srv, hits := newSite(t)
	sink := &statusSink{}

	var progressCalls atomic.Int64
	task := NewTask(sink,
		WithLogger(quietLogger()),
		WithScanID("42"),
		WithMetrics(metrics.New(false)),
		WithProgress(func(model.CrawlStats) { progressCalls.Add(1) }),
	)

	stats, err := task.StartCrawl(context.Background(), srv.URL+"/", newTestConfig())
	if err != nil {
		t.Fatalf("StartCrawl() error = %v", err)
	}
	if stats.URLsCrawled != 2 || stats.FormsFound != 2 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
	if progressCalls.Load() == 0 {
		t.Error("progress callback never called")
	}
	if sink.last() != model.ScanStatusCompleted {
		t.Errorf("last status = %q, want completed", sink.last())
	}

	summary := task.Summary()
	if summary.ScanID != "42" || summary.SeedURL != srv.URL+"/" {
		t.Errorf("summary identity = %q %q", summary.ScanID, summary.SeedURL)
	}
	if summary.Status != model.ScanStatusCompleted || len(summary.Forms) != 2 {
		t.Errorf("summary = status %q forms %d", summary.Status, len(summary.Forms))
	}
	if got := summary.Technologies["server"]; len(got) != 1 || got[0] != "nginx/1.18.0" {
		t.Errorf("server technologies = %v", got)
	}
	if task.Stats().URLsCrawled != 2 {
		t.Errorf("Stats() = %+v", task.Stats())
	}

	if _, err := task.StartCrawl(context.Background(), srv.URL+"/", newTestConfig()); !errors.Is(err, ErrTaskUsed) {
		t.Errorf("second StartCrawl() error = %v, want ErrTaskUsed", err)
	}
}

func TestTaskInvalidConfiguration(t *testing.T) {
	t.Parallel()

	srv, hits := newSite(t)
	sink := &statusSink{}
	task := NewTask(sink, WithLogger(quietLogger()))

	cfg := newTestConfig()
	cfg.MaxDepth = -1

	_, err := task.StartCrawl(context.Background(), srv.URL+"/", cfg)
	if !errors.Is(err, ErrInvalidConfiguration) || !errors.Is(err, config.ErrInvalidMaxDepth) {
		t.Fatalf("StartCrawl() error = %v, want ErrInvalidConfiguration wrapping ErrInvalidMaxDepth", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times for a rejected configuration", hits.Load())
	}
	if sink.last() != model.ScanStatusFailed {
		t.Errorf("last status = %q, want failed", sink.last())
	}
	if task.Summary().Status != model.ScanStatusFailed {
		t.Errorf("summary status = %q", task.Summary().Status)
	}
}

func TestTaskStopBeforeStart(t *testing.T) {
	t.Parallel()

	srv, hits := newSite(t)
	task := NewTask(nil, WithLogger(quietLogger()))
	task.StopCrawl()

	stats, err := task.StartCrawl(context.Background(), srv.URL+"/", newTestConfig())
	if err != nil {
		t.Fatalf("StartCrawl() error = %v", err)
	}
	if stats.URLsCrawled != 0 || hits.Load() != 0 {
		t.Errorf("crawled %d pages (%d hits) after stop", stats.URLsCrawled, hits.Load())
	}
	if got := task.Summary().Status; got != model.ScanStatusCancelled {
		t.Errorf("status = %q, want cancelled", got)
	}
}

func TestTaskStopCrawl(t *testing.T) {
	t.Parallel()

	var (
		once    sync.Once
		started = make(chan struct{})
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>")
		for i := range 20 {
			fmt.Fprintf(w, `<a href="%s/%d">x</a>`, r.URL.Path, i)
		}
		fmt.Fprint(w, "</body></html>")
	}))
	t.Cleanup(srv.Close)

	cfg := newTestConfig()
	cfg.MaxPages = 1000
	cfg.MaxDepth = 10

	task := NewTask(nil, WithLogger(quietLogger()))
	done := make(chan model.CrawlStats, 1)
	go func() {
		stats, _ := task.StartCrawl(context.Background(), srv.URL+"/", cfg)
		done <- stats
	}()

	<-started
	task.StopCrawl()

	select {
	case stats := <-done:
		if stats.URLsCrawled >= 1000 {
			t.Errorf("crawl was not stopped: %+v", stats)
		}
		if after := task.Stats().URLsCrawled; after != stats.URLsCrawled {
			t.Errorf("crawled count moved after stop: %d -> %d", stats.URLsCrawled, after)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("StartCrawl did not return after StopCrawl")
	}

	if got := task.Summary().Status; got != model.ScanStatusCancelled {
		t.Errorf("status = %q, want cancelled", got)
	}
}

func TestTaskBearerAuthentication(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><form action="/settings" method="post"><input name="email"></form></body></html>`)
	}))
	t.Cleanup(srv.Close)

	cfg := newTestConfig()
	cfg.Authentication = config.AuthConfig{Mode: config.AuthModeBearer, Token: "s3cret"}

	task := NewTask(nil, WithLogger(quietLogger()))
	if _, err := task.StartCrawl(context.Background(), srv.URL+"/", cfg); err != nil {
		t.Fatalf("StartCrawl() error = %v", err)
	}

	summary := task.Summary()
	if len(summary.PagesWithErrors) != 0 {
		t.Errorf("pages with errors = %v", summary.PagesWithErrors)
	}
	if len(summary.Forms) != 1 || !summary.Forms[0].AuthenticationRequired {
		t.Errorf("forms = %+v, want one form behind login", summary.Forms)
	}
}
