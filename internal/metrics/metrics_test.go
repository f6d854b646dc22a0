package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/krishna0605/vulnscanner-sub001/internal/crawler"
	"github.com/krishna0605/vulnscanner-sub001/internal/fetcher"
)

var (
	_ crawler.Recorder = (*Collector)(nil)
	_ fetcher.Recorder = (*Collector)(nil)
)

func TestCollectorCounts(t *testing.T) {
	t.Parallel()

	c := New(false)
	c.URLCrawled()
	c.URLCrawled()
	c.URLDiscovered()
	c.FormsFound(3)
	c.TechnologiesDetected(2)
	c.Error("fetch")
	c.Error("persist")
	c.Error("fetch")
	c.FetchCompleted(200, 150*time.Millisecond)
	c.FetchCompleted(404, 10*time.Millisecond)
	c.FetchCompleted(204, time.Millisecond)
	c.FetchFailed("robots")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"crawled", testutil.ToFloat64(c.crawled), 2},
		{"discovered", testutil.ToFloat64(c.discovered), 1},
		{"forms", testutil.ToFloat64(c.forms), 3},
		{"technologies", testutil.ToFloat64(c.technologies), 2},
		{"fetch errors", testutil.ToFloat64(c.errors.WithLabelValues("fetch")), 2},
		{"persist errors", testutil.ToFloat64(c.errors.WithLabelValues("persist")), 1},
		{"2xx", testutil.ToFloat64(c.responses.WithLabelValues("2xx")), 2},
		{"4xx", testutil.ToFloat64(c.responses.WithLabelValues("4xx")), 1},
		{"robots", testutil.ToFloat64(c.fetchFailures.WithLabelValues("robots")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(c.fetchDuration); n != 1 {
		t.Errorf("fetch duration histogram collected %d metrics, want 1", n)
	}
}

func TestNilCollector(t *testing.T) {
	t.Parallel()

	var c *Collector
	c.URLCrawled()
	c.URLDiscovered()
	c.FormsFound(1)
	c.TechnologiesDetected(1)
	c.Error("fetch")
	c.FetchCompleted(200, time.Second)
	c.FetchFailed("transport")
}

func TestStatusClass(t *testing.T) {
	t.Parallel()

	tests := map[int]string{
		200: "2xx",
		301: "3xx",
		404: "4xx",
		503: "5xx",
		0:   "other",
		999: "other",
	}
	for status, want := range tests {
		if got := statusClass(status); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", status, got, want)
		}
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	c := New(true)
	c.URLCrawled()

	srv := httptest.NewServer(c.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	for _, want := range []string{"vulncrawl_urls_crawled_total 1", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
