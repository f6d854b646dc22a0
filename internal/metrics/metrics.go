// Package metrics exports crawl progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vulncrawl"

// Collector counts crawl and fetch events. It satisfies both the crawler's
// and the fetcher's Recorder interfaces. A nil *Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	crawled      prometheus.Counter
	discovered   prometheus.Counter
	forms        prometheus.Counter
	technologies prometheus.Counter
	errors       *prometheus.CounterVec

	responses     *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	fetchDuration prometheus.Histogram
}

// New creates a Collector with its own registry. withRuntime adds the Go
// runtime and process collectors.
func New(withRuntime bool) *Collector {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	}

	c := &Collector{
		registry: reg,
		crawled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "urls_crawled_total",
			Help: "URLs fetched successfully.",
		}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "urls_discovered_total",
			Help: "Links accepted into the frontier.",
		}),
		forms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "forms_found_total",
			Help: "Forms extracted from crawled pages.",
		}),
		technologies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "technologies_detected_total",
			Help: "Technologies reported by fingerprinting.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total",
			Help: "Counted crawl errors by stage.",
		}, []string{"stage"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_responses_total",
			Help: "HTTP responses by status class.",
		}, []string{"class"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetch_failures_total",
			Help: "Fetches that produced no response, by reason.",
		}, []string{"reason"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "fetch_duration_seconds",
			Help:    "Time from request to fully read body.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	reg.MustRegister(
		c.crawled, c.discovered, c.forms, c.technologies, c.errors,
		c.responses, c.fetchFailures, c.fetchDuration,
	)
	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// URLCrawled records a successful fetch.
func (c *Collector) URLCrawled() {
	if c != nil {
		c.crawled.Inc()
	}
}

// URLDiscovered records a link accepted into the frontier.
func (c *Collector) URLDiscovered() {
	if c != nil {
		c.discovered.Inc()
	}
}

// FormsFound records n extracted forms.
func (c *Collector) FormsFound(n int) {
	if c != nil {
		c.forms.Add(float64(n))
	}
}

// TechnologiesDetected records n detected technologies.
func (c *Collector) TechnologiesDetected(n int) {
	if c != nil {
		c.technologies.Add(float64(n))
	}
}

// Error records a counted crawl error.
func (c *Collector) Error(stage string) {
	if c != nil {
		c.errors.WithLabelValues(stage).Inc()
	}
}

// FetchCompleted records one HTTP response.
func (c *Collector) FetchCompleted(status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.responses.WithLabelValues(statusClass(status)).Inc()
	c.fetchDuration.Observe(elapsed.Seconds())
}

// FetchFailed records a fetch that produced no response.
func (c *Collector) FetchFailed(reason string) {
	if c != nil {
		c.fetchFailures.WithLabelValues(reason).Inc()
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("metrics server error: %w", err)
	}
}
