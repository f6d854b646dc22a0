package config

import (
	"fmt"
	"maps"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/krishna0605/vulnscanner-sub001/internal/urlnorm"
)

// Default configuration values.
// These values are chosen for an interactive scan of a single web
// application: small enough to finish quickly, polite enough not to be
// mistaken for a denial of service.
const (
	// DefaultMaxDepth is how many links away from the seed the crawler goes.
	DefaultMaxDepth = 3

	// DefaultMaxPages caps the number of successful fetches per scan.
	DefaultMaxPages = 100

	// DefaultRequestsPerSecond is the global rate ceiling.
	DefaultRequestsPerSecond = 10.0

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxConcurrentRequests bounds in-flight requests across all hosts.
	DefaultMaxConcurrentRequests = 10

	// DefaultPerHostConcurrency bounds in-flight requests to a single host.
	DefaultPerHostConcurrency = 2

	// DefaultMaxRetries is how many times a transient transport failure is retried.
	DefaultMaxRetries = 2

	// DefaultRetryBackoff is the base delay between retries. It doubles per attempt.
	DefaultRetryBackoff = 500 * time.Millisecond

	// DefaultMaxBodySize is the largest response body read into memory.
	// Longer bodies are truncated.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultStatusInterval is how often running stats are pushed to the sink.
	DefaultStatusInterval = 5 * time.Second

	// AppName is used for XDG directories and the default user agent.
	AppName = "vulncrawl"

	// DefaultUserAgent identifies the crawler to target servers.
	DefaultUserAgent = "vulncrawl/1.0"
)

// ScanConfiguration controls a single crawl.
// It is validated before the crawl starts and must not change afterwards.
type ScanConfiguration struct {
	// MaxDepth is the largest link distance from the seed that is fetched.
	MaxDepth int `yaml:"max_depth"`

	// MaxPages is the largest number of successful fetches.
	MaxPages int `yaml:"max_pages"`

	// RequestsPerSecond is the global token bucket rate.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Timeout applies to each HTTP request individually.
	Timeout Duration `yaml:"timeout"`

	// MaxConcurrentRequests is both the worker count and the global
	// in-flight request bound.
	MaxConcurrentRequests int `yaml:"max_concurrent_requests"`

	// PerHostConcurrency bounds in-flight requests to one host.
	PerHostConcurrency int `yaml:"per_host_concurrency"`

	FollowRedirects bool `yaml:"follow_redirects"`
	RespectRobots   bool `yaml:"respect_robots"`

	UserAgent string `yaml:"user_agent"`

	// ScopePatterns restrict the crawl to matching URLs.
	// Empty means the seed's host only.
	ScopePatterns []string `yaml:"scope_patterns,omitempty"`

	// ExcludePatterns drop matching URLs even when they are in scope.
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`

	Authentication AuthConfig `yaml:"authentication"`

	MaxRetries   int      `yaml:"max_retries"`
	RetryBackoff Duration `yaml:"retry_backoff"`

	// MaxBodySize is in bytes.
	MaxBodySize int64 `yaml:"max_body_size"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// StatusInterval is how often running stats are reported. Zero reports
	// only at completion.
	StatusInterval Duration `yaml:"status_interval"`
}

// NewScanConfiguration returns a ScanConfiguration with default values.
func NewScanConfiguration() ScanConfiguration {
	return ScanConfiguration{
		MaxDepth:              DefaultMaxDepth,
		MaxPages:              DefaultMaxPages,
		RequestsPerSecond:     DefaultRequestsPerSecond,
		Timeout:               Duration{DefaultTimeout},
		MaxConcurrentRequests: DefaultMaxConcurrentRequests,
		PerHostConcurrency:    DefaultPerHostConcurrency,
		FollowRedirects:       true,
		RespectRobots:         true,
		UserAgent:             DefaultUserAgent,
		Authentication:        AuthConfig{Mode: AuthModeNone},
		MaxRetries:            DefaultMaxRetries,
		RetryBackoff:          Duration{DefaultRetryBackoff},
		MaxBodySize:           DefaultMaxBodySize,
		StatusInterval:        Duration{DefaultStatusInterval},
	}
}

// Clone returns a deep copy.
func (c ScanConfiguration) Clone() ScanConfiguration {
	out := c
	out.ScopePatterns = append([]string(nil), c.ScopePatterns...)
	out.ExcludePatterns = append([]string(nil), c.ExcludePatterns...)
	if c.Headers != nil {
		out.Headers = maps.Clone(c.Headers)
	}
	return out
}

// Validate checks that every field is within range and returns the first
// problem found.
func (c ScanConfiguration) Validate() error {
	if c.MaxDepth < 1 {
		return ErrInvalidMaxDepth
	}
	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}
	if c.RequestsPerSecond <= 0 || math.IsNaN(c.RequestsPerSecond) || math.IsInf(c.RequestsPerSecond, 0) {
		return ErrInvalidRate
	}
	if c.Timeout.Duration <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxConcurrentRequests < 1 || c.PerHostConcurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.MaxRetries < 0 || c.RetryBackoff.Duration < 0 {
		return ErrInvalidRetries
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		return ErrEmptyUserAgent
	}
	for _, p := range append(append([]string(nil), c.ScopePatterns...), c.ExcludePatterns...) {
		if err := urlnorm.CompilePattern(p); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPattern, err)
		}
	}
	return c.Authentication.Validate()
}

// XDGDataDir returns the XDG data directory for vulncrawl.
// This is where the scan database is stored by default.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for vulncrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}
