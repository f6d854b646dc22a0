package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
)

// Response is the result of one successful fetch. Any HTTP status counts as
// success; only transport failures and policy rejections are errors.
type Response struct {
	// URL is the requested URL.
	URL string

	// FinalURL is where the redirect chain ended. Equal to URL when no
	// redirect was followed.
	FinalURL string

	StatusCode  int
	Headers     http.Header
	Body        []byte
	ContentType string

	// ContentLength is the length of the decoded body, or the advertised
	// length when the body was truncated.
	ContentLength int64

	// Elapsed covers sending the request and reading the body.
	Elapsed time.Duration

	// Processable is true for HTML and text responses whose body should be parsed.
	Processable bool

	// Truncated is true when the body exceeded the size limit.
	Truncated bool

	// authGen is the login generation the request was sent under.
	authGen uint64
}

// Authenticator attaches session credentials to requests and recovers from
// authentication challenges.
type Authenticator interface {
	// Apply adds credentials to req and returns the login generation they
	// belong to. Cookies travel through the shared jar.
	Apply(req *http.Request) uint64

	// HandleChallenge is called when a response has status 401 or 403,
	// with the generation Apply returned for its request. It returns true
	// when the session is authenticated again and the request should be
	// sent again.
	HandleChallenge(ctx context.Context, statusCode int, gen uint64) bool
}

// Recorder receives fetch metrics.
type Recorder interface {
	FetchCompleted(statusCode int, elapsed time.Duration)
	FetchFailed(reason string)
}

// Fetcher is the rate-limited, robots-aware HTTP transport of a crawl.
// It is safe for concurrent use.
type Fetcher struct {
	client *http.Client

	maxRetries   int
	retryBackoff time.Duration
	maxBodySize  int64

	robots  *RobotsAgent // nil when robots.txt is ignored
	hosts   *HostGate
	global  *semaphore.Weighted
	limiter *rate.Limiter

	auth     Authenticator
	recorder Recorder
	logger   *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithAuthenticator sets the session used to authenticate requests.
func WithAuthenticator(auth Authenticator) Option {
	return func(f *Fetcher) {
		f.auth = auth
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(f *Fetcher) {
		f.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher for cfg. client should come from NewHTTPClient; a
// nil client gets one.
func New(cfg config.ScanConfiguration, client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = NewHTTPClient(cfg)
	}

	concurrency := max(cfg.MaxConcurrentRequests, 1)

	f := &Fetcher{
		client:       client,
		maxRetries:   max(cfg.MaxRetries, 0),
		retryBackoff: cfg.RetryBackoff.Duration,
		maxBodySize:  cfg.MaxBodySize,
		hosts:        NewHostGate(cfg.PerHostConcurrency),
		global:       semaphore.NewWeighted(int64(concurrency)),
		// Burst 1 spaces requests evenly instead of allowing an initial spike.
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  slog.Default(),
	}
	if f.maxBodySize <= 0 {
		f.maxBodySize = config.DefaultMaxBodySize
	}

	for _, opt := range opts {
		opt(f)
	}

	if cfg.RespectRobots {
		f.robots = NewRobotsAgent(client, cfg.UserAgent, f.logger)
	}

	return f
}

// Client returns the underlying HTTP client.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// Fetch retrieves rawURL with a GET request. headers are added to the
// request on top of the crawl-wide headers.
//
// It returns ErrInvalidURL, ErrRobotsDisallowed, ErrTransport (after
// retries) or the context's error; any HTTP response is a success.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, headers http.Header) (*Response, error) {
	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	if f.robots != nil {
		allowed, delay := f.robots.Check(ctx, target)
		if delay > 0 {
			f.hosts.SetDelay(target.Host, delay)
		}
		if !allowed {
			f.failed("robots")
			return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, rawURL)
		}
	}

	release, err := f.acquire(ctx, target.Host)
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := f.fetchWithRetry(ctx, target, headers)
	if err != nil {
		return nil, err
	}

	if f.auth != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		if f.auth.HandleChallenge(ctx, resp.StatusCode, resp.authGen) {
			f.logger.Debug("retrying after re-authentication", "url", rawURL)
			if retried, err := f.fetchWithRetry(ctx, target, headers); err == nil {
				resp = retried
			}
		}
	}

	return resp, nil
}

// acquire takes a per-host slot and then a global slot. The host slot is
// taken first so that Crawl-delay waits do not hold a global slot.
func (f *Fetcher) acquire(ctx context.Context, host string) (func(), error) {
	releaseHost, err := f.hosts.Acquire(ctx, host)
	if err != nil {
		return nil, err
	}
	if err := f.global.Acquire(ctx, 1); err != nil {
		releaseHost()
		return nil, err
	}
	return func() {
		f.global.Release(1)
		releaseHost()
	}, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, target *url.URL, headers http.Header) (*Response, error) {
	backoff := f.retryBackoff
	for attempt := 0; ; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := f.do(ctx, target, headers)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isTransient(err) || attempt >= f.maxRetries {
			f.failed("transport")
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}

		f.logger.Debug("retrying fetch",
			"url", target.String(),
			"attempt", attempt+1,
			"error", err,
		)
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func (f *Fetcher) do(ctx context.Context, target *url.URL, headers http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	var gen uint64
	if f.auth != nil {
		gen = f.auth.Apply(req)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, truncated, err := readBody(resp, f.maxBodySize)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	contentLength := int64(len(body))
	if truncated && resp.ContentLength > contentLength {
		contentLength = resp.ContentLength
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" && len(body) > 0 {
		contentType = http.DetectContentType(body)
	}

	finalURL := target.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if f.recorder != nil {
		f.recorder.FetchCompleted(resp.StatusCode, elapsed)
	}

	return &Response{
		URL:           target.String(),
		FinalURL:      finalURL,
		StatusCode:    resp.StatusCode,
		Headers:       resp.Header.Clone(),
		Body:          body,
		ContentType:   contentType,
		ContentLength: contentLength,
		Elapsed:       elapsed,
		Processable:   IsProcessable(contentType),
		Truncated:     truncated,
		authGen:       gen,
	}, nil
}

func (f *Fetcher) failed(reason string) {
	if f.recorder != nil {
		f.recorder.FetchFailed(reason)
	}
}

// readBody decodes the response body and reads at most limit bytes of it.
func readBody(resp *http.Response, limit int64) ([]byte, bool, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, false, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, false, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return bytes.Clone(body[:limit]), true, nil
	}
	return body, false, nil
}

// IsProcessable reports whether a response with contentType should be
// parsed for links and forms.
func IsProcessable(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml", "text/plain":
		return true
	default:
		return false
	}
}

// isTransient reports whether err is worth retrying: timeouts, refused or
// reset connections, temporary DNS failures and truncated responses.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsNotFound
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
