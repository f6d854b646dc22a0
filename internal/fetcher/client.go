package fetcher

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
)

// maxRedirects bounds redirect chains when redirects are followed.
const maxRedirects = 10

// NewHTTPClient builds the cookie-aware client shared by the Fetcher and
// the authentication session of one crawl.
//
// The configured user agent and custom headers are injected by the
// transport, so login requests and redirects carry them too.
func NewHTTPClient(cfg config.ScanConfiguration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.PerHostConcurrency,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}) //nolint:errcheck // cookiejar.New never fails

	followRedirects := cfg.FollowRedirects
	return &http.Client{
		Transport: &headerInjectingTransport{
			base:      transport,
			userAgent: cfg.UserAgent,
			headers:   cfg.Headers,
		},
		Timeout: cfg.Timeout.Duration,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if !followRedirects || len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// headerInjectingTransport adds the crawl's user agent and custom headers
// to every request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

	for key, value := range t.headers {
		// A configured Cookie is appended to the jar's cookies, not replacing them.
		if http.CanonicalHeaderKey(key) == "Cookie" {
			if existing := clone.Header.Get("Cookie"); existing != "" {
				clone.Header.Set("Cookie", existing+"; "+value)
				continue
			}
		}
		if clone.Header.Get(key) == "" {
			clone.Header.Set(key, value)
		}
	}

	return t.base.RoundTrip(clone)
}
