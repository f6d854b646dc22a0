package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// maxRobotsSize bounds how much of a robots.txt file is read.
const maxRobotsSize = 512 * 1024

// RobotsAgent evaluates robots.txt rules. Each host's file is fetched once
// and cached for the lifetime of the agent.
type RobotsAgent struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData // nil value: no usable robots.txt
	group singleflight.Group
}

// NewRobotsAgent creates a RobotsAgent that fetches with client and matches
// rules for userAgent as well as the wildcard group.
func NewRobotsAgent(client *http.Client, userAgent string, logger *slog.Logger) *RobotsAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsAgent{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Check reports whether target may be fetched and the Crawl-delay that
// applies to its host. Both the user agent's group and the "*" group must
// allow the path. A robots.txt that cannot be fetched allows everything.
func (a *RobotsAgent) Check(ctx context.Context, target *url.URL) (allowed bool, crawlDelay time.Duration) {
	rules := a.rules(ctx, target)
	if rules == nil {
		return true, 0
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}

	allowed = true
	for _, name := range []string{a.userAgent, "*"} {
		group := rules.FindGroup(name)
		if group == nil {
			continue
		}
		if crawlDelay == 0 {
			crawlDelay = group.CrawlDelay
		}
		allowed = allowed && group.Test(path)
	}
	return allowed, crawlDelay
}

// rules returns the cached rules for target's host, fetching them once.
// Concurrent callers for the same host share a single fetch.
func (a *RobotsAgent) rules(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	key := strings.ToLower(target.Scheme + "://" + target.Host)

	a.mu.RLock()
	rules, ok := a.cache[key]
	a.mu.RUnlock()
	if ok {
		return rules
	}

	v, _, _ := a.group.Do(key, func() (any, error) { //nolint:errcheck // fetch never returns an error
		a.mu.RLock()
		rules, ok := a.cache[key]
		a.mu.RUnlock()
		if ok {
			return rules, nil
		}

		rules = a.fetch(ctx, key+"/robots.txt")

		// A cancelled crawl must not poison the cache for later checks.
		if ctx.Err() == nil {
			a.mu.Lock()
			a.cache[key] = rules
			a.mu.Unlock()
		}
		return rules, nil
	})

	rules, _ = v.(*robotstxt.RobotsData)
	return rules
}

func (a *RobotsAgent) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Debug("robots.txt unavailable", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		a.logger.Debug("robots.txt unavailable", "url", robotsURL, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil
	}

	rules, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		a.logger.Debug("robots.txt unparsable", "url", robotsURL, "error", err)
		return nil
	}
	return rules
}
