package auth

import (
	"context"
	"net/url"
	"strings"

	"github.com/krishna0605/vulnscanner-sub001/internal/crawler"
)

// GetToken returns a CSRF token for pageURL. A cached token for the exact
// URL wins, then one for the URL's domain. Otherwise the page is fetched
// and its first token is cached; concurrent callers for the same URL share
// that fetch. It returns false when no token could be found.
func (s *Session) GetToken(ctx context.Context, pageURL string) (string, bool) {
	if token, ok := s.CachedToken(pageURL); ok {
		return token, true
	}

	v, err, _ := s.flight.Do(pageURL, func() (any, error) {
		if token, ok := s.cachedExact(pageURL); ok {
			return token, nil
		}

		body, final, _, err := s.get(ctx, pageURL)
		if err != nil {
			return "", err
		}

		tokens := crawler.FindCSRFTokens(string(body), final)
		if len(tokens) == 0 {
			return "", nil
		}
		s.UpdateToken(pageURL, tokens[0].Value)
		return tokens[0].Value, nil
	})
	if err != nil {
		s.logger.Debug("csrf token fetch failed", "url", pageURL, "error", err)
		return "", false
	}

	token, _ := v.(string)
	return token, token != ""
}

// CachedToken looks pageURL up in the cache without fetching: exact URL
// first, then the URL's domain.
func (s *Session) CachedToken(pageURL string) (string, bool) {
	if token, ok := s.cachedExact(pageURL); ok {
		return token, true
	}

	key := domainKey(pageURL)
	if key == "" {
		return "", false
	}

	s.tokenMu.RLock()
	defer s.tokenMu.RUnlock()
	token, ok := s.tokens[key]
	return token, ok
}

func (s *Session) cachedExact(pageURL string) (string, bool) {
	s.tokenMu.RLock()
	defer s.tokenMu.RUnlock()
	token, ok := s.tokens[pageURL]
	return token, ok
}

// UpdateToken stores token for pageURL and for its domain.
func (s *Session) UpdateToken(pageURL, token string) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	s.tokens[pageURL] = token
	if key := domainKey(pageURL); key != "" {
		s.tokens[key] = token
	}
}

// domainKey is the cache key shared by every URL on a domain. URLs are
// always absolute, so the "domain:" prefix cannot collide with them.
func domainKey(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return "domain:" + strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
