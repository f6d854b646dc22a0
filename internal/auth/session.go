package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/singleflight"

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
	"github.com/krishna0605/vulnscanner-sub001/internal/crawler"
	"github.com/krishna0605/vulnscanner-sub001/internal/model"
	"github.com/krishna0605/vulnscanner-sub001/internal/urlnorm"
)

const (
	// maxPageSize bounds login and token page bodies.
	maxPageSize = 2 * 1024 * 1024

	// maxReauthentications bounds automatic logins after session expiry,
	// so a page that always answers 403 cannot trigger a login per fetch.
	maxReauthentications = 3
)

// State is the authentication state of a Session.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session holds credentials, login state and the CSRF token cache of a crawl.
// It is safe for concurrent use.
type Session struct {
	client *http.Client
	logger *slog.Logger

	mu      sync.RWMutex
	state   State
	cfg     config.AuthConfig
	baseURL string
	reauths int

	// gen counts successful logins. A request remembers the generation it
	// was sent with so a late challenge does not log in a second time.
	gen     uint64
	relogin singleflight.Group

	tokenMu sync.RWMutex
	tokens  map[string]string
	flight  singleflight.Group
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates an anonymous session that sends requests with client.
// client should share its cookie jar with the crawl's fetcher.
func NewSession(client *http.Client, opts ...Option) *Session {
	if client == nil {
		client = &http.Client{}
	}
	s := &Session{
		client: client,
		logger: slog.Default(),
		tokens: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Authenticated reports whether the session is in the Authenticated state.
func (s *Session) Authenticated() bool {
	return s.State() == Authenticated
}

// Mode returns the configured authentication mode.
func (s *Session) Mode() config.AuthMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Mode
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// authenticated moves to Authenticated and starts a new login generation.
func (s *Session) authenticated() {
	s.mu.Lock()
	s.state = Authenticated
	s.gen++
	s.mu.Unlock()
}

// Generation returns the number of successful logins so far.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Configure stores cfg for a crawl of baseURL and, unless the mode is none,
// logs in before returning. It reports whether the session ended up
// authenticated. Failures are logged, never returned.
func (s *Session) Configure(ctx context.Context, cfg config.AuthConfig, baseURL string) bool {
	s.mu.Lock()
	s.cfg = cfg
	s.baseURL = baseURL
	s.state = Anonymous
	s.reauths = 0
	s.mu.Unlock()

	if !cfg.Enabled() {
		return false
	}

	if err := s.Login(ctx); err != nil {
		s.logger.Warn("authentication failed, continuing unauthenticated",
			"auth", cfg,
			"error", err,
		)
		return false
	}

	s.logger.Info("authenticated", "mode", string(cfg.Mode))
	return true
}

// Login authenticates with the configured mode.
func (s *Session) Login(ctx context.Context) error {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	switch cfg.Mode {
	case config.AuthModeForm:
		if cfg.LoginURL == "" || cfg.Username == "" || cfg.Password == "" {
			return ErrIncompleteConfig
		}
		return s.formLogin(ctx, cfg)

	case config.AuthModeBasic:
		if cfg.Username == "" || cfg.Password == "" {
			return ErrIncompleteConfig
		}
		s.authenticated()
		return nil

	case config.AuthModeBearer:
		if cfg.Token == "" {
			return ErrIncompleteConfig
		}
		s.authenticated()
		return nil

	default:
		return nil
	}
}

// Logout drops the authenticated state and the CSRF token cache.
func (s *Session) Logout() {
	s.setState(Anonymous)

	s.tokenMu.Lock()
	clear(s.tokens)
	s.tokenMu.Unlock()
}

// Apply attaches basic or bearer credentials to req when the session is
// authenticated and req targets the crawled domain. It returns the login
// generation req was sent under, to be passed back to HandleChallenge; zero
// means the session is anonymous.
func (s *Session) Apply(req *http.Request) uint64 {
	s.mu.RLock()
	state, cfg, base, gen := s.state, s.cfg, s.baseURL, s.gen
	s.mu.RUnlock()

	if state == Anonymous {
		return 0
	}
	if state != Authenticated || !urlnorm.IsSameDomain(req.URL.String(), base) {
		return gen
	}

	switch cfg.Mode {
	case config.AuthModeBasic:
		req.SetBasicAuth(cfg.Username, cfg.Password)
	case config.AuthModeBearer:
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}
	return gen
}

// HandleChallenge treats a 401 or 403 on a request sent under login
// generation gen as an expired session. It reports whether the request
// should be sent again.
//
// Concurrent challenges share one login. A challenge for a generation that
// has already been replaced by a newer login returns true without logging
// in again. At most maxReauthentications logins are attempted per crawl.
func (s *Session) HandleChallenge(ctx context.Context, statusCode int, gen uint64) bool {
	if statusCode != http.StatusUnauthorized && statusCode != http.StatusForbidden {
		return false
	}
	if gen == 0 {
		return false
	}

	v, _, _ := s.relogin.Do("login", func() (any, error) {
		return s.reauthenticate(ctx, statusCode, gen), nil
	})
	ok, _ := v.(bool)
	return ok
}

func (s *Session) reauthenticate(ctx context.Context, statusCode int, gen uint64) bool {
	s.mu.Lock()
	if s.gen != gen && s.state == Authenticated {
		s.mu.Unlock()
		return true
	}
	if s.reauths >= maxReauthentications {
		s.mu.Unlock()
		return false
	}
	s.state = Authenticating
	s.reauths++
	attempt := s.reauths
	s.mu.Unlock()

	s.logger.Info("session challenged, re-authenticating",
		"status", statusCode,
		"attempt", attempt,
	)

	if err := s.Login(ctx); err != nil {
		s.setState(Anonymous)
		s.logger.Warn("re-authentication failed", "error", err)
		return false
	}
	return s.Authenticated()
}

// formLogin performs the form login handshake.
func (s *Session) formLogin(ctx context.Context, cfg config.AuthConfig) error {
	s.setState(Authenticating)

	err := s.submitLoginForm(ctx, cfg)
	if err != nil {
		s.setState(Anonymous)
		return err
	}

	s.authenticated()
	return nil
}

func (s *Session) submitLoginForm(ctx context.Context, cfg config.AuthConfig) error {
	s.mu.RLock()
	base := s.baseURL
	s.mu.RUnlock()

	loginURL, err := resolve(base, cfg.LoginURL)
	if err != nil {
		return fmt.Errorf("%w: invalid login URL: %w", ErrLoginFailed, err)
	}

	page, pageURL, _, err := s.get(ctx, loginURL.String())
	if err != nil {
		return fmt.Errorf("%w: fetch login page: %w", ErrLoginFailed, err)
	}

	parsed := crawler.Parse(string(page), pageURL)
	form, found := findLoginForm(parsed.Forms, cfg)

	action := loginURL.String()
	if found {
		action = form.Action
	}

	values := url.Values{}
	values.Set(cfg.UsernameFieldName(), cfg.Username)
	values.Set(cfg.PasswordFieldName(), cfg.Password)

	if token, ok := loginToken(form, parsed); ok {
		values.Set(token.Name, token.Value)
		s.UpdateToken(loginURL.String(), token.Value)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action, strings.NewReader(values.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", pageURL)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: submit login form: %w", ErrLoginFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return fmt.Errorf("%w: read login response: %w", ErrLoginFailed, err)
	}

	if !loginSucceeded(resp, body, loginURL) {
		return fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}
	return nil
}

// loginSucceeded applies the success rule: a redirect away from the login
// page, or a non-error status whose body no longer shows a login form.
func loginSucceeded(resp *http.Response, body []byte, loginURL *url.URL) bool {
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc, err := resp.Location()
		return err == nil && !samePage(loc, loginURL)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return false
	}

	if resp.Request != nil && resp.Request.Response != nil {
		// The client followed a redirect; where it ended decides.
		if !samePage(resp.Request.URL, loginURL) {
			return true
		}
	}

	return !hasLoginForm(body)
}

// hasLoginForm reports whether body still contains a password input.
func hasLoginForm(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	found := false
	doc.Find("input").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if t, _ := sel.Attr("type"); strings.EqualFold(strings.TrimSpace(t), "password") {
			found = true
			return false
		}
		return true
	})
	return found
}

// findLoginForm prefers a form with a password input, then a form with the
// configured username field.
func findLoginForm(forms []model.ExtractedForm, cfg config.AuthConfig) (model.ExtractedForm, bool) {
	for _, f := range forms {
		if f.HasPasswordField() {
			return f, true
		}
	}
	for _, f := range forms {
		if _, ok := f.Field(cfg.UsernameFieldName()); ok {
			return f, true
		}
	}
	return model.ExtractedForm{}, false
}

// loginToken picks the login form's own token, falling back to a page-level
// one. A meta token is submitted under the csrf-param name when the page
// publishes one.
func loginToken(form model.ExtractedForm, page *crawler.ParseResult) (model.CSRFToken, bool) {
	if len(form.CSRFTokens) > 0 {
		return form.CSRFTokens[0], true
	}
	if len(page.CSRFTokens) == 0 {
		return model.CSRFToken{}, false
	}
	token := page.CSRFTokens[0]
	if param := page.Meta["csrf-param"]; param != "" && token.Source == model.CSRFSourceMeta {
		token.Name = param
	}
	return token, true
}

// samePage compares host and path, ignoring query, fragment and a trailing slash.
func samePage(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Host, b.Host) &&
		strings.TrimRight(a.EscapedPath(), "/") == strings.TrimRight(b.EscapedPath(), "/")
}

func resolve(base, ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if base != "" {
		if b, err := url.Parse(base); err == nil {
			r = b.ResolveReference(r)
		}
	}
	if (r.Scheme != "http" && r.Scheme != "https") || r.Host == "" {
		return nil, fmt.Errorf("not an absolute http(s) URL: %q", ref)
	}
	return r, nil
}

// get fetches rawURL and returns its body, final URL and status.
func (s *Session) get(ctx context.Context, rawURL string) ([]byte, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", 0, err
	}
	s.Apply(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, "", 0, err
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return body, final, resp.StatusCode, nil
}
