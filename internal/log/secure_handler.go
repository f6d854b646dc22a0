package log

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces every redacted value.
const MaskValue = "***REDACTED***"

// secretNames are attribute keys, header names and query parameters whose
// value is always masked. Matching is case-insensitive.
var secretNames = map[string]struct{}{
	"authorization":              {},
	"proxy-authorization":        {},
	"cookie":                     {},
	"set-cookie":                 {},
	"x-api-key":                  {},
	"x-auth-token":               {},
	"x-csrf-token":               {},
	"x-xsrf-token":               {},
	"password":                   {},
	"passwd":                     {},
	"pwd":                        {},
	"secret":                     {},
	"token":                      {},
	"access_token":               {},
	"refresh_token":              {},
	"id_token":                   {},
	"api_key":                    {},
	"apikey":                     {},
	"api-key":                    {},
	"client_secret":              {},
	"private_key":                {},
	"csrf":                       {},
	"csrf_token":                 {},
	"csrfmiddlewaretoken":        {},
	"authenticity_token":         {},
	"__requestverificationtoken": {},
	"_token":                     {},
	"session":                    {},
	"session_id":                 {},
	"sessionid":                  {},
	"sid":                        {},
	"jsessionid":                 {},
	"phpsessid":                  {},
	"credentials":                {},
}

// secretFragments mark a name as secret when they occur anywhere in it.
// "key" and "auth" are left out: they would hide "primary_key",
// "auth_mode" and "authenticated".
var secretFragments = []string{
	"password", "passwd", "secret", "token", "csrf", "xsrf",
	"credential", "private", "cookie", "session",
}

// secretValues match values that are credentials whatever their key.
var secretValues = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// isSecretName reports whether a key, header or query parameter name
// carries a secret.
func isSecretName(name string) bool {
	name = strings.ToLower(name)
	if _, ok := secretNames[name]; ok {
		return true
	}
	for _, fragment := range secretFragments {
		if strings.Contains(name, fragment) {
			return true
		}
	}
	return false
}

func isSecretValue(value string) bool {
	for _, re := range secretValues {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// SecureHandler wraps an slog.Handler and masks secrets before records
// reach it.
//
// An attribute is masked when its key names a secret or its string value
// looks like one. URLs keep their scheme, host and path; the password in
// their user info and the values of secret query parameters are masked.
// http.Header values are logged as a group with secret headers masked.
type SecureHandler struct {
	next slog.Handler
}

// NewSecureHandler wraps next. A nil next wraps slog.Default().Handler().
func NewSecureHandler(next slog.Handler) *SecureHandler {
	if next == nil {
		next = slog.Default().Handler()
	}
	return &SecureHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		clean = append(clean, redact(a))
	}
	return &SecureHandler{next: h.next.WithAttrs(clean)}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{next: h.next.WithGroup(name)}
}

// redact returns a with every secret masked, descending into groups.
func redact(a slog.Attr) slog.Attr {
	// LogValuers such as config.AuthConfig choose their own shape first.
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		clean := make([]slog.Attr, 0, len(group))
		for _, ga := range group {
			clean = append(clean, redact(ga))
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}

	case slog.KindAny:
		if header, ok := a.Value.Any().(http.Header); ok {
			return slog.Attr{Key: a.Key, Value: headerValue(header)}
		}
	}

	// Flags such as has_password say nothing about the secret itself.
	if isSecretName(a.Key) && a.Value.Kind() != slog.KindBool {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString {
		s := a.Value.String()
		if isSecretValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if clean, ok := redactURL(s); ok {
			return slog.String(a.Key, clean)
		}
	}
	return a
}

// headerValue renders a header as a group, one attribute per header name.
func headerValue(header http.Header) slog.Value {
	attrs := make([]slog.Attr, 0, len(header))
	for name, values := range header {
		v := strings.Join(values, ", ")
		if isSecretName(name) || isSecretValue(v) {
			v = MaskValue
		}
		attrs = append(attrs, slog.String(name, v))
	}
	return slog.GroupValue(attrs...)
}

// redactURL masks the user info password and secret query values of an
// http(s) URL. It reports false when value is not such a URL or holds no
// secret.
func redactURL(value string) (string, bool) {
	lower := strings.ToLower(value)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", false
	}
	if !strings.ContainsAny(value, "@?") {
		return "", false
	}
	u, err := url.Parse(value)
	if err != nil {
		return "", false
	}

	changed := false
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			changed = true
		}
	}
	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if isSecretName(name) {
				q.Set(name, MaskValue)
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}
	if !changed {
		return "", false
	}
	return u.String(), true
}

// NewSecureLogger returns a text logger writing to w through a
// SecureHandler. verbose selects Debug level instead of Warn.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output, for log
// aggregation.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
