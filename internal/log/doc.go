// Package log builds slog loggers that never print secrets.
//
// A crawler that logs in to the application it scans handles passwords,
// bearer tokens, session cookies and anti-forgery tokens, and meets them
// again in URLs and response headers. SecureHandler masks them before any
// record is written:
//   - attributes whose key names a secret (password, token, cookie, csrf...)
//   - values shaped like credentials (JWTs, Bearer and Basic headers)
//   - URL passwords and secret query parameters (?token=..., ?PHPSESSID=...)
//   - secret entries of an http.Header logged as a value
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetched", "url", "https://app.example.com/?sid=abc") // sid=***REDACTED***
package log
