package config

import "errors"

// Configuration validation errors.
// These errors are returned by ScanConfiguration.Validate() and describe
// which field is out of range. Callers use errors.Is() to tell them apart.
var (
	// ErrInvalidMaxDepth is returned when max_depth is less than 1.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be at least 1")

	// ErrInvalidMaxPages is returned when max_pages is less than 1.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be at least 1")

	// ErrInvalidRate is returned when requests_per_second is not a positive, finite number.
	ErrInvalidRate = errors.New("invalid requests per second: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when max_concurrent_requests or
	// per_host_concurrency is less than 1.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be at least 1")

	// ErrInvalidRetries is returned when max_retries or retry_backoff is negative.
	ErrInvalidRetries = errors.New("invalid retry settings: must be non-negative")

	// ErrInvalidMaxBodySize is returned when max_body_size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrEmptyUserAgent is returned when user_agent is blank.
	ErrEmptyUserAgent = errors.New("invalid user agent: must not be empty")

	// ErrInvalidPattern is returned when a scope or exclude pattern is not a
	// valid regular expression.
	ErrInvalidPattern = errors.New("invalid scope pattern")

	// ErrInvalidAuthMode is returned for an authentication mode other than
	// none, form, basic or bearer.
	ErrInvalidAuthMode = errors.New("invalid authentication mode: must be none, form, basic or bearer")

	// ErrMissingLoginURL is returned when form authentication has no login URL.
	ErrMissingLoginURL = errors.New("form authentication requires a login url")

	// ErrMissingCredentials is returned when form or basic authentication
	// lacks a username or password.
	ErrMissingCredentials = errors.New("authentication requires a username and password")

	// ErrMissingToken is returned when bearer authentication has no token.
	ErrMissingToken = errors.New("bearer authentication requires a token")
)
