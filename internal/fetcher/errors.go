package fetcher

import "errors"

var (
	// ErrRobotsDisallowed is returned when robots.txt forbids the URL.
	// It is a policy decision, not a failure.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

	// ErrTransport wraps network failures (timeouts, refused or reset
	// connections, DNS errors) that persisted after all retries.
	ErrTransport = errors.New("transport error")

	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid URL")
)
