package scan

import "errors"

var (
	// ErrInvalidConfiguration wraps the config validation error that
	// rejected a crawl before any request was sent.
	ErrInvalidConfiguration = errors.New("invalid scan configuration")

	// ErrTaskUsed is returned when StartCrawl is called twice on a Task.
	ErrTaskUsed = errors.New("task already started")
)
