package crawler

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the Spider is not Idle,
	// and by Reset while a crawl is in progress.
	ErrAlreadyRunning = errors.New("crawl already started")

	// ErrInvalidSeed describes a seed URL that cannot be crawled. It is
	// logged and counted, never returned by Start.
	ErrInvalidSeed = errors.New("invalid seed url")
)
