package model

import "time"

// CrawlStats is a point-in-time snapshot of a crawl's counters.
// Counters never decrease during a run.
type CrawlStats struct {
	// URLsDiscovered counts links accepted into the frontier (the seed is not counted).
	URLsDiscovered int64 `json:"urls_discovered"`

	// URLsCrawled counts successful fetches.
	URLsCrawled int64 `json:"urls_crawled"`

	// FormsFound counts forms extracted from crawled pages.
	FormsFound int64 `json:"forms_found"`

	// TechnologiesDetected counts technology facts reported by fingerprinting.
	TechnologiesDetected int64 `json:"technologies_detected"`

	// Errors counts transport failures, persistence failures and
	// unexpected failures while processing a single URL.
	Errors int64 `json:"errors"`

	// StartTime is when the crawl started.
	StartTime time.Time `json:"start_time"`

	// EndTime is nil until the crawl completes.
	EndTime *time.Time `json:"end_time,omitempty"`
}

// Duration returns the elapsed crawl time. For a crawl that is still running
// it is measured against now.
func (s CrawlStats) Duration() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// Completed reports whether the crawl has finished.
func (s CrawlStats) Completed() bool {
	return s.EndTime != nil
}

// ScanStatus is the lifecycle state of a scan as seen by the scan record.
type ScanStatus string

const (
	// ScanStatusPending is a scan that has been created but not started.
	ScanStatusPending ScanStatus = "pending"
	// ScanStatusRunning is a scan whose workers are crawling.
	ScanStatusRunning ScanStatus = "running"
	// ScanStatusStopping is a scan that was asked to stop and is draining.
	ScanStatusStopping ScanStatus = "stopping"
	// ScanStatusCompleted is a scan whose frontier was exhausted or whose limits were hit.
	ScanStatusCompleted ScanStatus = "completed"
	// ScanStatusCancelled is a scan that ended because of a stop request.
	ScanStatusCancelled ScanStatus = "cancelled"
	// ScanStatusFailed is a scan rejected before any crawl activity.
	ScanStatusFailed ScanStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s ScanStatus) Terminal() bool {
	switch s {
	case ScanStatusCompleted, ScanStatusCancelled, ScanStatusFailed:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (s ScanStatus) String() string {
	return string(s)
}
