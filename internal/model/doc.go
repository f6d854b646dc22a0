// Package model defines the data shared by the crawler, its persistence
// sinks and the report writers.
//
// The main types are:
//   - CrawlStats: the counters of a crawl, and ScanStatus, its lifecycle
//   - DiscoveredURL: the record stored for every fetched URL
//   - ExtractedForm: a form with its fields and CSRF tokens
//   - TechnologyFingerprint: the detected software stack of a response
//   - Sink: where a crawl writes everything it finds
//   - CrawlSummary: the end-of-run view rendered by reports
//
// Every type is JSON-serializable for reports and database columns.
package model
