package model

// CrawlSummary is the end-of-run view of a scan used by report writers.
type CrawlSummary struct {
	ScanID  string     `json:"scan_id"`
	SeedURL string     `json:"seed_url"`
	Status  ScanStatus `json:"status"`
	Stats   CrawlStats `json:"stats"`

	// Technologies groups every distinct value seen during the crawl by
	// category ("server", "language", "framework", "cms", "javascript",
	// "css", "cdn"). Values are sorted.
	Technologies map[string][]string `json:"technologies,omitempty"`

	// MissingSecurityHeaders lists checklist headers absent from at least
	// one crawled page, sorted.
	MissingSecurityHeaders []string `json:"missing_security_headers,omitempty"`

	// Forms are all forms found, in discovery order.
	Forms []ExtractedForm `json:"forms,omitempty"`

	// PagesWithErrors lists URLs that answered with a 4xx or 5xx status.
	PagesWithErrors []string `json:"pages_with_errors,omitempty"`
}
