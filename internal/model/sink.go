package model

import "context"

// Sink receives everything a crawl discovers. One Sink is scoped to one scan,
// so implementations know which scan record to update.
//
// The crawler treats every error returned by a Sink as a counted,
// non-fatal failure: the crawl always continues.
type Sink interface {
	// SaveDiscoveredURL persists a fetched URL and returns its record id.
	SaveDiscoveredURL(ctx context.Context, record *DiscoveredURL) (int64, error)

	// SaveForms persists the forms found on the page identified by urlID.
	SaveForms(ctx context.Context, urlID int64, forms []ExtractedForm) error

	// SaveTechnology persists the fingerprint of the page identified by urlID.
	SaveTechnology(ctx context.Context, urlID int64, fingerprint *TechnologyFingerprint) error

	// UpdateScanStatus records a lifecycle transition.
	UpdateScanStatus(ctx context.Context, status ScanStatus) error

	// UpdateScanStats records the latest counters.
	UpdateScanStats(ctx context.Context, stats CrawlStats) error
}

// NopSink discards everything. Record ids are always zero.
type NopSink struct{}

var _ Sink = NopSink{}

// SaveDiscoveredURL implements Sink.
func (NopSink) SaveDiscoveredURL(context.Context, *DiscoveredURL) (int64, error) { return 0, nil }

// SaveForms implements Sink.
func (NopSink) SaveForms(context.Context, int64, []ExtractedForm) error { return nil }

// SaveTechnology implements Sink.
func (NopSink) SaveTechnology(context.Context, int64, *TechnologyFingerprint) error { return nil }

// UpdateScanStatus implements Sink.
func (NopSink) UpdateScanStatus(context.Context, ScanStatus) error { return nil }

// UpdateScanStats implements Sink.
func (NopSink) UpdateScanStats(context.Context, CrawlStats) error { return nil }
