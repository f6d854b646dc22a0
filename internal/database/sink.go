package database

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/krishna0605/vulnscanner-sub001/internal/model"
)

// ScanSink writes one scan's discoveries to a CrawlDB.
// It is safe for concurrent use by crawl workers.
type ScanSink struct {
	db     *CrawlDB
	scanID int64
}

var _ model.Sink = (*ScanSink)(nil)

// ForScan returns a Sink bound to scanID.
func (cdb *CrawlDB) ForScan(scanID int64) *ScanSink {
	return &ScanSink{db: cdb, scanID: scanID}
}

// ScanID returns the id the sink writes to.
func (s *ScanSink) ScanID() int64 {
	return s.scanID
}

// SaveDiscoveredURL implements model.Sink. A URL stored twice for the same
// scan keeps its id and takes the latest response details.
func (s *ScanSink) SaveDiscoveredURL(ctx context.Context, record *model.DiscoveredURL) (int64, error) {
	var id int64
	err := s.db.queryRow(ctx, `
	INSERT INTO discovered_urls (scan_id, url, parent_url, method, status_code, content_type,
	                             content_length, response_time_ms, page_title, depth, discovered_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (scan_id, url) DO UPDATE SET
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		content_length = excluded.content_length,
		response_time_ms = excluded.response_time_ms,
		page_title = excluded.page_title
	RETURNING id
	`,
		s.scanID,
		record.URL,
		record.ParentURL,
		record.Method,
		record.StatusCode,
		record.ContentType,
		record.ContentLength,
		record.ResponseTimeMS,
		record.PageTitle,
		record.Depth,
		formatTime(record.DiscoveredAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save url %s: %w", record.URL, translateError(err))
	}
	return id, nil
}

// SaveForms implements model.Sink. The forms are written in one transaction.
func (s *ScanSink) SaveForms(ctx context.Context, urlID int64, forms []model.ExtractedForm) error {
	if len(forms) == 0 {
		return nil
	}

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.db.rebind(`
	INSERT INTO forms (url_id, action, method, fields_json, csrf_tokens_json, authentication_required)
	VALUES (?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare form insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range forms {
		fieldsJSON, err := json.Marshal(f.Fields)
		if err != nil {
			return fmt.Errorf("failed to serialize fields: %w", err)
		}
		csrfJSON, err := json.Marshal(f.CSRFTokens)
		if err != nil {
			return fmt.Errorf("failed to serialize csrf tokens: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, urlID, f.Action, f.Method,
			string(fieldsJSON), string(csrfJSON), f.AuthenticationRequired); err != nil {
			return fmt.Errorf("failed to save form %s: %w", f.Action, translateError(err))
		}
	}

	return tx.Commit()
}

// SaveTechnology implements model.Sink.
func (s *ScanSink) SaveTechnology(ctx context.Context, urlID int64, fp *model.TechnologyFingerprint) error {
	jsJSON, err := json.Marshal(fp.JavaScriptLibraries)
	if err != nil {
		return fmt.Errorf("failed to serialize libraries: %w", err)
	}
	cssJSON, err := json.Marshal(fp.CSSFrameworks)
	if err != nil {
		return fmt.Errorf("failed to serialize css frameworks: %w", err)
	}
	headersJSON, err := json.Marshal(fp.SecurityHeaders)
	if err != nil {
		return fmt.Errorf("failed to serialize security headers: %w", err)
	}

	_, err = s.db.exec(ctx, `
	INSERT INTO technologies (url_id, server_software, programming_language, framework, cms,
	                          javascript_libraries_json, css_frameworks_json, cdn, security_headers_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		urlID,
		fp.ServerSoftware,
		fp.ProgrammingLanguage,
		fp.Framework,
		fp.CMS,
		string(jsJSON),
		string(cssJSON),
		fp.CDN,
		string(headersJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save technology: %w", translateError(err))
	}
	return nil
}

// UpdateScanStatus implements model.Sink.
func (s *ScanSink) UpdateScanStatus(ctx context.Context, status model.ScanStatus) error {
	return s.updateScan(ctx, `UPDATE scans SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), s.scanID)
}

// UpdateScanStats implements model.Sink.
func (s *ScanSink) UpdateScanStats(ctx context.Context, stats model.CrawlStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to serialize stats: %w", err)
	}
	return s.updateScan(ctx, `UPDATE scans SET stats_json = ?, updated_at = ? WHERE id = ?`,
		string(statsJSON), formatTime(time.Now()), s.scanID)
}

func (s *ScanSink) updateScan(ctx context.Context, query string, args ...any) error {
	res, err := s.db.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update scan: %w", translateError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrScanNotFound, s.scanID)
	}
	return nil
}

// hostOf returns the lower-cased host of a seed, or the seed itself when it
// has none.
func hostOf(seed string) string {
	u, err := url.Parse(seed)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(seed)
	}
	return strings.ToLower(u.Hostname())
}
