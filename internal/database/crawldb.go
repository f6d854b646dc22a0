package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
	"github.com/krishna0605/vulnscanner-sub001/internal/model"
)

// dbFileName is the SQLite file created inside the data directory.
const dbFileName = "vulncrawl.db"

// dialect captures the few SQL differences between SQLite and PostgreSQL.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// CrawlDB stores scans and everything their crawls discover.
// Both the SQLite and the PostgreSQL backends share this type; only the
// schema and the placeholder style differ.
type CrawlDB struct {
	db      *sql.DB
	dialect dialect

	// dbPath is empty for PostgreSQL.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the
	// crawl's writer.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the SQLite database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist,
// ErrDatabaseNotFound is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, dbFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; every crawl worker shares this connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:      db,
		dialect: dialectSQLite,
		dbPath:  dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the SQLite file path, or "" for PostgreSQL.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the schema if it doesn't exist.
func (cdb *CrawlDB) createTables(ctx context.Context) error {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ref := "INTEGER"
	if cdb.dialect == dialectPostgres {
		id = "BIGSERIAL PRIMARY KEY"
		ref = "BIGINT"
	}

	// Timestamps are RFC 3339 text in UTC in both dialects.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			id ` + id + `,
			seed_url TEXT NOT NULL,
			host TEXT NOT NULL,
			status TEXT NOT NULL,
			config_json TEXT,
			stats_json TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_host ON scans(host)`,

		`CREATE TABLE IF NOT EXISTS discovered_urls (
			id ` + id + `,
			scan_id ` + ref + ` NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			parent_url TEXT,
			method TEXT NOT NULL,
			status_code INTEGER,
			content_type TEXT,
			content_length ` + ref + `,
			response_time_ms ` + ref + `,
			page_title TEXT,
			depth INTEGER,
			discovered_at TEXT NOT NULL,
			UNIQUE(scan_id, url)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_urls_scan ON discovered_urls(scan_id)`,

		`CREATE TABLE IF NOT EXISTS forms (
			id ` + id + `,
			url_id ` + ref + ` NOT NULL REFERENCES discovered_urls(id) ON DELETE CASCADE,
			action TEXT NOT NULL,
			method TEXT NOT NULL,
			fields_json TEXT,
			csrf_tokens_json TEXT,
			authentication_required BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forms_url ON forms(url_id)`,

		`CREATE TABLE IF NOT EXISTS technologies (
			id ` + id + `,
			url_id ` + ref + ` NOT NULL REFERENCES discovered_urls(id) ON DELETE CASCADE,
			server_software TEXT,
			programming_language TEXT,
			framework TEXT,
			cms TEXT,
			javascript_libraries_json TEXT,
			css_frameworks_json TEXT,
			cdn TEXT,
			security_headers_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_technologies_url ON technologies(url_id)`,
	}

	for _, stmt := range stmts {
		if _, err := cdb.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites "?" placeholders into the dialect's style.
func (cdb *CrawlDB) rebind(query string) string {
	if cdb.dialect != dialectPostgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (cdb *CrawlDB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return cdb.db.ExecContext(ctx, cdb.rebind(query), args...)
}

func (cdb *CrawlDB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return cdb.db.QueryContext(ctx, cdb.rebind(query), args...)
}

func (cdb *CrawlDB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return cdb.db.QueryRowContext(ctx, cdb.rebind(query), args...)
}

// ScanRecord is a stored scan.
type ScanRecord struct {
	ID        int64
	SeedURL   string
	Host      string
	Status    model.ScanStatus
	Config    config.ScanConfiguration
	Stats     model.CrawlStats
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateScan inserts a pending scan for seed and returns its id.
func (cdb *CrawlDB) CreateScan(ctx context.Context, seed string, cfg config.ScanConfiguration) (int64, error) {
	// Credentials are never persisted.
	stored := cfg.Clone()
	stored.Authentication.Password = ""
	stored.Authentication.Token = ""

	cfgJSON, err := json.Marshal(stored)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize configuration: %w", err)
	}

	now := formatTime(time.Now())
	var id int64
	err = cdb.queryRow(ctx, `
	INSERT INTO scans (seed_url, host, status, config_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	RETURNING id
	`, seed, hostOf(seed), string(model.ScanStatusPending), string(cfgJSON), now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create scan: %w", translateError(err))
	}
	return id, nil
}

// GetScan returns the scan with the given id, or ErrScanNotFound.
func (cdb *CrawlDB) GetScan(ctx context.Context, id int64) (*ScanRecord, error) {
	row := cdb.queryRow(ctx, `
	SELECT id, seed_url, host, status, config_json, stats_json, created_at, updated_at
	FROM scans WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrScanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return rec, nil
}

// ListScans returns scans newest first. A non-empty host restricts the
// list to scans of that host.
func (cdb *CrawlDB) ListScans(ctx context.Context, host string) ([]*ScanRecord, error) {
	q := `
	SELECT id, seed_url, host, status, config_json, stats_json, created_at, updated_at
	FROM scans`
	var args []any
	if host != "" {
		q += ` WHERE host = ?`
		args = append(args, strings.ToLower(host))
	}
	q += ` ORDER BY id DESC`

	rows, err := cdb.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var out []*ScanRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*ScanRecord, error) {
	var (
		rec                  ScanRecord
		status               string
		cfgJSON, statsJSON   sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.SeedURL, &rec.Host, &status, &cfgJSON, &statsJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.Status = model.ScanStatus(status)
	rec.CreatedAt = parseTimestamp(createdAt)
	rec.UpdatedAt = parseTimestamp(updatedAt)

	// Malformed JSON leaves the zero value rather than hiding the scan.
	if cfgJSON.Valid && cfgJSON.String != "" {
		_ = json.Unmarshal([]byte(cfgJSON.String), &rec.Config)
	}
	if statsJSON.Valid && statsJSON.String != "" {
		_ = json.Unmarshal([]byte(statsJSON.String), &rec.Stats)
	}
	return &rec, nil
}

// ListDiscoveredURLs returns the URLs a scan fetched, in fetch order.
func (cdb *CrawlDB) ListDiscoveredURLs(ctx context.Context, scanID int64) ([]model.DiscoveredURL, error) {
	rows, err := cdb.query(ctx, `
	SELECT url, parent_url, method, status_code, content_type, content_length,
	       response_time_ms, page_title, depth, discovered_at
	FROM discovered_urls WHERE scan_id = ? ORDER BY id
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	defer rows.Close()

	var out []model.DiscoveredURL
	for rows.Next() {
		var (
			u                     model.DiscoveredURL
			parent, ct, title, at sql.NullString
		)
		if err := rows.Scan(&u.URL, &parent, &u.Method, &u.StatusCode, &ct, &u.ContentLength,
			&u.ResponseTimeMS, &title, &u.Depth, &at); err != nil {
			return nil, fmt.Errorf("failed to read url: %w", err)
		}
		u.ParentURL = parent.String
		u.ContentType = ct.String
		u.PageTitle = title.String
		u.DiscoveredAt = parseTimestamp(at.String)
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListForms returns every form found during a scan.
func (cdb *CrawlDB) ListForms(ctx context.Context, scanID int64) ([]model.ExtractedForm, error) {
	rows, err := cdb.query(ctx, `
	SELECT f.action, f.method, f.fields_json, f.csrf_tokens_json, f.authentication_required
	FROM forms f JOIN discovered_urls u ON u.id = f.url_id
	WHERE u.scan_id = ? ORDER BY f.id
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	defer rows.Close()

	var out []model.ExtractedForm
	for rows.Next() {
		var (
			f                    model.ExtractedForm
			fieldsJSON, csrfJSON sql.NullString
		)
		if err := rows.Scan(&f.Action, &f.Method, &fieldsJSON, &csrfJSON, &f.AuthenticationRequired); err != nil {
			return nil, fmt.Errorf("failed to read form: %w", err)
		}
		_ = json.Unmarshal([]byte(fieldsJSON.String), &f.Fields)
		if csrfJSON.String != "" {
			_ = json.Unmarshal([]byte(csrfJSON.String), &f.CSRFTokens)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListTechnologies returns the fingerprints of a scan keyed by page URL.
func (cdb *CrawlDB) ListTechnologies(ctx context.Context, scanID int64) (map[string]model.TechnologyFingerprint, error) {
	rows, err := cdb.query(ctx, `
	SELECT u.url, t.server_software, t.programming_language, t.framework, t.cms,
	       t.javascript_libraries_json, t.css_frameworks_json, t.cdn, t.security_headers_json
	FROM technologies t JOIN discovered_urls u ON u.id = t.url_id
	WHERE u.scan_id = ? ORDER BY t.id
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list technologies: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.TechnologyFingerprint)
	for rows.Next() {
		var (
			pageURL                      string
			server, lang, fw, cms, cdn   sql.NullString
			jsJSON, cssJSON, headersJSON sql.NullString
		)
		if err := rows.Scan(&pageURL, &server, &lang, &fw, &cms, &jsJSON, &cssJSON, &cdn, &headersJSON); err != nil {
			return nil, fmt.Errorf("failed to read technology: %w", err)
		}
		fp := model.TechnologyFingerprint{
			ServerSoftware:      server.String,
			ProgrammingLanguage: lang.String,
			Framework:           fw.String,
			CMS:                 cms.String,
			CDN:                 cdn.String,
		}
		unmarshalIfSet(jsJSON, &fp.JavaScriptLibraries)
		unmarshalIfSet(cssJSON, &fp.CSSFrameworks)
		unmarshalIfSet(headersJSON, &fp.SecurityHeaders)
		out[pageURL] = fp
	}
	return out, rows.Err()
}

func unmarshalIfSet(s sql.NullString, v any) {
	if s.Valid && s.String != "" && s.String != "null" {
		_ = json.Unmarshal([]byte(s.String), v)
	}
}

// DeleteScan removes a scan and everything it discovered.
func (cdb *CrawlDB) DeleteScan(ctx context.Context, id int64) error {
	res, err := cdb.exec(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrScanNotFound, id)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
