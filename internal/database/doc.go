// Package database stores scans and their crawl results.
//
// CrawlDB keeps four tables:
//
//	scans            one row per crawl: seed, status, last stats
//	discovered_urls  every fetched URL, unique per scan
//	forms            forms found on a URL
//	technologies     the fingerprint of a URL
//
// SQLite (modernc.org/sqlite, no cgo) is the default backend and lives in
// the XDG data directory. OpenPostgres uses github.com/lib/pq for shared
// deployments. Queries are written once with "?" placeholders and rebound
// for PostgreSQL.
//
// ForScan returns a ScanSink, the model.Sink a crawl writes into.
package database
