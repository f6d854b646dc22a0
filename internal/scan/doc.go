// Package scan is the invocation boundary of the crawler.
//
// A Task runs one crawl for one scan record: it validates the
// configuration, builds the HTTP client, authentication session, fetcher
// and spider for it, and keeps a report.Collector in front of the sink so
// a summary is available when the crawl ends. StopCrawl may be called from
// another goroutine, typically a signal handler or a job scheduler.
//
// BatchRunner crawls several seeds at once with a bounded number of
// concurrent Tasks. Each seed gets its own Task and sink; a failing seed
// never stops the others.
package scan
