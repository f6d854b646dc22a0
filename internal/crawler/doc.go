// Package crawler implements the crawl engine of vulncrawl.
//
// # Architecture
//
// The Spider coordinates a crawl. It seeds a FIFO Frontier with the
// canonical seed URL at depth 0 and runs a fixed pool of workers over it.
// Each worker takes the oldest entry, fetches it through a PageFetcher,
// extracts links, forms and CSRF tokens with the Parser, fingerprints the
// response and pushes accepted links back at depth+1.
//
//	seed -> Frontier -> worker -> Fetcher -> Parser -> Fingerprinter
//	           ^                                |
//	           +------ canonical, in scope -----+
//
// Results are handed to a model.Sink as they are found.
//
// # Limits
//
//   - max_depth: links found at max_depth are never enqueued
//   - max_pages: a fetch reserves one unit of the page budget before it is
//     sent; the reservation is returned if the fetch fails or its redirect
//     leaves scope. A worker that finds every unit reserved waits until one
//     is spent or returned.
//   - the VisitedSet admits a canonical URL once, so no URL is fetched twice
//
// # Failure handling
//
// Only configuration errors are returned by Start. Transport failures,
// sink failures and panics while processing a URL are counted in the
// stats and the crawl continues. Robots rejections and URLs out of scope
// are skipped silently.
//
// # Usage
//
//	spider := crawler.NewSpider(cfg, fetcher.New(cfg, client), sink,
//		crawler.WithSession(session),
//	)
//	stats, err := spider.Start(ctx, "https://example.com")
//
// Stop may be called from another goroutine; it returns once in-flight
// fetches have completed.
package crawler
