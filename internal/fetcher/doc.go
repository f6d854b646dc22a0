// Package fetcher retrieves pages for the crawler while enforcing crawl
// etiquette.
//
// Every request passes through the same sequence of gates:
//
//  1. robots.txt check (when enabled), cached per host for the crawl
//  2. per-host gate: a concurrency bound plus the robots Crawl-delay spacing
//  3. global concurrency bound
//  4. global token bucket (requests_per_second)
//
// Transient transport failures are retried with exponential backoff. Bodies
// are decoded (gzip, deflate, brotli) and truncated at the configured size.
// Responses whose content type is not HTML or text are still returned, but
// are marked as not processable so callers skip parsing them.
//
// A Fetcher and the http.Client it wraps belong to a single crawl. The
// cookie jar in the client is shared with the authentication session so
// that login cookies are sent on every crawl request.
package fetcher
