// Package auth keeps the authentication state of one crawl.
//
// A Session moves between three states:
//
//	Anonymous -> Authenticating -> Authenticated
//	Authenticated -> Anonymous (logout, or a 401/403 on a protected page)
//
// Form login fetches the login page, finds the login form and its CSRF
// token, and posts the configured credentials. The resulting cookies live
// in the cookie jar of the HTTP client shared with the fetcher. Basic and
// bearer modes attach a header to every request sent to the target's domain.
//
// Login failures never abort a crawl; the session stays Anonymous and the
// crawl proceeds without credentials.
//
// The session also caches CSRF tokens per URL and per domain. Concurrent
// lookups for a URL that is not cached yet share a single page fetch.
package auth
