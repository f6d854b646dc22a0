// Package urlnorm canonicalizes and filters URLs for the crawler.
//
// Every URL that enters the frontier passes through Normalize first, so two
// spellings of the same resource (scheme case, default port, trailing slash,
// fragment, tracking parameters, query order) collapse to a single key in the
// visited set.
//
// # Policy, not errors
//
// None of the functions in this package return errors. Malformed input is
// returned unchanged by Normalize and rejected by IsValid, so callers only
// need one check before enqueueing a link:
//
//	n := urlnorm.Normalize(link)
//	if !urlnorm.IsValid(n) {
//		return
//	}
//
// # Scope
//
// Matcher combines the include and exclude pattern lists of a scan
// configuration. Patterns are regular expressions; a pattern also matches when
// it occurs literally in the URL, so plain strings such as "/admin" work as
// substring filters.
package urlnorm
