// Package main provides the entry point for the vulncrawl CLI.
//
// vulncrawl crawls a web application the way the discovery phase of a
// vulnerability scanner does: it maps reachable pages, extracts forms and
// CSRF tokens, fingerprints the technology stack and stores everything for
// later analysis.
//
// Usage:
//
//	vulncrawl crawl https://app.example.com/
//	vulncrawl history app.example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
