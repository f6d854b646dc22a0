// Package techdetect fingerprints the software stack behind an HTTP response.
//
// Detector.Analyze looks at response headers, cookies and the HTML body and
// reports the web server, programming language, framework, CMS, JavaScript
// libraries, CSS frameworks and CDN it recognizes, together with the
// security headers that are present.
//
// # Matching
//
// All signatures are case-insensitive and compiled once at package
// initialization. Header names are compared case-insensitively even when the
// caller builds an http.Header by hand with non-canonical keys.
//
// # Graceful degradation
//
// Analyze never fails. An empty or malformed body simply yields fewer
// detections; a response with nothing recognizable yields a zero
// TechnologyFingerprint.
package techdetect
