package urlnorm

import (
	"fmt"
	"regexp"
	"strings"
)

// pattern is one scope or exclude rule. A rule matches when its literal text
// occurs in the URL or, if it compiled, when its regular expression matches.
type pattern struct {
	literal string
	re      *regexp.Regexp
}

func (p pattern) match(u string) bool {
	if strings.Contains(u, p.literal) {
		return true
	}
	return p.re != nil && p.re.MatchString(u)
}

// CompilePattern compiles a single scope or exclude pattern.
func CompilePattern(expr string) error {
	if _, err := regexp.Compile(expr); err != nil {
		return fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return nil
}

// lenientPatterns compiles what it can and falls back to literal matching for
// expressions that are not valid regular expressions.
func lenientPatterns(exprs []string) []pattern {
	out := make([]pattern, 0, len(exprs))
	for _, expr := range exprs {
		if expr == "" {
			continue
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			re = nil
		}
		out = append(out, pattern{literal: expr, re: re})
	}
	return out
}

func matchAny(patterns []pattern, u string) bool {
	for _, p := range patterns {
		if p.match(u) {
			return true
		}
	}
	return false
}

// InScope returns the URLs that match at least one include pattern.
// With no patterns every URL is returned.
func InScope(urls []string, include []string) []string {
	patterns := lenientPatterns(include)
	if len(patterns) == 0 {
		return append([]string(nil), urls...)
	}

	var out []string
	for _, u := range urls {
		if matchAny(patterns, u) {
			out = append(out, u)
		}
	}
	return out
}

// OutOfScope returns the URLs that match at least one exclude pattern.
func OutOfScope(urls []string, exclude []string) []string {
	patterns := lenientPatterns(exclude)

	var out []string
	for _, u := range urls {
		if matchAny(patterns, u) {
			out = append(out, u)
		}
	}
	return out
}

// Matcher decides whether a canonical URL belongs to a crawl.
// The zero value is not usable; create one with NewMatcher.
type Matcher struct {
	seed    string
	include []string
	exclude []string
}

// NewMatcher builds a Matcher for a crawl starting at seed. When include is
// empty, only URLs on the seed's host are in scope. Invalid regular
// expressions are reported as errors.
func NewMatcher(seed string, include, exclude []string) (*Matcher, error) {
	for _, expr := range append(append([]string(nil), include...), exclude...) {
		if err := CompilePattern(expr); err != nil {
			return nil, err
		}
	}
	return &Matcher{
		seed:    seed,
		include: include,
		exclude: exclude,
	}, nil
}

// Filter returns the URLs of urls that are in scope and not excluded, in
// their original order.
func (m *Matcher) Filter(urls []string) []string {
	var candidates []string
	if len(m.include) == 0 {
		for _, u := range urls {
			if IsSameDomain(u, m.seed) {
				candidates = append(candidates, u)
			}
		}
	} else {
		candidates = InScope(urls, m.include)
	}

	excluded := OutOfScope(candidates, m.exclude)
	if len(excluded) == 0 {
		return candidates
	}
	drop := make(map[string]struct{}, len(excluded))
	for _, u := range excluded {
		drop[u] = struct{}{}
	}
	out := candidates[:0]
	for _, u := range candidates {
		if _, ok := drop[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}

// Allowed reports whether u is in scope and not excluded.
func (m *Matcher) Allowed(u string) bool {
	return len(m.Filter([]string{u})) == 1
}
