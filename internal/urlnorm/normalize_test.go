package urlnorm

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lower-cases scheme and host", in: "HTTP://Example.COM/Path", want: "http://example.com/Path"},
		{name: "strips default http port", in: "http://example.com:80/a", want: "http://example.com/a"},
		{name: "strips default https port", in: "https://example.com:443/a", want: "https://example.com/a"},
		{name: "keeps non-default port", in: "http://example.com:8080/a", want: "http://example.com:8080/a"},
		{name: "empty path becomes root", in: "http://example.com", want: "http://example.com/"},
		{name: "root keeps its slash", in: "http://example.com/", want: "http://example.com/"},
		{name: "strips trailing slash", in: "http://example.com/docs/", want: "http://example.com/docs"},
		{name: "resolves parent segments", in: "http://h/a/../b", want: "http://h/b"},
		{name: "resolves current segments", in: "http://example.com/a/./b/", want: "http://example.com/a/b"},
		{name: "parent above root stays at root", in: "http://example.com/../../a", want: "http://example.com/a"},
		{name: "collapses repeated slashes", in: "http://example.com//a///b", want: "http://example.com/a/b"},
		{name: "dot segments down to root", in: "http://example.com/a/..", want: "http://example.com/"},
		{name: "removes fragment", in: "http://example.com/a#section", want: "http://example.com/a"},
		{name: "sorts query parameters", in: "http://example.com/?b=2&a=1", want: "http://example.com/?a=1&b=2"},
		{name: "drops tracking parameters", in: "http://example.com/?utm_source=x&id=1&fbclid=y&gclid=z&_ga=1", want: "http://example.com/?id=1"},
		{name: "drops empty query", in: "http://example.com/a?utm_medium=mail", want: "http://example.com/a"},
		{name: "keeps ipv6 brackets", in: "http://[::1]:80/a", want: "http://[::1]/a"},
		{name: "keeps ipv6 port", in: "http://[::1]:8080/a", want: "http://[::1]:8080/a"},
		{name: "empty input", in: "", want: ""},
		{name: "missing scheme is unchanged", in: "example.com/a", want: "example.com/a"},
		{name: "unparsable is unchanged", in: "http://exa mple.com/%zz", want: "http://exa mple.com/%zz"},
		{name: "invalid utf8 is unchanged", in: "http://example.com/\xff", want: "http://example.com/\xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeEquivalentForms(t *testing.T) {
	t.Parallel()

	variants := []string{
		"http://example.com/page?a=1&b=2",
		"HTTP://EXAMPLE.com/page?a=1&b=2",
		"http://example.com:80/page?a=1&b=2",
		"http://example.com/page/?a=1&b=2",
		"http://example.com/page?a=1&b=2#top",
		"http://example.com/page?b=2&a=1",
		"http://example.com/page?a=1&utm_campaign=spring&b=2",
	}

	want := Normalize(variants[0])
	for _, v := range variants {
		if got := Normalize(v); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", v, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"http://Example.com:80/a//",
		"https://user:pa ss@example.com/x?z=1&a=2#f",
		"http://example.com/%7Euser/?q=a+b",
		"http://[::1]/",
		"not a url",
		"",
		"mailto:someone@example.com",
	}

	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestIsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "http page", in: "http://example.com/page", want: true},
		{name: "https page", in: "https://example.com/", want: true},
		{name: "script is crawlable", in: "https://example.com/app.js", want: true},
		{name: "empty", in: "", want: false},
		{name: "ftp scheme", in: "ftp://example.com/file", want: false},
		{name: "mailto", in: "mailto:a@example.com", want: false},
		{name: "no host", in: "http:///path", want: false},
		{name: "relative", in: "/page", want: false},
		{name: "image", in: "http://example.com/logo.PNG", want: false},
		{name: "archive", in: "http://example.com/dump.tar.gz", want: false},
		{name: "stylesheet", in: "http://example.com/site.css", want: false},
		{name: "document", in: "http://example.com/report.pdf", want: false},
		{name: "overlong", in: "http://example.com/" + strings.Repeat("a", MaxURLLength), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsValid(tt.in); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsSameDomain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{"http://example.com/a", "https://example.com/b", true},
		{"http://www.example.com/", "http://example.com/", true},
		{"http://EXAMPLE.com/", "http://example.com:8080/", true},
		{"http://example.com/", "http://other.com/", false},
		{"http://api.example.com/", "http://example.com/", false},
		{"", "http://example.com/", false},
	}

	for _, tt := range tests {
		if got := IsSameDomain(tt.a, tt.b); got != tt.want {
			t.Errorf("IsSameDomain(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDepth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		u, base string
		want    int
	}{
		{"http://example.com/", "http://example.com/", 0},
		{"http://example.com/a/b", "http://example.com/", 2},
		{"http://example.com/a/b/c", "http://example.com/a", 2},
		{"http://example.com/", "http://example.com/a/b", 0},
		{"http://other.com/a", "http://example.com/", OutOfDomain},
	}

	for _, tt := range tests {
		if got := Depth(tt.u, tt.base); got != tt.want {
			t.Errorf("Depth(%q, %q) = %d, want %d", tt.u, tt.base, got, tt.want)
		}
	}
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	t.Run("collapses equivalent spellings", func(t *testing.T) {
		t.Parallel()

		got := Dedupe([]string{
			"http://example.com/a",
			"http://example.com/a#frag",
			"HTTP://EXAMPLE.COM/a",
		})
		if len(got) != 1 {
			t.Fatalf("expected 1 url, got %d: %v", len(got), got)
		}
		if _, ok := got["http://example.com/a"]; !ok {
			t.Errorf("expected canonical url in set, got %v", got)
		}
	})

	t.Run("discards invalid urls", func(t *testing.T) {
		t.Parallel()

		got := Dedupe([]string{"", "javascript:void(0)", "http://example.com/x.png", "http://example.com/ok"})
		if len(got) != 1 {
			t.Errorf("expected 1 url, got %d: %v", len(got), got)
		}
	})
}
