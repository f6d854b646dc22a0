package urlnorm

import (
	"errors"
	"regexp/syntax"
	"slices"
	"testing"
)

func TestInScope(t *testing.T) {
	t.Parallel()

	urls := []string{
		"http://example.com/app/login",
		"http://example.com/blog/post",
		"http://example.com/app/settings",
	}

	t.Run("no patterns keeps everything", func(t *testing.T) {
		t.Parallel()

		if got := InScope(urls, nil); len(got) != 3 {
			t.Errorf("expected 3 urls, got %v", got)
		}
	})

	t.Run("substring pattern", func(t *testing.T) {
		t.Parallel()

		got := InScope(urls, []string{"/app/"})
		if len(got) != 2 {
			t.Errorf("expected 2 urls, got %v", got)
		}
	})

	t.Run("regex pattern", func(t *testing.T) {
		t.Parallel()

		got := InScope(urls, []string{`/blog/\w+$`})
		if len(got) != 1 || got[0] != "http://example.com/blog/post" {
			t.Errorf("unexpected result %v", got)
		}
	})

	t.Run("invalid regex falls back to substring", func(t *testing.T) {
		t.Parallel()

		got := InScope([]string{"http://example.com/a[1", "http://example.com/b"}, []string{"a[1"})
		if len(got) != 1 {
			t.Errorf("expected 1 url, got %v", got)
		}
	})
}

func TestOutOfScope(t *testing.T) {
	t.Parallel()

	urls := []string{
		"http://example.com/logout",
		"http://example.com/profile",
	}

	got := OutOfScope(urls, []string{"logout"})
	if len(got) != 1 || got[0] != "http://example.com/logout" {
		t.Errorf("unexpected result %v", got)
	}

	if got := OutOfScope(urls, nil); len(got) != 0 {
		t.Errorf("expected no excluded urls, got %v", got)
	}
}

func TestMatcher(t *testing.T) {
	t.Parallel()

	t.Run("empty include means same host as seed", func(t *testing.T) {
		t.Parallel()

		m, err := NewMatcher("http://example.com/", nil, nil)
		if err != nil {
			t.Fatalf("NewMatcher failed: %v", err)
		}
		if !m.Allowed("http://www.example.com/a") {
			t.Error("expected same-host url to be allowed")
		}
		if m.Allowed("http://evil.com/a") {
			t.Error("expected foreign url to be rejected")
		}
	})

	t.Run("exclude wins over include", func(t *testing.T) {
		t.Parallel()

		m, err := NewMatcher("http://example.com/", []string{"example.com"}, []string{"/logout"})
		if err != nil {
			t.Fatalf("NewMatcher failed: %v", err)
		}
		if m.Allowed("http://example.com/logout") {
			t.Error("expected excluded url to be rejected")
		}
		if !m.Allowed("http://example.com/home") {
			t.Error("expected included url to be allowed")
		}
	})

	t.Run("rejects invalid regex", func(t *testing.T) {
		t.Parallel()

		_, err := NewMatcher("http://example.com/", []string{"("}, nil)
		if err == nil {
			t.Fatal("expected error for invalid pattern")
		}
		var syntaxErr *syntax.Error
		if !errors.As(err, &syntaxErr) {
			t.Errorf("expected *syntax.Error in chain, got %T", err)
		}
	})
	t.Run("filter keeps order and drops excluded", func(t *testing.T) {
		t.Parallel()

		m, err := NewMatcher("http://example.com/", []string{"/app/"}, []string{"logout"})
		if err != nil {
			t.Fatalf("NewMatcher failed: %v", err)
		}
		got := m.Filter([]string{
			"http://example.com/app/b",
			"http://example.com/blog",
			"http://example.com/app/logout",
			"http://other.com/app/a",
		})
		want := []string{"http://example.com/app/b", "http://other.com/app/a"}
		if !slices.Equal(got, want) {
			t.Errorf("Filter() = %v, want %v", got, want)
		}
	})
}
