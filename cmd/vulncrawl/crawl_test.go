package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
	"github.com/krishna0605/vulnscanner-sub001/internal/report"
)

// newTestSite serves a three page application with a login form.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Server", "Apache/2.4.41")
		fmt.Fprint(w, `<html><head><title>Shop</title></head><body>
<a href="/login">Login</a> <a href="/missing">Gone</a>
</body></html>`)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><form action="/session" method="post">
<input name="username"><input type="password" name="password">
<input type="hidden" name="csrf_token" value="tok123">
</form></body></html>`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"depth", "d", "3"},
		{"max-pages", "p", "100"},
		{"rate", "r", "10"},
		{"timeout", "t", "30s"},
		{"concurrency", "n", "10"},
		{"header", "H", "[]"},
		{"config", "c", ""},
		{"batch", "b", "4"},
		{"format", "f", formatText},
		{"output", "o", ""},
		{"postgres", "", ""},
		{"metrics-addr", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("shorthand = %q, want %q", flag.Shorthand, tt.shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("default = %q, want %q", flag.DefValue, tt.defValue)
			}
		})
	}

	t.Run("requires a seed", func(t *testing.T) {
		t.Parallel()
		if err := cmd.Args(cmd, nil); err == nil {
			t.Error("expected error without arguments")
		}
	})
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	got, err := parseHeaders([]string{"X-Test: a", "Cookie:  sid=1; theme=dark ", "Empty:"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"X-Test": "a", "Cookie": "sid=1; theme=dark", "Empty": ""}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("header %s = %q, want %q", k, got[k], v)
		}
	}

	for _, bad := range []string{"no-colon", ": value"} {
		if _, err := parseHeaders([]string{bad}); err == nil {
			t.Errorf("parseHeaders(%q) expected error", bad)
		}
	}
}

// Not parallel: a subtest sets environment variables.
func TestBuildConfigFunc(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "vulncrawl.yaml")
	content := `max_depth: 7
max_pages: 50
timeout: 10s
headers:
  X-Global: "1"
sites:
  app.example.com:
    max_depth: 9
    cookie: "sid=abc"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Run("file values and site overrides", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", configPath}); err != nil {
			t.Fatal(err)
		}
		cfgFor, err := buildConfigFunc(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		other := cfgFor("https://other.example.com/")
		if other.MaxDepth != 7 || other.MaxPages != 50 || other.Timeout.Duration != 10*time.Second {
			t.Errorf("global config = %+v", other)
		}
		site := cfgFor("https://app.example.com/")
		if site.MaxDepth != 9 || site.Headers["Cookie"] != "sid=abc" || site.Headers["X-Global"] != "1" {
			t.Errorf("site config = %+v", site)
		}
	})

	t.Run("explicit flags win", func(t *testing.T) {
		t.Setenv(envToken, "tok")

		cmd := NewCrawlCmd()
		err := cmd.ParseFlags([]string{
			"-c", configPath, "-d", "2", "-r", "0.5", "--ignore-robots",
			"--exclude", "*/logout*", "-H", "X-Global: 2", "--auth-mode", "Bearer",
		})
		if err != nil {
			t.Fatal(err)
		}
		cfgFor, err := buildConfigFunc(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := cfgFor("https://app.example.com/")
		if cfg.MaxDepth != 2 || cfg.MaxPages != 50 || cfg.RequestsPerSecond != 0.5 || cfg.RespectRobots {
			t.Errorf("config = %+v", cfg)
		}
		if len(cfg.ExcludePatterns) != 1 || cfg.Headers["X-Global"] != "2" || cfg.Headers["Cookie"] != "sid=abc" {
			t.Errorf("patterns/headers = %v %v", cfg.ExcludePatterns, cfg.Headers)
		}
		if cfg.Authentication.Mode != config.AuthModeBearer || cfg.Authentication.Token != "tok" {
			t.Errorf("authentication = %+v", cfg.Authentication)
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "nope.yaml")}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfigFunc(cmd); !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
	})
}

func TestCrawlCommand(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)

	t.Run("crawls, stores and prints a summary", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		stdout, stderr, err := execute(t, "crawl", "--db-dir", dbDir, "-r", "1000", "-v", "-f", "text", srv.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr)
		}

		for _, want := range []string{"VULNCRAWL REPORT", "URLs crawled:          3", "Apache/2.4.41", "/missing"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("stdout missing %q:\n%s", want, stdout)
			}
		}
		if strings.Contains(stderr, "tok123") {
			t.Error("csrf token leaked into logs")
		}

		history, _, err := execute(t, "history", "--db-dir", dbDir, "127.0.0.1")
		if err != nil {
			t.Fatalf("history error: %v", err)
		}
		if !strings.Contains(history, "completed") || !strings.Contains(history, srv.URL) {
			t.Errorf("history output:\n%s", history)
		}
	})

	t.Run("json report to file", func(t *testing.T) {
		t.Parallel()

		reportPath := filepath.Join(t.TempDir(), "out", "report.json")
		stdout, stderr, err := execute(t, "crawl", "--no-save", "-r", "1000", "-f", "json", "-o", reportPath, srv.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr)
		}
		if !strings.Contains(stdout, "VULNCRAWL REPORT") || !strings.Contains(stdout, "Report written to") {
			t.Errorf("stdout:\n%s", stdout)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("report not written: %v", err)
		}
		var got report.JSONReport
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("invalid JSON report: %v", err)
		}
		if got.Summary == nil || got.Summary.Stats.URLsCrawled != 3 || len(got.Summary.Forms) != 1 {
			t.Errorf("report = %+v", got.Summary)
		}
		if got.Summary.Forms[0].CSRFTokens[0].Value != "tok123" {
			t.Errorf("csrf token missing from report: %+v", got.Summary.Forms[0])
		}
	})

	t.Run("invalid configuration stores nothing", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "db")
		_, _, err := execute(t, "crawl", "--db-dir", dbDir, "-d", "0", srv.URL+"/")
		if !errors.Is(err, config.ErrInvalidMaxDepth) {
			t.Fatalf("error = %v, want ErrInvalidMaxDepth", err)
		}
		if _, err := os.Stat(dbDir); !os.IsNotExist(err) {
			t.Error("database created for a rejected configuration")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()

		if _, _, err := execute(t, "crawl", "--no-save", "-f", "xml", srv.URL+"/"); err == nil {
			t.Error("expected error for unknown format")
		}
	})

	t.Run("invalid auth mode", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "crawl", "--no-save", "--auth-mode", "kerberos", srv.URL+"/")
		if !errors.Is(err, config.ErrInvalidAuthMode) {
			t.Errorf("error = %v, want ErrInvalidAuthMode", err)
		}
	})
}
