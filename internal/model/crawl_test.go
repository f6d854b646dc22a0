package model

import (
	"testing"
	"time"
)

func TestCrawlStatsDuration(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	end := start.Add(90 * time.Second)

	tests := []struct {
		name      string
		stats     CrawlStats
		want      time.Duration
		completed bool
	}{
		{"not started", CrawlStats{}, 0, false},
		{"finished", CrawlStats{StartTime: start, EndTime: &end}, 90 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.stats.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
			if got := tt.stats.Completed(); got != tt.completed {
				t.Errorf("Completed() = %v, want %v", got, tt.completed)
			}
		})
	}

	t.Run("running is measured against now", func(t *testing.T) {
		t.Parallel()
		s := CrawlStats{StartTime: time.Now().Add(-time.Minute)}
		if d := s.Duration(); d < time.Minute {
			t.Errorf("Duration() = %v, want at least 1m", d)
		}
	})
}

func TestScanStatusTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status ScanStatus
		want   bool
	}{
		{ScanStatusPending, false},
		{ScanStatusRunning, false},
		{ScanStatusStopping, false},
		{ScanStatusCompleted, true},
		{ScanStatusCancelled, true},
		{ScanStatusFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestExtractedForm(t *testing.T) {
	t.Parallel()

	login := ExtractedForm{Fields: []FormField{
		{Name: "user", Type: "text"},
		{Name: "pass", Type: "password"},
	}}
	search := ExtractedForm{Fields: []FormField{{Name: "q", Type: "search"}}}

	if !login.HasPasswordField() || search.HasPasswordField() {
		t.Error("HasPasswordField() misclassified forms")
	}
	if f, ok := login.Field("pass"); !ok || f.Type != "password" {
		t.Errorf("Field(pass) = %+v, %v", f, ok)
	}
	if _, ok := search.Field("pass"); ok {
		t.Error("Field() found a missing field")
	}
}

func TestTechnologyFingerprintCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		fp    TechnologyFingerprint
		count int
		empty bool
	}{
		{"nothing", TechnologyFingerprint{}, 0, true},
		{"headers only", TechnologyFingerprint{SecurityHeaders: map[string]string{"X-Frame-Options": "DENY"}}, 0, false},
		{
			"full stack",
			TechnologyFingerprint{
				ServerSoftware:      "nginx",
				ProgrammingLanguage: "PHP",
				CMS:                 "WordPress",
				JavaScriptLibraries: []string{"jQuery", "React"},
				CSSFrameworks:       []string{"Bootstrap"},
			},
			6,
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.fp.TechnologyCount(); got != tt.count {
				t.Errorf("TechnologyCount() = %d, want %d", got, tt.count)
			}
			if got := tt.fp.IsEmpty(); got != tt.empty {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.empty)
			}
		})
	}
}
