package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
	"github.com/krishna0605/vulnscanner-sub001/internal/database"
	"github.com/krishna0605/vulnscanner-sub001/internal/model"
	"github.com/krishna0605/vulnscanner-sub001/internal/report"
)

// seedDatabase stores one finished scan and returns its id.
func seedDatabase(t *testing.T, dbDir string) int64 {
	t.Helper()

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	id, err := db.CreateScan(ctx, "https://shop.example.com/", config.NewScanConfiguration())
	if err != nil {
		t.Fatalf("CreateScan() error = %v", err)
	}
	sink := db.ForScan(id)

	home, err := sink.SaveDiscoveredURL(ctx, &model.DiscoveredURL{
		URL: "https://shop.example.com/", Method: "GET", StatusCode: 200, ContentType: "text/html",
	})
	if err != nil {
		t.Fatalf("SaveDiscoveredURL() error = %v", err)
	}
	if _, err := sink.SaveDiscoveredURL(ctx, &model.DiscoveredURL{
		URL: "https://shop.example.com/old", Method: "GET", StatusCode: 410, Depth: 1,
	}); err != nil {
		t.Fatalf("SaveDiscoveredURL() error = %v", err)
	}
	if err := sink.SaveForms(ctx, home, []model.ExtractedForm{{Action: "https://shop.example.com/cart", Method: "POST"}}); err != nil {
		t.Fatalf("SaveForms() error = %v", err)
	}
	if err := sink.SaveTechnology(ctx, home, &model.TechnologyFingerprint{CMS: "WordPress"}); err != nil {
		t.Fatalf("SaveTechnology() error = %v", err)
	}
	if err := sink.UpdateScanStatus(ctx, model.ScanStatusCompleted); err != nil {
		t.Fatal(err)
	}
	if err := sink.UpdateScanStats(ctx, model.CrawlStats{URLsCrawled: 2, FormsFound: 1}); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestHistoryCommand(t *testing.T) {
	t.Parallel()

	t.Run("no database yet", func(t *testing.T) {
		t.Parallel()

		out, _, err := execute(t, "history", "--db-dir", filepath.Join(t.TempDir(), "none"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No scans recorded yet.") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("list, show and delete", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		id := seedDatabase(t, dbDir)
		idStr := strconv.FormatInt(id, 10)

		out, _, err := execute(t, "history", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("list error: %v", err)
		}
		if !strings.Contains(out, "https://shop.example.com/") || !strings.Contains(out, "completed") {
			t.Errorf("list output:\n%s", out)
		}

		out, _, err = execute(t, "history", "--db-dir", dbDir, "other.example.com")
		if err != nil {
			t.Fatalf("filtered list error: %v", err)
		}
		if !strings.Contains(out, "No scans found for other.example.com") {
			t.Errorf("filtered output:\n%s", out)
		}

		out, _, err = execute(t, "history", "--db-dir", dbDir, "--scan-id", idStr, "-f", "json")
		if err != nil {
			t.Fatalf("show error: %v", err)
		}
		var got report.JSONReport
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		s := got.Summary
		if s.ScanID != idStr || s.Status != model.ScanStatusCompleted || s.Stats.URLsCrawled != 2 {
			t.Errorf("summary = %+v", s)
		}
		if len(s.Forms) != 1 || len(s.PagesWithErrors) != 1 || s.Technologies[report.CategoryCMS][0] != "WordPress" {
			t.Errorf("summary details = %+v", s)
		}

		out, _, err = execute(t, "history", "--db-dir", dbDir, "--delete", idStr)
		if err != nil {
			t.Fatalf("delete error: %v", err)
		}
		if !strings.Contains(out, "Deleted scan "+idStr) {
			t.Errorf("delete output:\n%s", out)
		}
		if _, _, err := execute(t, "history", "--db-dir", dbDir, "--scan-id", idStr); err == nil {
			t.Error("expected error for deleted scan")
		}
	})
}
