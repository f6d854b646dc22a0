package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/krishna0605/vulnscanner-sub001/internal/config"
)

func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
		if flag.DefValue != config.DefaultConfigFile {
			t.Errorf("expected default %q, got %q", config.DefaultConfigFile, flag.DefValue)
		}
	})

	t.Run("has force flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("force")
		if flag == nil {
			t.Fatal("expected force flag")
		}
		if flag.Shorthand != "f" || flag.DefValue != "false" {
			t.Errorf("unexpected force flag: %+v", flag)
		}
	})
}

func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewInitCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates a loadable config file", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "nested", config.DefaultConfigFile)
		output, err := runInit(t, "-o", outputPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output, outputPath) {
			t.Errorf("expected output to mention %s, got %q", outputPath, output)
		}

		info, err := os.Stat(outputPath)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("permissions = %v, want 0600", info.Mode().Perm())
		}

		file, err := config.LoadFile(outputPath)
		if err != nil {
			t.Fatalf("generated file does not load: %v", err)
		}
		cfg := file.ForSeed("https://app.example.com/")
		if err := cfg.Validate(); err != nil {
			t.Errorf("generated configuration is invalid: %v", err)
		}
		if cfg.MaxDepth != config.DefaultMaxDepth || cfg.Timeout.Duration != config.DefaultTimeout {
			t.Errorf("generated defaults differ: %+v", cfg)
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(outputPath, []byte("keep"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, err := runInit(t, "-o", outputPath); err == nil {
			t.Fatal("expected error for existing file")
		}
		content, _ := os.ReadFile(outputPath)
		if string(content) != "keep" {
			t.Error("existing file was modified")
		}

		if _, err := runInit(t, "-o", outputPath, "-f"); err != nil {
			t.Fatalf("unexpected error with -f: %v", err)
		}
		content, _ = os.ReadFile(outputPath)
		if !strings.Contains(string(content), "max_depth:") {
			t.Error("file not overwritten with template")
		}
	})
}
