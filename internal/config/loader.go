package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the file name looked up in the working directory.
const DefaultConfigFile = ".vulncrawl.yaml"

// ErrConfigNotFound is returned by LoadFile for a missing file.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadFile reads a configuration file. Settings the file leaves out keep
// their defaults. Unknown keys are errors, so a misspelt limit is not
// silently ignored. An empty file yields the defaults.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the user
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}

	f := &File{
		Crawl: NewScanConfiguration(),
		Sites: make(map[string]SiteConfig),
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Sites == nil {
		f.Sites = make(map[string]SiteConfig)
	}
	return f, nil
}

// FindConfigFile returns the configuration file to use, or "" if there is
// none. An explicit configPath is used only if it exists; otherwise
// DefaultConfigFile in the working directory wins over config.yaml in the
// XDG config directory.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		return existing(configPath)
	}

	candidates := []string{DefaultConfigFile, filepath.Join(XDGConfigDir(), "config.yaml")}
	if cwd, err := os.Getwd(); err == nil {
		candidates[0] = filepath.Join(cwd, DefaultConfigFile)
	}
	for _, path := range candidates {
		if found := existing(path); found != "" {
			return found
		}
	}
	return ""
}

func existing(path string) string {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}
