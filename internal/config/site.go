package config

import (
	"net/url"
	"strings"
)

// SiteConfig holds overrides for a single target host.
// This allows customizing crawl behavior per application.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are merged over the global headers, site values win.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxDepth overrides the global depth when non-zero.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// ScopePatterns replace the global scope patterns when set.
	ScopePatterns []string `yaml:"scope_patterns,omitempty"`

	// ExcludePatterns replace the global exclude patterns when set.
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`

	// Authentication replaces the global authentication block when set.
	Authentication *AuthConfig `yaml:"authentication,omitempty"`
}

// File represents the structure of the .vulncrawl.yaml configuration file.
// Top-level keys are ScanConfiguration fields; the sites map holds
// per-host overrides.
type File struct {
	Crawl ScanConfiguration `yaml:",inline"`

	// Sites maps a host name (e.g. "app.example.com") to its overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// ForSeed returns the configuration to use for a crawl starting at seed:
// the file's global settings with the matching site's overrides applied.
func (f *File) ForSeed(seed string) ScanConfiguration {
	result := f.Crawl.Clone()

	site, ok := f.lookupSite(seed)
	if !ok {
		return result
	}

	if site.MaxDepth != 0 {
		result.MaxDepth = site.MaxDepth
	}
	if len(site.Headers) > 0 || site.Cookie != "" {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
		if site.Cookie != "" {
			result.Headers["Cookie"] = site.Cookie
		}
	}
	if len(site.ScopePatterns) > 0 {
		result.ScopePatterns = append([]string(nil), site.ScopePatterns...)
	}
	if len(site.ExcludePatterns) > 0 {
		result.ExcludePatterns = append([]string(nil), site.ExcludePatterns...)
	}
	if site.Authentication != nil {
		result.Authentication = *site.Authentication
	}

	return result
}

func (f *File) lookupSite(seed string) (SiteConfig, bool) {
	if len(f.Sites) == 0 {
		return SiteConfig{}, false
	}
	u, err := url.Parse(seed)
	if err != nil {
		return SiteConfig{}, false
	}
	host := strings.ToLower(u.Hostname())
	if site, ok := f.Sites[host]; ok {
		return site, true
	}
	site, ok := f.Sites[strings.TrimPrefix(host, "www.")]
	return site, ok
}
