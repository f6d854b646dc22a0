package model

// TechnologyFingerprint describes the software stack observed in a response.
// String fields are empty when nothing was detected. Version numbers are kept
// in the value when the signature exposes one (e.g. "nginx/1.18.0").
type TechnologyFingerprint struct {
	ServerSoftware      string   `json:"server_software,omitempty"`
	ProgrammingLanguage string   `json:"programming_language,omitempty"`
	Framework           string   `json:"framework,omitempty"`
	CMS                 string   `json:"cms,omitempty"`
	JavaScriptLibraries []string `json:"javascript_libraries,omitempty"`
	CSSFrameworks       []string `json:"css_frameworks,omitempty"`
	CDN                 string   `json:"cdn,omitempty"`

	// SecurityHeaders only holds headers that are present, keyed by their
	// canonical name. A missing key means the header was absent.
	SecurityHeaders map[string]string `json:"security_headers,omitempty"`
}

// TechnologyCount returns the number of technologies detected,
// security headers excluded.
func (f TechnologyFingerprint) TechnologyCount() int {
	n := len(f.JavaScriptLibraries) + len(f.CSSFrameworks)
	for _, v := range []string{f.ServerSoftware, f.ProgrammingLanguage, f.Framework, f.CMS, f.CDN} {
		if v != "" {
			n++
		}
	}
	return n
}

// IsEmpty reports whether nothing at all was detected.
func (f TechnologyFingerprint) IsEmpty() bool {
	return f.TechnologyCount() == 0 && len(f.SecurityHeaders) == 0
}
