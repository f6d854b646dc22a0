package model

import "time"

// DiscoveredURL is the record emitted for every successful fetch.
// It is handed to the Sink once and never modified afterwards.
type DiscoveredURL struct {
	// URL is the canonical URL that was requested.
	URL string `json:"url"`

	// ParentURL is the page the link was found on. Empty for the seed.
	ParentURL string `json:"parent_url,omitempty"`

	// Method is the HTTP method used. The crawler only issues GET.
	Method string `json:"method"`

	StatusCode    int    `json:"status_code"`
	ContentType   string `json:"content_type,omitempty"`
	ContentLength int64  `json:"content_length"`

	// ResponseTimeMS is the time from request to fully read body.
	ResponseTimeMS int64 `json:"response_time_ms"`

	// PageTitle is the document title, empty for non-HTML responses.
	PageTitle string `json:"page_title,omitempty"`

	// Depth is the BFS distance from the seed.
	Depth int `json:"depth"`

	DiscoveredAt time.Time `json:"discovered_at"`
}

// FormField is a single input, select, textarea or button inside a form.
type FormField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// CSRFToken is an anti-forgery token found in a hidden input or meta tag.
type CSRFToken struct {
	// Name is the field or meta name that matched a CSRF pattern.
	Name string `json:"name"`

	// Value is the token itself.
	Value string `json:"value"`

	// Source is "input" or "meta".
	Source string `json:"source"`
}

// CSRF token sources.
const (
	CSRFSourceInput = "input"
	CSRFSourceMeta  = "meta"
)

// ExtractedForm is an HTML form found on a crawled page.
type ExtractedForm struct {
	// Action is the absolute URL the form submits to.
	Action string `json:"action"`

	// Method is the upper-cased HTTP method.
	Method string `json:"method"`

	// Fields are in document order, hidden fields included.
	Fields []FormField `json:"fields"`

	CSRFTokens []CSRFToken `json:"csrf_tokens,omitempty"`

	// AuthenticationRequired is set when the page was fetched with an
	// authenticated session and the form is not itself a login form.
	AuthenticationRequired bool `json:"authentication_required"`
}

// HasPasswordField reports whether the form contains a password input.
func (f ExtractedForm) HasPasswordField() bool {
	for _, field := range f.Fields {
		if field.Type == "password" {
			return true
		}
	}
	return false
}

// Field returns the first field with the given name.
func (f ExtractedForm) Field(name string) (FormField, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FormField{}, false
}
