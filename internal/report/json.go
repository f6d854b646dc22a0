package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/krishna0605/vulnscanner-sub001/internal/model"
)

// JSONWriter renders a summary as one JSON document for other tools.
// URLs are written as they are: '&', '<' and '>' are not escaped.
type JSONWriter struct {
	baseWriter

	indent string

	// version, when set, wraps the summary in a JSONReport.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint indents nested values by two spaces.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = "  "
	}
}

// WithVersion wraps the output in a JSONReport carrying version.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter returns a compact JSONWriter on output.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is the versioned envelope written by WithVersion.
type JSONReport struct {
	Version string              `json:"version"`
	Summary *model.CrawlSummary `json:"summary"`
}

// Write implements Writer.
func (w *JSONWriter) Write(summary *model.CrawlSummary) (int, error) {
	var doc any = summary
	if w.version != "" {
		doc = JSONReport{Version: w.version, Summary: summary}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", w.indent)
	if err := enc.Encode(doc); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}
