package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/krishna0605/vulnscanner-sub001/internal/model"
)

const ruleWidth = 70

// TextWriter outputs a plain-text summary for terminal display.
type TextWriter struct {
	baseWriter

	// showEmpty prints sections that have nothing to report.
	showEmpty bool

	// verbose lists every form instead of a count.
	verbose bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary as text.
func (w *TextWriter) Write(s *model.CrawlSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, s)
	w.writeStats(&sb, s)
	w.writeTechnologies(&sb, s)
	w.writeSecurityHeaders(&sb, s)
	w.writeForms(&sb, s)
	w.writeErrorPages(&sb, s)

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(strings.ToUpper(title))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *TextWriter) writeHeader(sb *strings.Builder, s *model.CrawlSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                           VULNCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:      %s\n", s.SeedURL)
	if s.ScanID != "" {
		fmt.Fprintf(sb, "Scan ID:   %s\n", s.ScanID)
	}
	fmt.Fprintf(sb, "Status:    %s\n", strings.ToUpper(s.Status.String()))
	if !s.Stats.StartTime.IsZero() {
		fmt.Fprintf(sb, "Started:   %s\n", s.Stats.StartTime.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(sb, "Duration:  %s\n", s.Stats.Duration().Round(time.Millisecond))
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeStats(sb *strings.Builder, s *model.CrawlSummary) {
	section(sb, "Statistics")
	fmt.Fprintf(sb, "  URLs crawled:          %d\n", s.Stats.URLsCrawled)
	fmt.Fprintf(sb, "  URLs discovered:       %d\n", s.Stats.URLsDiscovered)
	fmt.Fprintf(sb, "  Forms found:           %d\n", s.Stats.FormsFound)
	fmt.Fprintf(sb, "  Technologies detected: %d\n", s.Stats.TechnologiesDetected)
	fmt.Fprintf(sb, "  Errors:                %d\n", s.Stats.Errors)
	sb.WriteString("\n")
}

func (w *TextWriter) writeTechnologies(sb *strings.Builder, s *model.CrawlSummary) {
	if len(s.Technologies) == 0 && !w.showEmpty {
		return
	}
	section(sb, "Technologies")

	if len(s.Technologies) == 0 {
		sb.WriteString("  None detected.\n\n")
		return
	}

	title := cases.Title(language.English)
	for _, category := range Categories {
		values := s.Technologies[category]
		if len(values) == 0 {
			continue
		}
		fmt.Fprintf(sb, "  %-12s %s\n", title.String(category)+":", strings.Join(values, ", "))
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeSecurityHeaders(sb *strings.Builder, s *model.CrawlSummary) {
	if len(s.MissingSecurityHeaders) == 0 && !w.showEmpty {
		return
	}
	section(sb, "Missing Security Headers")

	if len(s.MissingSecurityHeaders) == 0 {
		sb.WriteString("  None.\n\n")
		return
	}
	for _, h := range s.MissingSecurityHeaders {
		fmt.Fprintf(sb, "  - %s\n", h)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeForms(sb *strings.Builder, s *model.CrawlSummary) {
	if len(s.Forms) == 0 && !w.showEmpty {
		return
	}
	section(sb, "Forms")

	if !w.verbose {
		fmt.Fprintf(sb, "  %d form(s), %d state-changing without a CSRF token\n\n", len(s.Forms), formsWithoutCSRF(s.Forms))
		return
	}

	for _, f := range s.Forms {
		fmt.Fprintf(sb, "  %-6s %s\n", f.Method, f.Action)
		for _, field := range f.Fields {
			fmt.Fprintf(sb, "         %s (%s)\n", field.Name, field.Type)
		}
		if len(f.CSRFTokens) > 0 {
			sb.WriteString("         csrf token present\n")
		}
		if f.AuthenticationRequired {
			sb.WriteString("         behind login\n")
		}
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeErrorPages(sb *strings.Builder, s *model.CrawlSummary) {
	if len(s.PagesWithErrors) == 0 {
		return
	}
	section(sb, "Pages With Errors")
	for _, u := range s.PagesWithErrors {
		fmt.Fprintf(sb, "  - %s\n", u)
	}
	sb.WriteString("\n")
}
