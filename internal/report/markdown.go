package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/krishna0605/vulnscanner-sub001/internal/model"
)

// MarkdownWriter outputs summaries as Markdown for documentation and
// sharing. It uses nao1215/markdown for tables, alerts and Mermaid charts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeStats(md, summary)
	w.writeTechnologies(md, summary)
	w.writeSecurityHeaders(md, summary)
	w.writeForms(md, summary)
	w.writeErrorPages(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.CrawlSummary) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + s.SeedURL + "`"},
		{"Status", statusText(s.Status)},
	}
	if s.ScanID != "" {
		rows = append(rows, []string{"Scan ID", s.ScanID})
	}
	if !s.Stats.StartTime.IsZero() {
		rows = append(rows,
			[]string{"Started", s.Stats.StartTime.Format("2006-01-02 15:04:05 MST")},
			[]string{"Duration", s.Stats.Duration().Round(time.Millisecond).String()},
		)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func statusText(status model.ScanStatus) string {
	switch status {
	case model.ScanStatusCompleted:
		return "✅ Completed"
	case model.ScanStatusCancelled:
		return "⚠️ Cancelled (partial results)"
	case model.ScanStatusFailed:
		return "❌ Failed"
	default:
		return cases.Title(language.English).String(string(status))
	}
}

func (w *MarkdownWriter) writeStats(md *markdown.Markdown, s *model.CrawlSummary) {
	md.H2("Statistics")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"URLs crawled", strconv.FormatInt(s.Stats.URLsCrawled, 10)},
			{"URLs discovered", strconv.FormatInt(s.Stats.URLsDiscovered, 10)},
			{"Forms found", strconv.FormatInt(s.Stats.FormsFound, 10)},
			{"Technologies detected", strconv.FormatInt(s.Stats.TechnologiesDetected, 10)},
			{"Errors", strconv.FormatInt(s.Stats.Errors, 10)},
		},
	})
	md.PlainText("")

	if s.Stats.Errors > 0 {
		md.Warningf("%d error(s) occurred during the crawl; some pages may be missing.", s.Stats.Errors)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeTechnologies(md *markdown.Markdown, s *model.CrawlSummary) {
	md.H2("Technologies")
	md.PlainText("")

	if len(s.Technologies) == 0 {
		md.PlainText("No technologies detected.")
		md.PlainText("")
		return
	}

	title := cases.Title(language.English)
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Technologies by Category"),
		piechart.WithShowData(true),
	)

	var rows [][]string
	for _, category := range Categories {
		values := s.Technologies[category]
		if len(values) == 0 {
			continue
		}
		rows = append(rows, []string{title.String(category), strings.Join(values, ", ")})
		chart.LabelAndIntValue(title.String(category), uint64(len(values)))
	}

	md.Table(markdown.TableSet{
		Header: []string{"Category", "Detected"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeSecurityHeaders(md *markdown.Markdown, s *model.CrawlSummary) {
	md.H2("Security Headers")
	md.PlainText("")

	if len(s.MissingSecurityHeaders) == 0 {
		md.Tip("Every crawled page sent the checked security headers.")
		md.PlainText("")
		return
	}

	md.Importantf("%d security header(s) missing on at least one page.", len(s.MissingSecurityHeaders))
	md.PlainText("")
	md.BulletList(s.MissingSecurityHeaders...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeForms(md *markdown.Markdown, s *model.CrawlSummary) {
	md.H2("Forms")
	md.PlainText("")

	if len(s.Forms) == 0 {
		md.PlainText("No forms found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(s.Forms))
	for _, f := range s.Forms {
		names := make([]string, 0, len(f.Fields))
		for _, field := range f.Fields {
			names = append(names, field.Name)
		}
		rows = append(rows, []string{
			"`" + f.Action + "`",
			f.Method,
			strings.Join(names, ", "),
			yesNo(len(f.CSRFTokens) > 0),
			yesNo(f.AuthenticationRequired),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Action", "Method", "Fields", "CSRF Token", "Behind Login"},
		Rows:   rows,
	})
	md.PlainText("")

	if n := formsWithoutCSRF(s.Forms); n > 0 {
		md.Cautionf("%d state-changing form(s) have no CSRF token.", n)
		md.PlainText("")
	}
}

func formsWithoutCSRF(forms []model.ExtractedForm) int {
	n := 0
	for _, f := range forms {
		if f.Method != "GET" && len(f.CSRFTokens) == 0 {
			n++
		}
	}
	return n
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (w *MarkdownWriter) writeErrorPages(md *markdown.Markdown, s *model.CrawlSummary) {
	if len(s.PagesWithErrors) == 0 {
		return
	}

	md.H2("Pages With Errors")
	md.PlainText("")
	items := make([]string, 0, len(s.PagesWithErrors))
	for _, u := range s.PagesWithErrors {
		items = append(items, fmt.Sprintf("`%s`", u))
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("*Generated by vulncrawl*")
}
