// Package report turns a finished crawl into something a person or a tool
// can read.
//
// A Collector sits between the crawler and the real sink and builds a
// model.CrawlSummary as results arrive. Writers render that summary:
//   - TextWriter: plain text for the terminal
//   - JSONWriter: JSON for tool integration
//   - MarkdownWriter: Markdown for sharing, with a Mermaid chart of the
//     detected technologies
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
