package report

import (
	"io"

	"github.com/krishna0605/vulnscanner-sub001/internal/model"
)

// Writer renders a crawl summary and returns the number of bytes written.
type Writer interface {
	Write(summary *model.CrawlSummary) (int, error)
}

// MultiWriter sends one summary to several writers in order, such as the
// terminal and a report file. The first error stops it.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter returns a MultiWriter over writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write implements Writer. The count is the sum over all writers.
func (m *MultiWriter) Write(summary *model.CrawlSummary) (int, error) {
	total := 0
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
