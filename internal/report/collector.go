package report

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/krishna0605/vulnscanner-sub001/internal/model"
	"github.com/krishna0605/vulnscanner-sub001/internal/techdetect"
)

// Technology categories used as keys of CrawlSummary.Technologies.
const (
	CategoryServer     = "server"
	CategoryLanguage   = "language"
	CategoryFramework  = "framework"
	CategoryCMS        = "cms"
	CategoryJavaScript = "javascript"
	CategoryCSS        = "css"
	CategoryCDN        = "cdn"
)

// Categories lists the technology categories in display order.
var Categories = []string{
	CategoryServer,
	CategoryLanguage,
	CategoryFramework,
	CategoryCMS,
	CategoryJavaScript,
	CategoryCSS,
	CategoryCDN,
}

// Collector is a model.Sink that forwards every call to another sink and
// keeps what a summary needs. It hands out its own record ids so summaries
// work with sinks that do not return ids, such as model.NopSink.
type Collector struct {
	next model.Sink

	mu     sync.Mutex
	nextID int64
	pages  map[int64]*collectedPage
	order  []int64
	forms  []model.ExtractedForm
	techs  map[string]map[string]struct{}
	status model.ScanStatus
	stats  model.CrawlStats
}

type collectedPage struct {
	innerID int64
	url     string
	status  int
	html    bool
	headers map[string]string
}

var _ model.Sink = (*Collector)(nil)

// NewCollector returns a Collector that forwards to next. A nil next
// forwards nowhere.
func NewCollector(next model.Sink) *Collector {
	if next == nil {
		next = model.NopSink{}
	}
	return &Collector{
		next:   next,
		pages:  make(map[int64]*collectedPage),
		techs:  make(map[string]map[string]struct{}),
		status: model.ScanStatusPending,
	}
}

// SaveDiscoveredURL implements model.Sink.
func (c *Collector) SaveDiscoveredURL(ctx context.Context, record *model.DiscoveredURL) (int64, error) {
	innerID, err := c.next.SaveDiscoveredURL(ctx, record)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.pages[c.nextID] = &collectedPage{
		innerID: innerID,
		url:     record.URL,
		status:  record.StatusCode,
		html:    record.PageTitle != "" || isHTML(record.ContentType),
	}
	c.order = append(c.order, c.nextID)
	return c.nextID, nil
}

// SaveForms implements model.Sink.
func (c *Collector) SaveForms(ctx context.Context, urlID int64, forms []model.ExtractedForm) error {
	if err := c.next.SaveForms(ctx, c.innerID(urlID), forms); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.forms = append(c.forms, forms...)
	return nil
}

// SaveTechnology implements model.Sink.
func (c *Collector) SaveTechnology(ctx context.Context, urlID int64, fp *model.TechnologyFingerprint) error {
	if err := c.next.SaveTechnology(ctx, c.innerID(urlID), fp); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if page, ok := c.pages[urlID]; ok {
		page.headers = fp.SecurityHeaders
	}

	c.add(CategoryServer, fp.ServerSoftware)
	c.add(CategoryLanguage, fp.ProgrammingLanguage)
	c.add(CategoryFramework, fp.Framework)
	c.add(CategoryCMS, fp.CMS)
	c.add(CategoryCDN, fp.CDN)
	for _, lib := range fp.JavaScriptLibraries {
		c.add(CategoryJavaScript, lib)
	}
	for _, css := range fp.CSSFrameworks {
		c.add(CategoryCSS, css)
	}
	return nil
}

// UpdateScanStatus implements model.Sink.
func (c *Collector) UpdateScanStatus(ctx context.Context, status model.ScanStatus) error {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	return c.next.UpdateScanStatus(ctx, status)
}

// UpdateScanStats implements model.Sink.
func (c *Collector) UpdateScanStats(ctx context.Context, stats model.CrawlStats) error {
	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
	return c.next.UpdateScanStats(ctx, stats)
}

func (c *Collector) innerID(id int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page, ok := c.pages[id]; ok {
		return page.innerID
	}
	return id
}

// add must be called with c.mu held.
func (c *Collector) add(category, value string) {
	if value == "" {
		return
	}
	set, ok := c.techs[category]
	if !ok {
		set = make(map[string]struct{})
		c.techs[category] = set
	}
	set[value] = struct{}{}
}

// Summary builds the summary of everything collected so far.
func (c *Collector) Summary(scanID, seed string) *model.CrawlSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := &model.CrawlSummary{
		ScanID:  scanID,
		SeedURL: seed,
		Status:  c.status,
		Stats:   c.stats,
		Forms:   slices.Clone(c.forms),
	}

	if len(c.techs) > 0 {
		summary.Technologies = make(map[string][]string, len(c.techs))
		for category, set := range c.techs {
			values := make([]string, 0, len(set))
			for v := range set {
				values = append(values, v)
			}
			sort.Strings(values)
			summary.Technologies[category] = values
		}
	}

	missing := make(map[string]struct{})
	for _, id := range c.order {
		page := c.pages[id]
		if page.status >= 400 {
			summary.PagesWithErrors = append(summary.PagesWithErrors, page.url)
			continue
		}
		if !page.html {
			continue
		}
		for _, h := range techdetect.SecurityHeaders {
			if _, ok := page.headers[h]; !ok {
				missing[h] = struct{}{}
			}
		}
	}
	for h := range missing {
		summary.MissingSecurityHeaders = append(summary.MissingSecurityHeaders, h)
	}
	sort.Strings(summary.MissingSecurityHeaders)

	return summary
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
