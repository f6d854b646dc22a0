package crawler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/krishna0605/vulnscanner-sub001/internal/model"
)

// StatsRecorder holds the counters of one crawl. Counters are atomic so
// workers never block on each other to count.
type StatsRecorder struct {
	discovered atomic.Int64
	crawled    atomic.Int64
	forms      atomic.Int64
	techs      atomic.Int64
	errors     atomic.Int64

	mu    sync.RWMutex
	start time.Time
	end   *time.Time
}

func (r *StatsRecorder) begin(now time.Time) {
	r.mu.Lock()
	r.start = now
	r.end = nil
	r.mu.Unlock()
}

func (r *StatsRecorder) finish(now time.Time) {
	r.mu.Lock()
	r.end = &now
	r.mu.Unlock()
}

func (r *StatsRecorder) reset() {
	r.discovered.Store(0)
	r.crawled.Store(0)
	r.forms.Store(0)
	r.techs.Store(0)
	r.errors.Store(0)

	r.mu.Lock()
	r.start = time.Time{}
	r.end = nil
	r.mu.Unlock()
}

// Snapshot returns the current counters.
func (r *StatsRecorder) Snapshot() model.CrawlStats {
	r.mu.RLock()
	start, end := r.start, r.end
	r.mu.RUnlock()

	stats := model.CrawlStats{
		URLsDiscovered:       r.discovered.Load(),
		URLsCrawled:          r.crawled.Load(),
		FormsFound:           r.forms.Load(),
		TechnologiesDetected: r.techs.Load(),
		Errors:               r.errors.Load(),
		StartTime:            start,
	}
	if end != nil {
		t := *end
		stats.EndTime = &t
	}
	return stats
}
