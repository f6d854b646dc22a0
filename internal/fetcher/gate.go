package fetcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// HostGate bounds concurrent requests per host and spaces consecutive
// requests to a host by its Crawl-delay.
type HostGate struct {
	limit int64

	mu    sync.Mutex
	hosts map[string]*hostSlot
}

type hostSlot struct {
	sem   *semaphore.Weighted
	delay time.Duration
	next  time.Time // earliest start of the next request
}

// NewHostGate creates a gate that admits at most limit requests per host.
func NewHostGate(limit int) *HostGate {
	if limit < 1 {
		limit = 1
	}
	return &HostGate{
		limit: int64(limit),
		hosts: make(map[string]*hostSlot),
	}
}

func (g *HostGate) slot(host string) *hostSlot {
	host = strings.ToLower(host)

	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.hosts[host]
	if !ok {
		s = &hostSlot{sem: semaphore.NewWeighted(g.limit)}
		g.hosts[host] = s
	}
	return s
}

// SetDelay sets the minimum spacing between request starts for host.
func (g *HostGate) SetDelay(host string, delay time.Duration) {
	s := g.slot(host)

	g.mu.Lock()
	s.delay = delay
	g.mu.Unlock()
}

// Acquire waits for a slot on host and for its spacing delay to elapse.
// The returned function releases the slot and must be called exactly once.
func (g *HostGate) Acquire(ctx context.Context, host string) (func(), error) {
	s := g.slot(host)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	release := func() { s.sem.Release(1) }

	g.mu.Lock()
	var wait time.Duration
	if s.delay > 0 {
		now := time.Now()
		start := now
		if s.next.After(now) {
			start = s.next
		}
		s.next = start.Add(s.delay)
		wait = start.Sub(now)
	}
	g.mu.Unlock()

	if err := sleep(ctx, wait); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
