package crawler

import "sync"

// Entry is a URL waiting in the frontier.
type Entry struct {
	// URL is canonical.
	URL string

	// Depth is the number of links followed from the seed.
	Depth int

	// Parent is the page the URL was found on. Empty for the seed.
	Parent string
}

// Frontier is the FIFO queue of a breadth-first crawl.
//
// Next blocks while the queue is empty but some worker is still processing
// an entry, because that worker may push new links. Once the queue is empty
// and no entry is in progress the frontier is drained and every blocked
// Next returns false.
type Frontier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Entry
	head   int
	active int
	closed bool
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	f := &Frontier{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Push appends e. It returns false when the frontier is closed.
func (f *Frontier) Push(e Entry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	f.queue = append(f.queue, e)
	f.cond.Signal()
	return true
}

// Next removes the oldest entry and marks it in progress. The caller must
// call Done when it has finished with the entry. Next returns false when
// the frontier is closed or drained.
func (f *Frontier) Next() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.closed {
			return Entry{}, false
		}
		if f.head < len(f.queue) {
			e := f.queue[f.head]
			f.queue[f.head] = Entry{}
			f.head++
			if f.head == len(f.queue) {
				f.queue = f.queue[:0]
				f.head = 0
			}
			f.active++
			return e, true
		}
		if f.active == 0 {
			return Entry{}, false
		}
		f.cond.Wait()
	}
}

// Done marks an entry returned by Next as finished.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.active--
	if f.active == 0 && f.head == len(f.queue) {
		f.cond.Broadcast()
	}
}

// Close wakes every waiting worker and rejects further pushes. Entries
// still queued are abandoned.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.cond.Broadcast()
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) - f.head
}

// VisitedSet holds every canonical URL that was enqueued or fetched.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// Add inserts u and reports whether it was absent. Two concurrent Adds of
// the same URL never both return true.
func (v *VisitedSet) Add(u string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.urls[u]; ok {
		return false
	}
	v.urls[u] = struct{}{}
	return true
}

// Contains reports whether u was added.
func (v *VisitedSet) Contains(u string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.urls[u]
	return ok
}

// Len returns the number of URLs in the set.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}
