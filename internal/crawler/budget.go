package crawler

import "sync"

// pageBudget bounds the number of pages a crawl fetches successfully.
//
// A fetch reserves a page before it starts. A successful fetch spends the
// reservation; a failed one releases it. When every page is reserved but not
// yet spent, reserve waits for an in-flight fetch to settle instead of
// giving up, so a failure never leaves the budget short.
type pageBudget struct {
	mu       sync.Mutex
	cond     *sync.Cond
	limit    int
	reserved int // in flight plus spent
	spent    int
	closed   bool
}

func newPageBudget(limit int) *pageBudget {
	b := &pageBudget{limit: limit}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// reserve claims a page. It returns false once the budget is spent or
// closed.
func (b *pageBudget) reserve() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if b.closed || b.spent >= b.limit {
			return false
		}
		if b.reserved < b.limit {
			b.reserved++
			return true
		}
		b.cond.Wait()
	}
}

// spend marks a reservation as a crawled page.
func (b *pageBudget) spend() {
	b.mu.Lock()
	b.spent++
	b.mu.Unlock()
	b.cond.Broadcast()
}

// release gives back a reservation whose fetch failed.
func (b *pageBudget) release() {
	b.mu.Lock()
	b.reserved--
	b.mu.Unlock()
	b.cond.Broadcast()
}

// exhausted reports whether every page has been crawled.
func (b *pageBudget) exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent >= b.limit
}

// close wakes every waiting reserve and makes later ones fail.
func (b *pageBudget) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}
