package visit

import (
	"sync"

	urlutil "github.com/law-makers/pagegraph-crawl/internal/utils/url"
)

// redirectDetector watches the requests of one page load. The first
// request passes; later main-frame navigations are redirects until graph
// capture disarms it.
type redirectDetector struct {
	mu       sync.Mutex
	chain    *RedirectChain
	started  bool
	disarmed bool
	pending  string
	absorbed []string
	stop     chan struct{}
	stopped  bool
}

func newRedirectDetector(chain *RedirectChain) *redirectDetector {
	return &redirectDetector{chain: chain, stop: make(chan struct{})}
}

// Observe is called for every intercepted request and reports whether
// the page should stop loading.
func (d *redirectDetector) Observe(r Request) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		d.started = true
		return false
	}
	if d.disarmed || !r.Navigation || !r.MainFrame {
		return false
	}

	target := urlutil.Normalize(r.URL)
	if !d.chain.Add(target) {
		d.absorbed = append(d.absorbed, target)
		return true
	}
	d.pending = target
	if !d.stopped {
		d.stopped = true
		close(d.stop)
	}
	return true
}

// Pending returns the redirect target to restart with, if any.
func (d *redirectDetector) Pending() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Absorbed lists redirects that hit a URL already in the chain.
func (d *redirectDetector) Absorbed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.absorbed))
	copy(out, d.absorbed)
	return out
}

// Disarm stops redirect handling; called when graph capture begins.
func (d *redirectDetector) Disarm() {
	d.mu.Lock()
	d.disarmed = true
	d.mu.Unlock()
}

// Stop is closed once a redirect asks the visit to stop waiting.
func (d *redirectDetector) Stop() <-chan struct{} {
	return d.stop
}
