package visit

import (
	"sync"

	urlutil "github.com/law-makers/pagegraph-crawl/internal/utils/url"
)

// RedirectChain is the ordered set of normalized URLs of one logical
// visit. A URL is never stored twice.
type RedirectChain struct {
	mu   sync.Mutex
	urls []string
	seen map[string]struct{}
}

// NewRedirectChain starts a chain at start.
func NewRedirectChain(start string) *RedirectChain {
	c := &RedirectChain{seen: make(map[string]struct{})}
	c.Add(start)
	return c
}

// Add normalizes u and appends it. It reports false when u was already
// part of the chain.
func (c *RedirectChain) Add(u string) bool {
	n := urlutil.Normalize(u)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[n]; ok {
		return false
	}
	c.seen[n] = struct{}{}
	c.urls = append(c.urls, n)
	return true
}

// URLs returns the chain in visit order.
func (c *RedirectChain) URLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.urls))
	copy(out, c.urls)
	return out
}

// Len is the number of URLs in the chain.
func (c *RedirectChain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.urls)
}
