package visit

import (
	"context"
	"errors"
	"sync"
)

const testGraph = `<graphml><desc><url>http://a.example/</url></desc></graphml>`

type fakePage struct {
	mu       sync.Mutex
	opts     PageOptions
	navigate func(ctx context.Context, p *fakePage, url string) error
	graph    func(ctx context.Context) ([]byte, error)
	shot     func(ctx context.Context) ([]byte, error)

	hangOnClose bool
	crashed     chan struct{}
	navigated   []string
	closed      bool
	forced      bool
}

func newFakePage() *fakePage {
	return &fakePage{crashed: make(chan struct{})}
}

// request replays a request through the machine's interception hook.
func (p *fakePage) request(url string) bool {
	return p.opts.OnRequest(Request{URL: url, Navigation: true, MainFrame: true})
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.navigated = append(p.navigated, url)
	p.mu.Unlock()
	if p.navigate != nil {
		return p.navigate(ctx, p, url)
	}
	p.request(url)
	return nil
}

func (p *fakePage) GeneratePageGraph(ctx context.Context) ([]byte, error) {
	if p.graph != nil {
		return p.graph(ctx)
	}
	return []byte(testGraph), nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if p.shot != nil {
		return p.shot(ctx)
	}
	return []byte("\x89PNG"), nil
}

func (p *fakePage) Close(ctx context.Context) error {
	if p.hangOnClose {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePage) ForceClose(context.Context) error {
	p.mu.Lock()
	p.forced = true
	p.mu.Unlock()
	return nil
}

func (p *fakePage) Crashed() <-chan struct{} { return p.crashed }

type fakeBrowser struct {
	mu          sync.Mutex
	page        *fakePage
	hangOnClose bool
	closed      bool
	killed      bool
	profile     string
}

func (b *fakeBrowser) NewPage(_ context.Context, opts PageOptions) (Page, error) {
	b.page.opts = opts
	return b.page, nil
}

func (b *fakeBrowser) Close(ctx context.Context) error {
	if b.hangOnClose {
		<-ctx.Done()
		return ctx.Err()
	}
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBrowser) Kill() error {
	b.mu.Lock()
	b.killed = true
	b.mu.Unlock()
	return nil
}

// fakeLauncher builds one browser per successful launch. setup configures
// the browser of the n-th successful launch (0-based).
type fakeLauncher struct {
	mu       sync.Mutex
	failures int
	calls    int
	browsers []*fakeBrowser
	setup    func(n int, b *fakeBrowser)
}

func (l *fakeLauncher) Launch(_ context.Context, opts LaunchOptions) (Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.failures > 0 {
		l.failures--
		return nil, errors.New("browser binary exited")
	}
	b := &fakeBrowser{page: newFakePage(), profile: opts.ProfileDir}
	if l.setup != nil {
		l.setup(len(l.browsers), b)
	}
	l.browsers = append(l.browsers, b)
	return b, nil
}
