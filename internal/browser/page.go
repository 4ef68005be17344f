// internal/browser/page.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/law-makers/pagegraph-crawl/internal/visit"
)

// commandGeneratePageGraph is Brave's PageGraph export. It is not part
// of the upstream protocol definitions.
const commandGeneratePageGraph = "Page.generatePageGraph"

// Page is one tab of a Browser.
type Page struct {
	ctx        context.Context
	cancel     context.CancelFunc
	browserCtx context.Context
	opts       visit.PageOptions

	mu       sync.Mutex
	targetID target.ID

	domReady  chan struct{}
	crashed   chan struct{}
	crashOnce sync.Once
	logger    zerolog.Logger
}

type navigateResult struct {
	FrameID   string `json:"frameId"`
	LoaderID  string `json:"loaderId"`
	ErrorText string `json:"errorText"`
}

type pageGraphResult struct {
	Data string `json:"data"`
}

type closeTargetResult struct {
	Success bool `json:"success"`
}

func (p *Page) setTarget(id target.ID) {
	p.mu.Lock()
	p.targetID = id
	p.mu.Unlock()
}

func (p *Page) target() target.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.targetID
}

// handleEvent runs on the chromedp event loop and must not block on
// protocol calls.
func (p *Page) handleEvent(ev any) {
	switch e := ev.(type) {
	case *fetch.EventRequestPaused:
		stop := false
		if p.opts.OnRequest != nil && e.Request != nil {
			stop = p.opts.OnRequest(visit.Request{
				URL:        e.Request.URL,
				Navigation: e.ResourceType == network.ResourceTypeDocument,
				MainFrame:  string(e.FrameID) == string(p.target()),
			})
		}
		go p.resume(e.RequestID, stop)

	case *page.EventDomContentEventFired:
		select {
		case p.domReady <- struct{}{}:
		default:
		}

	case *inspector.EventTargetCrashed:
		p.crashOnce.Do(func() { close(p.crashed) })
		p.logger.Warn().Msg("Page target crashed")
	}

	if p.opts.OnEvent != nil {
		p.opts.OnEvent(ev)
	}
}

// resume lets a paused request continue, stopping the page load first
// when asked to.
func (p *Page) resume(id fetch.RequestID, stop bool) {
	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return
	}
	ctx := cdp.WithExecutor(p.ctx, c.Target)
	if stop {
		if err := page.StopLoading().Do(ctx); err != nil {
			p.logger.Debug().Err(err).Msg("Stop loading failed")
		}
	}
	if err := fetch.ContinueRequest(id).Do(ctx); err != nil {
		p.logger.Debug().Err(err).Str("request", string(id)).Msg("Continue request failed")
	}
}

// run executes actions on the tab while honoring ctx. Canceling ctx only
// abandons the actions, the tab stays open.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for DOMContentLoaded.
func (p *Page) Navigate(ctx context.Context, url string) error {
	select {
	case <-p.domReady:
	default:
	}

	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var res navigateResult
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return fmt.Errorf("navigate %s: %s", url, res.ErrorText)
		}
		select {
		case <-p.domReady:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
}

// GeneratePageGraph asks the browser for the GraphML page graph.
func (p *Page) GeneratePageGraph(ctx context.Context) ([]byte, error) {
	var res pageGraphResult
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return cdp.Execute(ctx, commandGeneratePageGraph, nil, &res)
	}))
	if err != nil {
		return nil, err
	}
	if res.Data == "" {
		return nil, errors.New("empty page graph")
	}
	return []byte(res.Data), nil
}

// Screenshot captures the viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes the tab and waits for the target to go away.
func (p *Page) Close(context.Context) error {
	return chromedp.Cancel(p.ctx)
}

// ForceClose closes the target through the browser-level connection,
// which works even when the tab no longer answers.
func (p *Page) ForceClose(ctx context.Context) error {
	defer p.cancel()
	id := p.target()
	if id == "" {
		return errors.New("page has no target")
	}
	return closeTarget(ctx, p.browserCtx, id)
}

// closeTarget closes id through the browser-level connection of browserCtx.
func closeTarget(ctx, browserCtx context.Context, id target.ID) error {
	bc := chromedp.FromContext(browserCtx)
	if bc == nil || bc.Browser == nil {
		return errors.New("no browser connection")
	}
	var res closeTargetResult
	return cdp.Execute(cdp.WithExecutor(ctx, bc.Browser), target.CommandCloseTarget, target.CloseTarget(id), &res)
}

// Crashed is closed once the renderer crashed.
func (p *Page) Crashed() <-chan struct{} {
	return p.crashed
}
