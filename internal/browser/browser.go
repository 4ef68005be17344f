// internal/browser/browser.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/law-makers/pagegraph-crawl/internal/visit"
)

// Browser is one running browser process.
type Browser struct {
	mu sync.Mutex

	// initial is the blank tab the browser starts with. The first page
	// replaces it.
	initial     target.ID
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      zerolog.Logger
}

// NewPage opens a tab, configures it and starts request interception.
func (b *Browser) NewPage(ctx context.Context, opts visit.PageOptions) (visit.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	p := &Page{
		ctx:        tabCtx,
		cancel:     tabCancel,
		browserCtx: b.ctx,
		opts:       opts,
		domReady:   make(chan struct{}, 1),
		crashed:    make(chan struct{}),
		logger:     b.logger,
	}
	chromedp.ListenTarget(tabCtx, p.handleEvent)

	setup := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			c := chromedp.FromContext(ctx)
			if c == nil || c.Target == nil {
				return errors.New("tab has no target")
			}
			p.setTarget(c.Target.TargetID)
			return nil
		}),
		network.Enable(),
		network.SetCacheDisabled(true),
	}
	if opts.AcceptLanguage != "" {
		setup = append(setup, network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": opts.AcceptLanguage}))
	}
	if opts.UserAgent != "" {
		setup = append(setup, emulation.SetUserAgentOverride(opts.UserAgent).WithAcceptLanguage(opts.AcceptLanguage))
	}
	setup = append(setup, fetch.Enable().WithPatterns([]*fetch.RequestPattern{
		{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
	}))

	if err := p.run(ctx, setup...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("prepare page: %w", err)
	}
	if id := b.takeInitial(); id != "" {
		if err := closeTarget(ctx, b.ctx, id); err != nil {
			b.logger.Debug().Err(err).Str("target", string(id)).Msg("Initial tab not closed")
		}
	}
	return p, nil
}

// takeInitial returns the initial tab once; later calls return "".
func (b *Browser) takeInitial() target.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.initial
	b.initial = ""
	return id
}

// Close asks the browser to exit and waits for the process.
func (b *Browser) Close(context.Context) error {
	err := chromedp.Cancel(b.ctx)
	b.allocCancel()
	return err
}

// Kill terminates the browser process.
func (b *Browser) Kill() error {
	var err error
	if c := chromedp.FromContext(b.ctx); c != nil && c.Browser != nil {
		if proc := c.Browser.Process(); proc != nil {
			err = proc.Kill()
		}
	}
	b.cancel()
	b.allocCancel()
	return err
}
