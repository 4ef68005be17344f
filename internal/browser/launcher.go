// internal/browser/launcher.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/law-makers/pagegraph-crawl/internal/visit"
)

// disabledFeatures keeps Brave from opening panels, ads or network
// side traffic that would pollute page graphs.
var disabledFeatures = []string{
	"Speedreader",
	"Playlist",
	"BraveVPN",
	"AIRewriter",
	"AIChat",
	"BravePlayer",
	"BraveDebounce",
	"BraveRewards",
	"BraveSearchOmniboxBanner",
	"BraveGoogleSignInPermission",
	"BraveNTPBrandedWallpaper",
	"AdEvent",
	"NewTabPageAds",
	"CustomNotificationAds",
	"InlineContentAds",
	"PromotedContentAds",
	"TextClassification",
	"SiteVisit",
	"IPH_SidePanelGenericMenuFeature",
}

// Options configure every browser the launcher starts.
type Options struct {
	ExecPath  string
	Headless  bool
	UserAgent string
	// ExtraFlags are passed as --name=value.
	ExtraFlags map[string]string
	Logger     zerolog.Logger
}

// Launcher starts Brave through chromedp. It satisfies visit.Launcher.
type Launcher struct {
	opts Options
}

// NewLauncher returns a Launcher. The browser binary is resolved once.
func NewLauncher(opts Options) *Launcher {
	opts.ExecPath = FindBrowser(opts.ExecPath)
	return &Launcher{opts: opts}
}

// flags builds the command line for one launch, without the binary.
func (l *Launcher) flags(lo visit.LaunchOptions) map[string]any {
	f := map[string]any{
		"no-first-run":                    true,
		"no-default-browser-check":        true,
		"enable-features":                 "PageGraph",
		"disable-features":                strings.Join(disabledFeatures, ","),
		"disable-blink-features":          "AutomationControlled",
		"ignore-certificate-errors":       true,
		"no-sandbox":                      true,
		"disable-dev-shm-usage":           true,
		"disable-sync":                    true,
		"disable-breakpad":                true,
		"disable-component-update":        true,
		"disable-brave-update":            true,
		"disable-site-isolation-trials":   true,
		"disable-renderer-backgrounding":  true,
		"disable-ipc-flooding-protection": true,
		"disable-infobars":                true,
		"mute-audio":                      true,
		"window-size":                     "1920,1080",
		"user-data-dir":                   lo.ProfileDir,
		"headless":                        false,
	}
	if l.opts.Headless {
		f["headless"] = "new"
	}
	if lo.ProxyServer != "" {
		f["proxy-server"] = lo.ProxyServer
	}
	if l.opts.UserAgent != "" {
		f["user-agent"] = l.opts.UserAgent
	}
	for k, v := range l.opts.ExtraFlags {
		f[k] = v
	}
	return f
}

// allocatorOptions turns flags into chromedp allocator options.
func (l *Launcher) allocatorOptions(lo visit.LaunchOptions) []chromedp.ExecAllocatorOption {
	var opts []chromedp.ExecAllocatorOption
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}
	for k, v := range l.flags(lo) {
		opts = append(opts, chromedp.Flag(k, v))
	}
	return opts
}

// Launch starts a browser process and connects to it. One call is one
// attempt.
func (l *Launcher) Launch(ctx context.Context, lo visit.LaunchOptions) (visit.Browser, error) {
	// The browser outlives the launch call, so its allocator must not be
	// tied to ctx; cancellation during startup is handled below.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions(lo)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("start browser: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, ctx.Err()
	}

	c := chromedp.FromContext(browserCtx)
	if c == nil || c.Browser == nil || c.Target == nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: no browser connection")
	}

	l.opts.Logger.Debug().
		Str("profile", lo.ProfileDir).
		Str("proxy", lo.ProxyServer).
		Msg("Browser started")

	return &Browser{
		initial:     c.Target.TargetID,
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		logger:      l.opts.Logger,
	}, nil
}
