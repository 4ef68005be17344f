package visit

import "context"

// LaunchOptions are the per-visit parts of a browser launch.
type LaunchOptions struct {
	ProfileDir  string
	ProxyServer string
}

// Launcher starts one browser process. A single call is one attempt;
// retries are the Machine's job.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is a running browser process.
type Browser interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	// Close asks the browser to exit and waits for it.
	Close(ctx context.Context) error
	// Kill terminates the process without asking.
	Kill() error
}

// Request describes an intercepted network request.
type Request struct {
	URL        string
	Navigation bool
	MainFrame  bool
}

// PageOptions configure a new page before it navigates.
type PageOptions struct {
	AcceptLanguage string
	UserAgent      string
	// OnRequest sees every intercepted request in order. Returning true
	// makes the page stop loading; the request is continued either way.
	OnRequest func(Request) bool
	// OnEvent receives raw protocol events for traffic capture.
	OnEvent func(ev any)
}

// Page is one browser tab.
type Page interface {
	// Navigate loads url and returns once DOMContentLoaded fired.
	Navigate(ctx context.Context, url string) error
	GeneratePageGraph(ctx context.Context) ([]byte, error)
	Screenshot(ctx context.Context) ([]byte, error)
	// Close closes the tab gracefully.
	Close(ctx context.Context) error
	// ForceClose closes the target through the browser connection.
	ForceClose(ctx context.Context) error
	// Crashed is closed when the renderer of the page crashed.
	Crashed() <-chan struct{}
}
