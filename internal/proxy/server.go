// Package proxy runs the intercepting proxy that every browser is pointed
// at. HTML responses get the consent script inserted before </body>.
package proxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/elazarl/goproxy"
	"github.com/rs/zerolog"

	"github.com/law-makers/pagegraph-crawl/internal/metrics"
)

// Options configure a Server.
type Options struct {
	// Addr is the listen address, e.g. "127.0.0.1:8080".
	Addr string
	// Script is the raw JavaScript to inject. Empty uses DefaultScript.
	Script []byte
	// CA signs the per-host MITM certificates. Nil uses goproxy's CA.
	CA     *tls.Certificate
	Logger zerolog.Logger
}

// Server is one proxy instance, owned by one worker.
type Server struct {
	opts  Options
	tag   []byte
	proxy *goproxy.ProxyHttpServer

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// printfLogger adapts zerolog to goproxy's logger.
type printfLogger struct {
	logger zerolog.Logger
}

func (l printfLogger) Printf(format string, v ...any) {
	l.logger.Debug().Msgf(format, v...)
}

// New builds a proxy. It fails when the script does not compile.
func New(opts Options) (*Server, error) {
	script := opts.Script
	if len(bytes.TrimSpace(script)) == 0 {
		script = DefaultScript()
	}
	if err := CheckScript(script); err != nil {
		return nil, err
	}
	if opts.CA == nil {
		ca := goproxy.GoproxyCa
		opts.CA = &ca
	}

	s := &Server{
		opts: opts,
		tag:  WrapScript(script),
	}

	p := goproxy.NewProxyHttpServer()
	p.Logger = printfLogger{logger: opts.Logger}

	mitm := &goproxy.ConnectAction{
		Action:    goproxy.ConnectMitm,
		TLSConfig: goproxy.TLSConfigFromCA(opts.CA),
	}
	p.OnRequest().HandleConnect(goproxy.FuncHttpsHandler(func(host string, _ *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
		return mitm, host
	}))

	// The transport then negotiates and decodes compression itself, so
	// bodies reach the response handler in plain form.
	p.OnRequest().DoFunc(func(r *http.Request, _ *goproxy.ProxyCtx) (*http.Request, *http.Response) {
		r.Header.Del("Accept-Encoding")
		return r, nil
	})

	p.OnResponse().DoFunc(s.rewrite)

	s.proxy = p
	return s, nil
}

func isHTML(resp *http.Response) bool {
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	return strings.HasPrefix(strings.TrimSpace(ct), "text/html")
}

func encoded(resp *http.Response) bool {
	ce := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	return ce != "" && ce != "identity"
}

// bodiless reports responses that carry no body whatever their headers
// say: HEAD replies, 1xx, 204 and 304.
func bodiless(resp *http.Response, ctx *goproxy.ProxyCtx) bool {
	if ctx != nil && ctx.Req != nil && ctx.Req.Method == http.MethodHead {
		return true
	}
	c := resp.StatusCode
	return (c >= 100 && c < 200) || c == http.StatusNoContent || c == http.StatusNotModified
}

// rewrite buffers HTML responses and injects the script.
func (s *Server) rewrite(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
	if resp == nil || resp.Body == nil || !isHTML(resp) || encoded(resp) || bodiless(resp, ctx) {
		return resp
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		s.opts.Logger.Debug().Err(err).Str("url", requestURL(ctx)).Msg("Reading upstream body failed")
		return goproxy.NewResponse(ctx.Req, goproxy.ContentTypeText, http.StatusBadGateway, "upstream body read failed")
	}

	out, injected := InjectScript(body, s.tag)
	if injected {
		metrics.ObserveInjection()
	}

	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.TransferEncoding = nil
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	return resp
}

func requestURL(ctx *goproxy.ProxyCtx) string {
	if ctx == nil || ctx.Req == nil || ctx.Req.URL == nil {
		return ""
	}
	return ctx.Req.URL.String()
}

// Start begins listening. It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return errors.New("proxy already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	srv := &http.Server{Handler: s.proxy}
	s.ln, s.srv = ln, srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.opts.Logger.Error().Err(err).Str("addr", ln.Addr().String()).Msg("Proxy stopped")
		}
	}()

	s.opts.Logger.Info().Str("addr", ln.Addr().String()).Msg("Proxy listening")
	return nil
}

// Addr is the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.opts.Addr
}

// Close stops accepting connections and waits for active requests
// until ctx ends.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.ln = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return srv.Close()
	}
	return nil
}
