package proxy

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elazarl/goproxy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectScript(t *testing.T) {
	tag := []byte("<script>x()</script>")

	tests := []struct {
		name     string
		body     string
		want     string
		injected bool
	}{
		{"before body close", "<html><body>hi</body></html>", "<html><body>hi<script>x()</script></body></html>", true},
		{"first occurrence only", "<body></body><body></body>", "<body><script>x()</script></body><body></body>", true},
		{"no body tag", "<html>hi</html>", "<html>hi</html>", false},
		{"upper case tag is left alone", "<BODY>hi</BODY>", "<BODY>hi</BODY>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := InjectScript([]byte(tt.body), tag)
			assert.Equal(t, tt.injected, ok)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestWrapScript(t *testing.T) {
	got := string(WrapScript([]byte("go()")))
	assert.Equal(t, "<script>(async () => {\ngo()\n})();</script>", got)
}

func TestCheckScript(t *testing.T) {
	require.NoError(t, CheckScript(DefaultScript()))
	require.NoError(t, CheckScript([]byte("await Promise.resolve(1);")))
	require.Error(t, CheckScript([]byte("function (")))
}

func TestNewRejectsBrokenScript(t *testing.T) {
	_, err := New(Options{Addr: "127.0.0.1:0", Script: []byte("if (")})
	require.Error(t, err)
}

func startProxy(t *testing.T) (*Server, *http.Client) {
	t.Helper()
	s, err := New(Options{Addr: "127.0.0.1:0", Script: []byte("window.injected = true;"), Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})

	proxyURL, err := url.Parse("http://" + s.Addr())
	require.NoError(t, err)
	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		Timeout:   5 * time.Second,
	}
	return s, client
}

func TestServerInjectsIntoHTML(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<html><body><p>page</p></body></html>")
	}))
	defer upstream.Close()

	_, client := startProxy(t)

	resp, err := client.Get(upstream.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "<script>(async () => {\nwindow.injected = true;\n})();</script></body>")
	assert.Equal(t, int64(len(body)), resp.ContentLength)
}

func TestServerLeavesOtherContentAlone(t *testing.T) {
	const payload = `{"html":"</body>"}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, payload)
	}))
	defer upstream.Close()

	_, client := startProxy(t)

	resp, err := client.Get(upstream.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestServerKeepsHeadContentLength(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Length", "42")
	}))
	defer upstream.Close()

	_, client := startProxy(t)

	resp, err := client.Head(upstream.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "42", resp.Header.Get("Content-Length"))
}

func TestBodiless(t *testing.T) {
	get := &goproxy.ProxyCtx{Req: httptest.NewRequest(http.MethodGet, "http://a.example/", nil)}
	head := &goproxy.ProxyCtx{Req: httptest.NewRequest(http.MethodHead, "http://a.example/", nil)}

	assert.False(t, bodiless(&http.Response{StatusCode: http.StatusOK}, get))
	assert.True(t, bodiless(&http.Response{StatusCode: http.StatusOK}, head))
	assert.True(t, bodiless(&http.Response{StatusCode: http.StatusNotModified}, get))
	assert.True(t, bodiless(&http.Response{StatusCode: http.StatusNoContent}, get))
}

// tlsClient sends HTTPS requests through the proxy. Certificates are not
// verified; the tests check the issuer instead.
func tlsClient(t *testing.T, s *Server) *http.Client {
	t.Helper()
	proxyURL, err := url.Parse("http://" + s.Addr())
	require.NoError(t, err)
	return &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		Timeout: 5 * time.Second,
	}
}

func goproxyCA(t *testing.T) *x509.Certificate {
	t.Helper()
	block, _ := pem.Decode(goproxy.CA_CERT)
	require.NotNil(t, block)
	ca, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return ca
}

func TestServerInjectsOverTLS(t *testing.T) {
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html><body>hi</body></html>")
	}))
	defer upstream.Close()

	s, _ := startProxy(t)
	client := tlsClient(t, s)

	resp, err := client.Get(upstream.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<html><body>hi<script>(async () => {\nwindow.injected = true;\n})();</script></body></html>", string(body))

	require.NotNil(t, resp.TLS)
	require.NotEmpty(t, resp.TLS.PeerCertificates)
	assert.Equal(t, goproxyCA(t).Subject.CommonName, resp.TLS.PeerCertificates[0].Issuer.CommonName,
		"connection terminated by the proxy")
}

func TestServerPassesTLSBinaryThrough(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 0xff, '<', '/', 'b', 'o', 'd', 'y', '>'}
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))
	defer upstream.Close()

	s, _ := startProxy(t)
	client := tlsClient(t, s)

	resp, err := client.Get(upstream.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, body)
}

func TestServerStripsAcceptEncoding(t *testing.T) {
	var mu sync.Mutex
	var seen string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = r.Header.Get("Accept-Encoding")
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<body></body>")
	}))
	defer upstream.Close()

	_, client := startProxy(t)

	req, err := http.NewRequest(http.MethodGet, upstream.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "br")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, seen, "br")
}

func TestServerDoubleStart(t *testing.T) {
	s, _ := startProxy(t)
	assert.Error(t, s.Start(context.Background()))
	assert.True(t, strings.HasPrefix(s.Addr(), "127.0.0.1:"))
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	listed bool
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
	for _, a := range args {
		if a == "-L" {
			if f.listed {
				return nil, nil
			}
			return []byte("not found"), errors.New("exit status 255")
		}
		if a == "-A" {
			f.listed = true
		}
	}
	return nil, nil
}

func TestTrustStoreImportsOnce(t *testing.T) {
	f := &fakeRunner{}
	ts := &TrustStore{DBDir: t.TempDir(), Run: f.run, Logger: zerolog.Nop()}

	require.NoError(t, ts.Register(context.Background(), "/tmp/ca.pem"))
	require.NoError(t, ts.Register(context.Background(), "/tmp/ca.pem"))

	require.Len(t, f.calls, 2)
	assert.Contains(t, f.calls[0], "-L")
	assert.Contains(t, f.calls[1], "-A")
	assert.Contains(t, f.calls[1], "/tmp/ca.pem")
	assert.Contains(t, f.calls[1], DefaultNickname)
}

func TestTrustStoreSkipsKnownNickname(t *testing.T) {
	f := &fakeRunner{listed: true}
	ts := &TrustStore{DBDir: t.TempDir(), Nickname: "ca", Run: f.run, Logger: zerolog.Nop()}

	require.NoError(t, ts.Register(context.Background(), ""))
	require.Len(t, f.calls, 1)
	assert.Contains(t, f.calls[0], "-L")
}
