package browser

import (
	"testing"

	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"

	"github.com/law-makers/pagegraph-crawl/internal/visit"
)

func TestFlags_QuietBrowser(t *testing.T) {
	l := &Launcher{opts: Options{}}
	f := l.flags(visit.LaunchOptions{ProfileDir: "/tmp/p"})

	for _, name := range []string{
		"disable-component-update",
		"disable-site-isolation-trials",
		"disable-renderer-backgrounding",
		"disable-ipc-flooding-protection",
		"disable-brave-update",
		"disable-infobars",
		"no-first-run",
	} {
		assert.Equal(t, true, f[name], name)
	}
	assert.Equal(t, "/tmp/p", f["user-data-dir"])
	assert.Equal(t, false, f["headless"])
	assert.NotContains(t, f, "proxy-server")
	assert.NotContains(t, f, "user-agent")
}

func TestFlags_Overrides(t *testing.T) {
	l := &Launcher{opts: Options{
		Headless:   true,
		UserAgent:  "ua",
		ExtraFlags: map[string]string{"mute-audio": "false", "lang": "de"},
	}}
	f := l.flags(visit.LaunchOptions{ProxyServer: "http://127.0.0.1:9000"})

	assert.Equal(t, "new", f["headless"])
	assert.Equal(t, "ua", f["user-agent"])
	assert.Equal(t, "http://127.0.0.1:9000", f["proxy-server"])
	assert.Equal(t, "false", f["mute-audio"])
	assert.Equal(t, "de", f["lang"])
}

func TestAllocatorOptions_OnePerFlag(t *testing.T) {
	l := &Launcher{opts: Options{ExecPath: "/usr/bin/brave"}}
	lo := visit.LaunchOptions{ProfileDir: "/tmp/p"}
	assert.Len(t, l.allocatorOptions(lo), len(l.flags(lo))+1)
}

func TestTakeInitial_Once(t *testing.T) {
	b := &Browser{initial: target.ID("first")}
	assert.Equal(t, target.ID("first"), b.takeInitial())
	assert.Empty(t, b.takeInitial())
}
