package proxy

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/dop251/goja"
)

//go:embed resources/consent.js
var defaultScript []byte

var bodyClose = []byte("</body>")

// DefaultScript returns the embedded consent script.
func DefaultScript() []byte {
	return append([]byte(nil), defaultScript...)
}

// WrapScript turns raw JavaScript into the tag that gets injected. The
// script runs as an async function so it may use await at top level.
func WrapScript(js []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(js) + 48)
	b.WriteString("<script>(async () => {\n")
	b.Write(js)
	b.WriteString("\n})();</script>")
	return b.Bytes()
}

// CheckScript compiles js the way WrapScript will run it.
func CheckScript(js []byte) error {
	src := "(async () => {\n" + string(js) + "\n})();"
	if _, err := goja.Compile("consent.js", src, false); err != nil {
		return fmt.Errorf("compile injected script: %w", err)
	}
	return nil
}

// InjectScript inserts tag before the first </body>. The body is
// returned unchanged, with false, when there is no such tag.
func InjectScript(body, tag []byte) ([]byte, bool) {
	i := bytes.Index(body, bodyClose)
	if i < 0 {
		return body, false
	}
	out := make([]byte, 0, len(body)+len(tag))
	out = append(out, body[:i]...)
	out = append(out, tag...)
	out = append(out, body[i:]...)
	return out, true
}
