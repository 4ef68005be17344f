// Package traffic turns recorded DevTools protocol events into a HAR
// traffic archive.
package traffic

import (
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

// Recorder collects the protocol events the assembler understands. It is
// fed from the browser event loop and read once the visit is exporting.
type Recorder struct {
	mu     sync.Mutex
	events []any
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record keeps ev if it is relevant to the archive and reports whether it
// was kept.
func (r *Recorder) Record(ev any) bool {
	switch ev.(type) {
	case *network.EventRequestWillBeSent,
		*network.EventRequestServedFromCache,
		*network.EventResponseReceived,
		*network.EventDataReceived,
		*network.EventLoadingFinished,
		*network.EventLoadingFailed,
		*page.EventDomContentEventFired,
		*page.EventLoadEventFired:
	default:
		return false
	}

	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return true
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.events))
	copy(out, r.events)
	return out
}

// Len is the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
