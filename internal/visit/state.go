package visit

// State is a phase of one visit attempt.
type State int

const (
	StateLaunching State = iota
	StatePageReady
	StateNavigating
	StateRedirecting
	StateGraphCapture
	StateExporting
	StateClosed
	StateFailed
)

var stateNames = [...]string{
	StateLaunching:    "launching",
	StatePageReady:    "page_ready",
	StateNavigating:   "navigating",
	StateRedirecting:  "redirecting",
	StateGraphCapture: "graph_capture",
	StateExporting:    "exporting",
	StateClosed:       "closed",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
