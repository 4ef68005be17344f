package traffic

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/har"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

const (
	harVersion = "1.2"
	pageID     = "page_1"
)

// Options describe the archive's creator block.
type Options struct {
	CreatorName    string
	CreatorVersion string
}

type pending struct {
	req       *network.Request
	resp      *network.Response
	wall      time.Time
	start     float64
	end       float64
	data      int64
	encoded   float64
	fromCache bool
}

type assembler struct {
	open      map[network.RequestID]*pending
	done      []*pending
	pageStart float64
	pageWall  time.Time
	pageTitle string
	onContent float64
	onLoad    float64
}

// Assemble builds a HAR log from events in arrival order. Requests that
// never received a response are left out.
func Assemble(events []any, opts Options) *har.HAR {
	a := &assembler{
		open:      make(map[network.RequestID]*pending),
		onContent: -1,
		onLoad:    -1,
	}
	for _, ev := range events {
		a.apply(ev)
	}
	for _, p := range a.open {
		a.done = append(a.done, p)
	}
	return a.build(opts)
}

func (a *assembler) apply(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if prev, ok := a.open[e.RequestID]; ok && e.RedirectResponse != nil {
			prev.resp = e.RedirectResponse
			prev.end = seconds(e.Timestamp)
			a.done = append(a.done, prev)
		}
		p := &pending{req: e.Request, wall: wallTime(e.WallTime), start: seconds(e.Timestamp)}
		a.open[e.RequestID] = p
		if a.pageTitle == "" && e.Type == network.ResourceTypeDocument && e.Request != nil {
			a.pageTitle = e.Request.URL
			a.pageStart = p.start
			a.pageWall = p.wall
		}

	case *network.EventRequestServedFromCache:
		if p, ok := a.open[e.RequestID]; ok {
			p.fromCache = true
		}

	case *network.EventResponseReceived:
		if p, ok := a.open[e.RequestID]; ok {
			p.resp = e.Response
		}

	case *network.EventDataReceived:
		if p, ok := a.open[e.RequestID]; ok {
			p.data += e.DataLength
		}

	case *network.EventLoadingFinished:
		if p, ok := a.open[e.RequestID]; ok {
			p.encoded = e.EncodedDataLength
			p.end = seconds(e.Timestamp)
			a.done = append(a.done, p)
			delete(a.open, e.RequestID)
		}

	case *network.EventLoadingFailed:
		if p, ok := a.open[e.RequestID]; ok {
			p.end = seconds(e.Timestamp)
			a.done = append(a.done, p)
			delete(a.open, e.RequestID)
		}

	case *page.EventDomContentEventFired:
		if a.onContent < 0 && a.pageStart > 0 {
			a.onContent = (seconds(e.Timestamp) - a.pageStart) * 1000
		}

	case *page.EventLoadEventFired:
		if a.onLoad < 0 && a.pageStart > 0 {
			a.onLoad = (seconds(e.Timestamp) - a.pageStart) * 1000
		}
	}
}

func (a *assembler) build(opts Options) *har.HAR {
	name := opts.CreatorName
	if name == "" {
		name = "pagegraph-crawl"
	}
	log := &har.Log{
		Version: harVersion,
		Creator: &har.Creator{Name: name, Version: opts.CreatorVersion},
		Pages:   []*har.Page{},
		Entries: []*har.Entry{},
	}

	if a.pageTitle != "" {
		log.Pages = append(log.Pages, &har.Page{
			StartedDateTime: formatTime(a.pageWall),
			ID:              pageID,
			Title:           a.pageTitle,
			PageTimings: &har.PageTimings{
				OnContentLoad: a.onContent,
				OnLoad:        a.onLoad,
			},
		})
	}

	sort.SliceStable(a.done, func(i, j int) bool { return a.done[i].start < a.done[j].start })
	for _, p := range a.done {
		if p.req == nil || p.resp == nil {
			continue
		}
		log.Entries = append(log.Entries, a.entry(p))
	}
	return &har.HAR{Log: log}
}

func (a *assembler) entry(p *pending) *har.Entry {
	total := -1.0
	if p.end > 0 && p.start > 0 {
		total = (p.end - p.start) * 1000
	}
	version := httpVersion(p.resp.Protocol)

	e := &har.Entry{
		StartedDateTime: formatTime(p.wall),
		Time:            total,
		Request: &har.Request{
			Method:      p.req.Method,
			URL:         p.req.URL,
			HTTPVersion: version,
			Cookies:     []*har.Cookie{},
			Headers:     headerPairs(p.req.Headers),
			QueryString: queryPairs(p.req.URL),
			HeadersSize: -1,
			BodySize:    0,
		},
		Response: &har.Response{
			Status:      p.resp.Status,
			StatusText:  p.resp.StatusText,
			HTTPVersion: version,
			Cookies:     []*har.Cookie{},
			Headers:     headerPairs(p.resp.Headers),
			Content: &har.Content{
				Size:     p.data,
				MimeType: p.resp.MimeType,
			},
			RedirectURL: headerValue(p.resp.Headers, "location"),
			HeadersSize: -1,
			BodySize:    int64(p.encoded),
		},
		Cache:           &har.Cache{},
		Timings:         timings(p.resp.Timing, total),
		ServerIPAddress: p.resp.RemoteIPAddress,
	}
	if a.pageTitle != "" {
		e.Pageref = pageID
	}
	if p.fromCache {
		e.Response.BodySize = 0
	}
	return e
}

// timings splits the total time using the resource timing offsets, which
// are milliseconds relative to the request start. Unknown phases are -1.
func timings(t *network.ResourceTiming, total float64) *har.Timings {
	out := &har.Timings{Blocked: -1, DNS: -1, Connect: -1, Send: 0, Wait: 0, Receive: 0}
	if t == nil {
		if total > 0 {
			out.Wait = total
		}
		return out
	}

	firstPhase := t.SendStart
	if t.DNSStart >= 0 {
		out.DNS = nonNegative(t.DNSEnd - t.DNSStart)
		firstPhase = t.DNSStart
	}
	if t.ConnectStart >= 0 {
		out.Connect = nonNegative(t.ConnectEnd - t.ConnectStart)
		if t.DNSStart < 0 {
			firstPhase = t.ConnectStart
		}
	}
	if firstPhase > 0 {
		out.Blocked = firstPhase
	}
	out.Send = nonNegative(t.SendEnd - t.SendStart)
	out.Wait = nonNegative(t.ReceiveHeadersEnd - t.SendEnd)
	if total > 0 {
		out.Receive = nonNegative(total - t.ReceiveHeadersEnd)
	}
	return out
}

func headerPairs(h network.Headers) []*har.NameValuePair {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]*har.NameValuePair, 0, len(names))
	for _, k := range names {
		out = append(out, &har.NameValuePair{Name: k, Value: fmt.Sprint(h[k])})
	}
	return out
}

func headerValue(h network.Headers, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return fmt.Sprint(v)
		}
	}
	return ""
}

func queryPairs(rawURL string) []*har.NameValuePair {
	out := []*har.NameValuePair{}
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return out
	}
	for _, part := range strings.Split(u.RawQuery, "&") {
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		if n, err := url.QueryUnescape(name); err == nil {
			name = n
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		out = append(out, &har.NameValuePair{Name: name, Value: value})
	}
	return out
}

func httpVersion(protocol string) string {
	switch strings.ToLower(protocol) {
	case "":
		return ""
	case "h2":
		return "HTTP/2.0"
	case "h3", "h3-29":
		return "HTTP/3"
	default:
		return strings.ToUpper(protocol)
	}
}

func seconds(t *cdp.MonotonicTime) float64 {
	if t == nil {
		return 0
	}
	return float64(t.Time().UnixNano()) / float64(time.Second)
}

func wallTime(t *cdp.TimeSinceEpoch) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Time()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
