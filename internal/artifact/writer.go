// Package artifact writes the files a visit produces: the page graph,
// the traffic archive and the screenshot, all sharing one base name.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/har"
	"github.com/klauspost/compress/gzip"

	urlutil "github.com/law-makers/pagegraph-crawl/internal/utils/url"
)

const (
	graphExt      = ".graphml"
	gzipExt       = ".gz"
	trafficExt    = ".har"
	screenshotExt = ".png"
	filePrefix    = "page_graph_"
)

// Names are the file paths derived for one visit.
type Names struct {
	Graph      string
	Traffic    string
	Screenshot string
}

// Writer writes artifacts into a single output directory.
type Writer struct {
	dir      string
	compress bool
}

// NewWriter returns a Writer for dir. Graphs are gzipped when compress is
// set.
func NewWriter(dir string, compress bool) *Writer {
	return &Writer{dir: dir, compress: compress}
}

// Base returns page_graph_<slug>_<unix-ts> for a URL and capture time.
func Base(rawURL string, at time.Time) string {
	return fmt.Sprintf("%s%s_%d", filePrefix, urlutil.Slug(rawURL), at.Unix())
}

// NamesFor derives every artifact path of one visit.
func (w *Writer) NamesFor(rawURL string, at time.Time) Names {
	base := filepath.Join(w.dir, Base(rawURL, at))
	graph := base + graphExt
	if w.compress {
		graph += gzipExt
	}
	return Names{
		Graph:      graph,
		Traffic:    base + trafficExt,
		Screenshot: base + screenshotExt,
	}
}

// WriteGraph stores the raw page graph at n.Graph.
func (w *Writer) WriteGraph(n Names, data []byte) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if !w.compress {
		return writeFile(n.Graph, data)
	}

	f, err := os.Create(n.Graph)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("compress graph: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("compress graph: %w", err)
	}
	return f.Close()
}

// WriteTraffic stores the archive as indented JSON at n.Traffic.
func (w *Writer) WriteTraffic(n Names, h *har.HAR) error {
	content, err := json.MarshalIndent(h, "", "    ")
	if err != nil {
		return fmt.Errorf("encode traffic archive: %w", err)
	}
	return writeFile(n.Traffic, content)
}

// WriteScreenshot stores PNG bytes at n.Screenshot.
func (w *Writer) WriteScreenshot(n Names, png []byte) error {
	return writeFile(n.Screenshot, png)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
