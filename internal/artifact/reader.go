package artifact

import (
	"bufio"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

var graphURLPattern = regexp.MustCompile(`<url>(.*?)</url>`)

// ErrNoGraphURL is returned when a graph file has no <url> element.
var ErrNoGraphURL = errors.New("graph has no url element")

// GraphFiles lists page graph files (plain or gzipped) directly in dir.
func GraphFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) {
			continue
		}
		if strings.HasSuffix(name, graphExt) || strings.HasSuffix(name, graphExt+gzipExt) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// GraphURL returns the page URL recorded in a graph file.
func GraphURL(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, gzipExt) {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return "", fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if m := graphURLPattern.FindSubmatch(sc.Bytes()); m != nil {
			return html.UnescapeString(string(m[1])), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("scan %s: %w", path, err)
	}
	return "", ErrNoGraphURL
}

// GraphURLs collects the URLs of every graph file in dir. Unreadable
// files are reported through skip and left out.
func GraphURLs(dir string, skip func(path string, err error)) ([]string, error) {
	files, err := GraphFiles(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		u, err := GraphURL(f)
		if err != nil {
			if skip != nil {
				skip(f, err)
			}
			continue
		}
		out = append(out, u)
	}
	return out, nil
}
