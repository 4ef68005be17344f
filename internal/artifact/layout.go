package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Directory and file names inside a site snapshot.
const (
	ProfileDirName    = "browser_profile"
	ValidationDirName = "validation"
	LogFileName       = "crawl.log"
)

// Layout maps sites to their snapshot directories:
// <root>/<country>/<category>/<siteKey>.
type Layout struct {
	Root     string
	Country  string
	Category string
}

// CategoryDir holds every site directory of this run.
func (l Layout) CategoryDir() string {
	return filepath.Join(l.Root, l.Country, l.Category)
}

// SiteDir returns the snapshot directory of siteKey. Keys that would
// escape the category directory are rejected.
func (l Layout) SiteDir(siteKey string) (string, error) {
	key := strings.TrimSpace(siteKey)
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid site key %q", siteKey)
	}
	return filepath.Join(l.CategoryDir(), key), nil
}

// Exists reports whether the site was processed before.
func (l Layout) Exists(siteKey string) bool {
	dir, err := l.SiteDir(siteKey)
	if err != nil {
		return false
	}
	_, err = os.Stat(dir)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// Sites lists the site directories present under the category.
func (l Layout) Sites() ([]string, error) {
	entries, err := os.ReadDir(l.CategoryDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Gap lists captured URLs of one site that have no validation capture.
type Gap struct {
	SiteKey string
	URLs    []string
}

// MissingValidations compares, for every site, the URLs recorded in its
// graphs with those in its validation directory. Sites without a gap are
// left out. Unreadable graphs are reported through skip.
func (l Layout) MissingValidations(skip func(path string, err error)) ([]Gap, error) {
	sites, err := l.Sites()
	if err != nil {
		return nil, err
	}
	var gaps []Gap
	for _, key := range sites {
		dir, err := l.SiteDir(key)
		if err != nil {
			continue
		}
		captured, err := GraphURLs(dir, skip)
		if err != nil {
			return nil, err
		}
		validated, err := GraphURLs(filepath.Join(dir, ValidationDirName), skip)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(validated)+len(captured))
		for _, u := range validated {
			seen[u] = struct{}{}
		}
		var missing []string
		for _, u := range captured {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			missing = append(missing, u)
		}
		if len(missing) > 0 {
			gaps = append(gaps, Gap{SiteKey: key, URLs: missing})
		}
	}
	return gaps, nil
}
