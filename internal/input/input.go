// Package input loads crawl targets and exclusion lists.
package input

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/law-makers/pagegraph-crawl/pkg/models"
)

// Categories a targets file can belong to.
const (
	CategoryGlobal          = "global"
	CategoryCountrySpecific = "country_specific"
	CategoryCountryCoded    = "country_coded"
)

// ErrUnknownCategory is returned when a file name names no category.
var ErrUnknownCategory = errors.New("could not derive category from file name")

// CategoryFromFileName finds the category in a targets file name. The
// first match in the order global, country_specific, country_coded wins.
func CategoryFromFileName(name string) (string, error) {
	lower := strings.ToLower(filepath.Base(name))
	for _, c := range []string{CategoryGlobal, CategoryCountrySpecific, CategoryCountryCoded} {
		if strings.Contains(lower, c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCategory, name)
}

// LoadTasks reads a targets file.
func LoadTasks(path string) ([]models.CrawlTask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets: %w", err)
	}
	defer f.Close()

	tasks, err := DecodeTasks(f)
	if err != nil {
		return nil, fmt.Errorf("read targets %s: %w", path, err)
	}
	return tasks, nil
}

// DecodeTasks decodes a JSON object of siteKey -> [url, ...]. Tasks come
// back in document order; a repeated key keeps its first position and
// its last value.
func DecodeTasks(r io.Reader) ([]models.CrawlTask, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("targets must be a JSON object")
	}

	var tasks []models.CrawlTask
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}

		var urls []string
		if err := dec.Decode(&urls); err != nil {
			return nil, fmt.Errorf("site %q: %w", key, err)
		}

		if i, seen := index[key]; seen {
			tasks[i].CandidateURLs = urls
			continue
		}
		index[key] = len(tasks)
		tasks = append(tasks, models.CrawlTask{SiteKey: key, CandidateURLs: urls})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// LoadExclusions reads one site key per line. The first line is a header
// and blank lines are ignored. A missing file yields an empty set and a
// warning.
func LoadExclusions(path string, logger zerolog.Logger) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("file", path).Msg("Exclude file not found")
			return out, nil
		}
		return nil, fmt.Errorf("open exclusions: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out[line] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read exclusions: %w", err)
	}
	return out, nil
}

// Filter drops excluded sites and sites for which done reports true,
// keeping the order. It returns the kept tasks and how many were dropped
// for each reason.
func Filter(tasks []models.CrawlTask, exclude map[string]struct{}, done func(siteKey string) bool) (kept []models.CrawlTask, excluded, treated int) {
	kept = make([]models.CrawlTask, 0, len(tasks))
	for _, t := range tasks {
		if done != nil && done(t.SiteKey) {
			treated++
			continue
		}
		if _, ok := exclude[t.SiteKey]; ok {
			excluded++
			continue
		}
		kept = append(kept, t)
	}
	return kept, excluded, treated
}
