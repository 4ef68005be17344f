// Package profile manages the transient browser profile directories used
// for single visits.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"
	"github.com/rs/zerolog"

	"github.com/law-makers/pagegraph-crawl/internal/artifact"
)

// Manager creates fresh profiles, optionally seeded from a template dir.
type Manager struct {
	Template string
	Logger   zerolog.Logger
}

// NewManager returns a Manager. An empty template yields empty profiles.
func NewManager(template string, logger zerolog.Logger) *Manager {
	return &Manager{Template: template, Logger: logger}
}

// Create prepares <parent>/browser_profile. A leftover profile from an
// interrupted run is replaced.
func (m *Manager) Create(parent string) (string, error) {
	dir := filepath.Join(parent, artifact.ProfileDirName)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear stale profile: %w", err)
	}
	if m.Template == "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create profile: %w", err)
		}
		return dir, nil
	}
	if err := copy.Copy(m.Template, dir, seedOptions); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("seed profile from %s: %w", m.Template, err)
	}
	return dir, nil
}

// Remove deletes a profile. Failures are logged and returned.
func (m *Manager) Remove(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		m.Logger.Warn().Err(err).Str("profile", dir).Msg("Failed to remove browser profile")
		return err
	}
	return nil
}

// seedOptions keep symlinks as links and leave out the lock files of a
// live profile. Sockets and other special files are never copied.
var seedOptions = copy.Options{
	OnSymlink: func(string) copy.SymlinkAction { return copy.Shallow },
	Skip: func(info os.FileInfo, _, _ string) (bool, error) {
		name := info.Name()
		return strings.HasPrefix(name, "Singleton") || name == "lockfile", nil
	},
}
