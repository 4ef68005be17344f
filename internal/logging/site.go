// Package logging builds the per-pass loggers that write crawl.log files
// next to the captured artifacts.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/law-makers/pagegraph-crawl/internal/artifact"
)

// SiteLogger appends JSON lines to <dir>/crawl.log and mirrors entries at
// or above level to console, which may be nil. The file receives every
// entry. The returned closer closes the file.
func SiteLogger(dir string, worker int, site string, console io.Writer, level zerolog.Level) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, artifact.LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open crawl log: %w", err)
	}

	var w io.Writer = f
	if console != nil {
		w = zerolog.MultiLevelWriter(f, levelWriter{w: console, min: level})
	}
	logger := zerolog.New(w).
		With().
		Timestamp().
		Int("worker", worker).
		Str("site", site).
		Logger()
	return logger, f, nil
}

// WorkerLogger tags base with the worker index.
func WorkerLogger(base zerolog.Logger, worker int) zerolog.Logger {
	return base.With().Int("worker", worker).Logger()
}

// levelWriter drops entries below min.
type levelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (lw levelWriter) Write(p []byte) (int, error) {
	return lw.w.Write(p)
}

func (lw levelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l < lw.min {
		return len(p), nil
	}
	return lw.w.Write(p)
}
