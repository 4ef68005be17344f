// Package cli provides the command-line interface for pagegraph-crawl.
package cli

import (
	"sync"

	"github.com/spf13/cobra"

	"github.com/law-makers/pagegraph-crawl/internal/app"
)

var (
	appMu     sync.Mutex
	globalApp *app.Application
)

// SetApp stores the Application for the running command. Passing nil
// clears it.
func SetApp(cmd *cobra.Command, a *app.Application) {
	if cmd == nil {
		return
	}
	appMu.Lock()
	globalApp = a
	appMu.Unlock()
}

// GetAppFromCmd returns the Application initialized for cmd, or nil.
func GetAppFromCmd(cmd *cobra.Command) *app.Application {
	if cmd == nil {
		return nil
	}
	appMu.Lock()
	defer appMu.Unlock()
	return globalApp
}
