// internal/browser/chrome.go
package browser

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog/log"
)

// FindBrowser locates a PageGraph-capable browser. Brave builds come
// first; Chromium-family binaries are a fallback for local debugging.
// An explicit path wins when it is executable.
func FindBrowser(explicit string) string {
	if explicit != "" {
		if isExecutable(explicit) {
			log.Debug().Str("path", explicit).Msg("Browser found at configured path")
			return explicit
		}
		log.Warn().Str("path", explicit).Msg("Configured browser path is not executable")
	}

	var candidates []string

	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			"/Applications/Brave Browser Nightly.app/Contents/MacOS/Brave Browser Nightly",
			"/Applications/Brave Browser Beta.app/Contents/MacOS/Brave Browser Beta",
			"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		}

		if home := os.Getenv("HOME"); home != "" {
			candidates = append(candidates,
				filepath.Join(home, "Applications/Brave Browser.app/Contents/MacOS/Brave Browser"),
			)
		}

	case "windows":
		for _, base := range []string{os.Getenv("ProgramFiles"), os.Getenv("ProgramFiles(x86)"), os.Getenv("LocalAppData")} {
			if base != "" {
				candidates = append(candidates,
					filepath.Join(base, "BraveSoftware\\Brave-Browser-Nightly\\Application\\brave.exe"),
					filepath.Join(base, "BraveSoftware\\Brave-Browser\\Application\\brave.exe"),
					filepath.Join(base, "Google\\Chrome\\Application\\chrome.exe"),
				)
			}
		}

	case "linux":
		candidates = []string{
			"/opt/brave.com/brave-nightly/brave-browser-nightly",
			"/opt/brave.com/brave/brave-browser",
			"/usr/bin/brave-browser-nightly",
			"/usr/bin/brave-browser",
			"/usr/bin/brave",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/usr/bin/google-chrome-stable",
		}
	}

	for _, path := range candidates {
		if isExecutable(path) {
			log.Debug().Str("path", path).Str("os", runtime.GOOS).Msg("Browser found at standard location")
			return path
		}
	}

	if path := findInPath(); path != "" {
		log.Debug().Str("path", path).Msg("Browser found in PATH")
		return path
	}

	log.Warn().
		Str("os", runtime.GOOS).
		Msg("Browser not found, will use chromedp default (page graphs need Brave)")
	return ""
}

// isExecutable checks if a file exists and is executable
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	if runtime.GOOS == "windows" {
		return !info.IsDir()
	}

	return !info.IsDir() && info.Mode()&0111 != 0
}

func findInPath() string {
	for _, name := range []string{"brave-browser-nightly", "brave-browser", "brave", "chromium", "google-chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
