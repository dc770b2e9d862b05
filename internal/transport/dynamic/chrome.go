package dynamic

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

var knownBrowsers = map[string][]string{
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
	},
	"linux": {
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/headless-shell/headless-shell",
	},
}

var browserNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
	"msedge",
}

// FindChrome locates a Chrome/Chromium executable. An explicitly configured
// path wins, then CHROME_PATH, then well-known install locations and PATH.
// It returns "" to let chromedp fall back to its own lookup.
func FindChrome(configured string) string {
	for _, path := range []string{configured, os.Getenv("CHROME_PATH")} {
		if path == "" {
			continue
		}
		if isExecutable(path) {
			return path
		}
		log.Warn().Str("path", path).Msg("Chrome path set but not executable")
	}

	candidates := knownBrowsers[runtime.GOOS]
	if runtime.GOOS == "windows" {
		for _, base := range []string{os.Getenv("ProgramFiles"), os.Getenv("ProgramFiles(x86)"), os.Getenv("LocalAppData")} {
			if base != "" {
				candidates = append(candidates,
					filepath.Join(base, `Google\Chrome\Application\chrome.exe`),
					filepath.Join(base, `Microsoft\Edge\Application\msedge.exe`),
				)
			}
		}
	}

	for _, path := range candidates {
		if isExecutable(path) {
			log.Debug().Str("path", path).Msg("Chrome found at standard location")
			return path
		}
	}

	for _, name := range browserNames {
		if path, err := exec.LookPath(name); err == nil {
			log.Debug().Str("path", path).Msg("Chrome found in PATH")
			return path
		}
	}

	log.Warn().Str("os", runtime.GOOS).Msg("Chrome not found, will use chromedp default (may fail)")
	return ""
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode()&0111 != 0
}

// GetChromeVersion returns the version banner of the browser at chromePath.
func GetChromeVersion(chromePath string) string {
	if chromePath == "" {
		return "unknown"
	}
	if runtime.GOOS == "windows" {
		return "detected"
	}

	output, err := exec.Command(chromePath, "--version").Output()
	if err != nil {
		return "detected"
	}
	return strings.TrimSpace(string(output))
}
