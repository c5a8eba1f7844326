package format

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// Color codes
const (
	Reset      = "\033[0m"
	Bold       = "\033[1m"
	Red        = "\033[31m"
	Green      = "\033[32m"
	Yellow     = "\033[33m"
	Cyan       = "\033[36m"
	White      = "\033[37m"
	BoldRed    = "\033[1;31m"
	BoldGreen  = "\033[1;32m"
	BoldYellow = "\033[1;33m"
	BoldBlue   = "\033[1;34m"
	BoldCyan   = "\033[1;36m"
)

var useColor = true

func init() {
	useColor = detectColor(os.LookupEnv, term.IsTerminal(int(os.Stdout.Fd())))
	EnableColor(useColor)
}

// detectColor decides the default color mode from the environment and
// whether stdout is a terminal.
func detectColor(lookup func(string) (string, bool), tty bool) bool {
	if _, ok := lookup("LOCALAI_NO_COLOR"); ok {
		return false
	}
	if _, ok := lookup("NO_COLOR"); ok {
		return false
	}
	if _, ok := lookup("LOCALAI_FORCE_COLOR"); ok {
		return true
	}
	if runtime.GOOS == "windows" {
		// ANSICON is set by ConEmu, WT_SESSION by Windows Terminal
		_, hasAnsicon := lookup("ANSICON")
		_, hasWT := lookup("WT_SESSION")
		if !hasAnsicon && !hasWT {
			return false
		}
	}
	return tty
}

// EnableColor switches colored output on or off for every printer in the package.
func EnableColor(enable bool) {
	useColor = enable
	color.NoColor = !enable
	if enable {
		pterm.EnableStyling()
	} else {
		pterm.DisableStyling()
	}
}

// IsColorEnabled returns whether colored output is enabled
func IsColorEnabled() bool {
	return useColor
}

// Colorize adds color to a string if colors are enabled
func Colorize(code, text string) string {
	if useColor {
		return code + text + Reset
	}
	return text
}

// Success formats a message as a success (green)
func Success(format string, a ...interface{}) string {
	return Colorize(Green, fmt.Sprintf(format, a...))
}

// Warning formats a message as a warning (yellow)
func Warning(format string, a ...interface{}) string {
	return Colorize(Yellow, fmt.Sprintf(format, a...))
}

// Highlight formats a message as highlighted (bold cyan)
func Highlight(format string, a ...interface{}) string {
	return Colorize(BoldCyan, fmt.Sprintf(format, a...))
}

// StatusSymbol returns a colorized status symbol
func StatusSymbol(success bool) string {
	if success {
		return Colorize(Green, "✓")
	}
	return Colorize(Red, "✗")
}

// StatusLabel colors a container state or run state.
func StatusLabel(status string) string {
	switch strings.ToLower(status) {
	case "running", "healthy":
		return Colorize(BoldGreen, status)
	case "created", "restarting", "starting", "stopping_existing", "starting_core", "starting_selected", "not_started":
		return Colorize(BoldYellow, status)
	case "exited", "dead", "unhealthy", "failed":
		return Colorize(BoldRed, status)
	default:
		return Colorize(White, status)
	}
}
