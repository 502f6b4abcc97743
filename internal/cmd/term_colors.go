package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"multiplex/internal/config"
)

// terminalHints captures the attaching terminal's color profile so the
// renderer's 16-colour palette (grid §4.1 SGR defaults) can pick a
// sensible default foreground/background on terminals with a
// non-standard theme.
type terminalHints struct {
	OscFg     string `json:"osc_fg,omitempty"`
	OscBg     string `json:"osc_bg,omitempty"`
	ColorFGBG string `json:"colorfgbg,omitempty"`
	Term      string `json:"term,omitempty"`
	ColorTerm string `json:"colorterm,omitempty"`
}

// detectTerminalHints queries the real terminal's color profile when
// stdout is a TTY, and falls back to the last cached hints (or bare
// environment variables) otherwise — e.g. when output is piped to a log.
func detectTerminalHints() terminalHints {
	var hints terminalHints

	if term.IsTerminal(int(os.Stdout.Fd())) {
		output := termenv.NewOutput(os.Stdout)
		if fg, ok := output.ForegroundColor().(termenv.RGBColor); ok {
			hints.OscFg = string(fg)
		}
		if bg, ok := output.BackgroundColor().(termenv.RGBColor); ok {
			hints.OscBg = string(bg)
		}

		hints.ColorFGBG = os.Getenv("COLORFGBG")
		if hints.ColorFGBG == "" {
			if output.HasDarkBackground() {
				hints.ColorFGBG = "15;0"
			} else {
				hints.ColorFGBG = "0;15"
			}
		}

		hints.Term = os.Getenv("TERM")
		hints.ColorTerm = os.Getenv("COLORTERM")

		_ = persistTerminalHints(hints)
	} else if cached, ok := loadTerminalHints(); ok {
		hints = cached
	}

	if hints.ColorFGBG == "" {
		hints.ColorFGBG = os.Getenv("COLORFGBG")
	}
	return hints
}

func terminalHintsPath() string {
	return filepath.Join(config.ConfigDir(), "terminal-colors.json")
}

func persistTerminalHints(h terminalHints) error {
	path := terminalHintsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func loadTerminalHints() (terminalHints, bool) {
	data, err := os.ReadFile(terminalHintsPath())
	if err != nil {
		return terminalHints{}, false
	}
	var h terminalHints
	if err := json.Unmarshal(data, &h); err != nil {
		return terminalHints{}, false
	}
	return h, true
}
