// Package cli holds terminal helpers for command output: colour, a
// progress spinner for network-bound stages, and signal handling.
package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ghkdsigm/figma-auto/internal/a2ui"
)

const reset = "\033[0m"

const (
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	gray   = "\033[90m"
	bold   = "\033[1m"
)

// ColorEnabled controls whether ANSI colour codes are emitted. It defaults
// to true when stdout is a terminal and NO_COLOR is unset.
var ColorEnabled = initColorEnabled()

func initColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func paint(color, msg string) string {
	if !ColorEnabled {
		return msg
	}
	return color + msg + reset
}

// Success formats a message with a green check prefix.
func Success(msg string) string { return paint(green, "✓ "+msg) }

// Error formats a message with a red cross prefix.
func Error(msg string) string { return paint(red, "✗ "+msg) }

// Warn formats a message with a yellow warning prefix.
func Warn(msg string) string { return paint(yellow, "⚠ "+msg) }

// Info formats a message in cyan.
func Info(msg string) string { return paint(cyan, msg) }

// Muted formats a message in gray.
func Muted(msg string) string { return paint(gray, msg) }

// Heading formats a message in bold.
func Heading(msg string) string { return paint(bold, msg) }

// Diagnostics lists up to limit entries, errors first, then warnings,
// then infos, each group in emission order. limit <= 0 lists everything.
func Diagnostics(ds a2ui.Diagnostics, limit int) string {
	var ordered a2ui.Diagnostics
	ordered = append(ordered, ds.Errors()...)
	ordered = append(ordered, ds.Warnings()...)
	for _, d := range ds {
		if d.Severity != a2ui.SeverityError && d.Severity != a2ui.SeverityWarn {
			ordered = append(ordered, d)
		}
	}

	var b strings.Builder
	for i, d := range ordered {
		if limit > 0 && i == limit {
			fmt.Fprintf(&b, "%s\n", Muted(fmt.Sprintf("  … %d more", len(ordered)-limit)))
			break
		}
		switch d.Severity {
		case a2ui.SeverityError:
			b.WriteString("  " + Error(d.Format()))
		case a2ui.SeverityWarn:
			b.WriteString("  " + Warn(d.Format()))
		default:
			b.WriteString("  " + Muted("· "+d.Format()))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Summary counts diagnostics per severity, e.g. "0 errors, 2 warnings, 5 info".
func Summary(ds a2ui.Diagnostics) string {
	c := ds.Count()
	s := fmt.Sprintf("%d errors, %d warnings, %d info",
		c[a2ui.SeverityError], c[a2ui.SeverityWarn], c[a2ui.SeverityInfo])
	switch {
	case c[a2ui.SeverityError] > 0:
		return paint(red, s)
	case c[a2ui.SeverityWarn] > 0:
		return paint(yellow, s)
	}
	return paint(green, s)
}
