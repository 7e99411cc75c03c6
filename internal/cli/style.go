package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/ppiankov/transferguard/internal/safety"
)

var (
	colorGreen  = lipgloss.Color("#8ec07c")
	colorYellow = lipgloss.Color("#fabd2f")
	colorOrange = lipgloss.Color("#fe8019")
	colorRed    = lipgloss.Color("#fb4934")
	colorDim    = lipgloss.Color("#928374")
)

var (
	styleGreen  = lipgloss.NewStyle().Foreground(colorGreen)
	styleYellow = lipgloss.NewStyle().Foreground(colorYellow)
	styleOrange = lipgloss.NewStyle().Foreground(colorOrange)
	styleRed    = lipgloss.NewStyle().Foreground(colorRed)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleBold   = lipgloss.NewStyle().Bold(true)
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// stdinInteractive reports whether a human can answer prompts.
func stdinInteractive() bool {
	return isTerminal(os.Stdin)
}

func riskStyle(level safety.RiskLevel) lipgloss.Style {
	switch level {
	case safety.Critical:
		return styleRed
	case safety.High:
		return styleOrange
	case safety.Medium:
		return styleYellow
	default:
		return styleGreen
	}
}

func decisionLabel(d safety.Decision) string {
	switch d {
	case safety.Block:
		return styleRed.Bold(true).Render("BLOCK")
	case safety.Confirm:
		return styleOrange.Bold(true).Render("CONFIRM")
	default:
		return styleGreen.Bold(true).Render("APPROVE")
	}
}

// printReport renders a report for people. Styles degrade to plain text
// when stdout is not a terminal.
func printReport(w io.Writer, r *safety.Report, d safety.Decision) {
	fmt.Fprintf(w, "%s  %s  %s\n",
		decisionLabel(d),
		riskStyle(r.RiskLevel).Render("Risk: "+r.RiskLevel.String()),
		styleDim.Render(fmt.Sprintf("%s -> %s  %s", r.FromDisplay, r.ToDisplay, r.AmountDisplay)))
	for _, b := range r.Blockers {
		fmt.Fprintf(w, "  %s %s\n", styleRed.Render("x"), b)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  %s %s\n", styleYellow.Render("!"), warn)
	}
}

func header(text string) string {
	upper := strings.ToUpper(text)
	return styleBold.Render(upper) + "\n" + styleDim.Render(strings.Repeat("-", len(upper)))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
