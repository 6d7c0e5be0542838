package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func Title(s string) string { return titleStyle.Render(s) }

func Muted(s string) string { return mutedStyle.Render(s) }

// Check renders one diagnostic line in the doctor format.
func Check(status CheckStatus, name, detail string) string {
	var line string
	switch status {
	case CheckOK:
		line = okStyle.Render(fmt.Sprintf("✓ %s: OK", name))
	case CheckWarn:
		line = warnStyle.Render(fmt.Sprintf("⚠ %s: WARNING", name))
	case CheckFail:
		line = failStyle.Render(fmt.Sprintf("❌ %s: FAIL", name))
	default:
		line = mutedStyle.Render(fmt.Sprintf("⊘ %s: SKIPPED", name))
	}
	if detail != "" {
		line += "\n   " + detail
	}
	return line
}

type CheckStatus int

const (
	CheckOK CheckStatus = iota
	CheckWarn
	CheckFail
	CheckSkipped
)

func Success(format string, args ...any) string {
	return okStyle.Render("✓ " + fmt.Sprintf(format, args...))
}

func Warning(format string, args ...any) string {
	return warnStyle.Render("⚠ " + fmt.Sprintf(format, args...))
}
