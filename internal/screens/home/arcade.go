package home

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/mathpad/internal/ui/theme"
)

const arcadeTitleFull = ` █▄ ▄█ ▄▀▄ ▀█▀ █ █ █▀▄ ▄▀▄ █▀▄
 █ ▀ █ █▀█  █  █▀█ █▀  █▀█ █ █
 ▀   ▀ ▀ ▀  ▀  ▀ ▀ ▀   ▀ ▀ ▀▀ `

const arcadeTitleCompact = "∑  M · A · T · H · P · A · D"

// renderTitle returns the styled title block or compact fallback.
func renderTitle(cw int, compact bool) string {
	style := lipgloss.NewStyle().
		Foreground(theme.ArcadeYellow).
		Bold(true)

	title := arcadeTitleFull
	if compact {
		title = arcadeTitleCompact
	}
	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(style.Render(title))
}

// stats is the dashboard line under the title.
type stats struct {
	Messages  int
	QuizScore string
	Level     string
}

// renderStatsBar renders the dashboard stats in a bordered box matching content width.
func renderStatsBar(s stats, cw int) string {
	chatStyle := lipgloss.NewStyle().Foreground(theme.ArcadeCyan).Bold(true)
	quizStyle := lipgloss.NewStyle().Foreground(theme.ArcadeYellow).Bold(true)
	levelStyle := lipgloss.NewStyle().Foreground(theme.Accent).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(theme.TextDim)

	quiz := dimStyle.Render("★ NO QUIZ")
	if s.QuizScore != "" {
		quiz = quizStyle.Render("★ " + s.QuizScore)
	}
	level := dimStyle.Render("◆ UNRATED")
	if s.Level != "" {
		level = levelStyle.Render("◆ " + strings.ToUpper(s.Level))
	}

	line := fmt.Sprintf("%s  %s  %s",
		chatStyle.Render(fmt.Sprintf("✎ %d MSGS", s.Messages)),
		quiz,
		level,
	)

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(theme.ArcadeCyan).
		Width(cw - 2).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(line)
}

// buttonWidth is the fixed width for menu buttons.
const buttonWidth = 24

// renderArcadeMenu renders each menu item as a fixed-width button.
func renderArcadeMenu(items []string, selected int, cw int) string {
	selectedBtn := lipgloss.NewStyle().
		Width(buttonWidth).
		Align(lipgloss.Center).
		Bold(true).
		Foreground(theme.BgDark).
		Background(theme.ArcadeYellow).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.ArcadeYellow).
		Padding(0, 1)

	normalBtn := lipgloss.NewStyle().
		Width(buttonWidth).
		Align(lipgloss.Center).
		Foreground(theme.Text).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1)

	buttons := make([]string, 0, len(items))
	for i, label := range items {
		if i == selected {
			buttons = append(buttons, selectedBtn.Render("▸ "+label))
		} else {
			buttons = append(buttons, normalBtn.Render(label))
		}
	}

	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(strings.Join(buttons, "\n"))
}

// renderArcadeMenuCompact renders menu items as plain lines for small
// terminals where bordered buttons would overflow.
func renderArcadeMenuCompact(items []string, selected int, cw int) string {
	lines := make([]string, 0, len(items))
	for i, label := range items {
		if i == selected {
			lines = append(lines, lipgloss.NewStyle().
				Foreground(theme.BgDark).
				Background(theme.ArcadeYellow).
				Bold(true).
				Render(" ▸ "+label+" "))
		} else {
			lines = append(lines, lipgloss.NewStyle().
				Foreground(theme.Text).
				Render("   "+label))
		}
	}

	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(strings.Join(lines, "\n"))
}

// renderLLMBanner renders a warning banner when no model API key is configured.
func renderLLMBanner(cw int) string {
	return lipgloss.NewStyle().
		Foreground(theme.Accent).
		Width(cw).
		Align(lipgloss.Center).
		Render("⚠ Please configure a model API key (see mathpad --help)")
}
