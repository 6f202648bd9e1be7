package components

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/gateway"
	"github.com/abhisek/mathpad/internal/ui/theme"
)

const answerPrefix = "**Answer:**"

// RenderModelText renders a model reply wrapped to width, highlighting the
// final answer line and inline errors.
func RenderModelText(text string, width int) string {
	if gateway.IsErrorText(text) {
		return theme.ErrorText.Width(width).Render(text)
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, answerPrefix) {
			lines[i] = theme.Answer.Render("Answer:" + strings.TrimPrefix(trimmed, answerPrefix))
		}
	}
	return lipgloss.NewStyle().Foreground(theme.Text).Width(width).Render(strings.Join(lines, "\n"))
}

// RenderError renders err for the user, followed by any raw model output
// that failed to parse.
func RenderError(err error, width int) string {
	out := theme.ErrorText.Width(width).Render("✗ " + err.Error())
	if raw := apperr.RawOf(err); raw != "" {
		out += "\n\n" + theme.Hint.Render("Raw model output:") + "\n" +
			lipgloss.NewStyle().Foreground(theme.TextDim).Width(width).Render(raw)
	}
	return out
}
