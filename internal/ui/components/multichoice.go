package components

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/mathpad/internal/ui/theme"
)

var choiceLabels = []string{"A", "B", "C", "D"}

// MultiChoice is a multiple-choice selector. The correct answer is never
// shown here; quiz results are revealed at the end.
type MultiChoice struct {
	Question  string
	Options   []string
	Selected  int
	Submitted bool
}

// NewMultiChoice creates a new multiple-choice component.
func NewMultiChoice(question string, options []string) MultiChoice {
	return MultiChoice{
		Question: question,
		Options:  options,
	}
}

// Update handles keyboard navigation and selection. Letters and digits
// pick an option directly.
func (m MultiChoice) Update(msg tea.Msg) (MultiChoice, tea.Cmd) {
	if m.Submitted {
		return m, nil
	}

	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	key := kmsg.String()
	switch key {
	case "up", "k":
		if m.Selected > 0 {
			m.Selected--
		}
	case "down", "j":
		if m.Selected < len(m.Options)-1 {
			m.Selected++
		}
	case "enter":
		if len(m.Options) > 0 {
			m.Submitted = true
		}
	default:
		if i := choiceIndex(key); i >= 0 && i < len(m.Options) {
			m.Selected = i
		}
	}

	return m, nil
}

func choiceIndex(key string) int {
	if len(key) != 1 {
		return -1
	}
	switch c := key[0]; {
	case c >= 'a' && c <= 'd':
		return int(c - 'a')
	case c >= '1' && c <= '4':
		return int(c - '1')
	}
	return -1
}

// Chosen returns the submitted option text.
func (m MultiChoice) Chosen() (string, bool) {
	if !m.Submitted || m.Selected >= len(m.Options) {
		return "", false
	}
	return m.Options[m.Selected], true
}

// View renders the question and its options.
func (m MultiChoice) View(width int) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Width(width).Render(m.Question))
	b.WriteString("\n\n")

	for i, opt := range m.Options {
		prefix := "  "
		if i == m.Selected {
			prefix = "▸ "
		}
		line := fmt.Sprintf("%s%s)  %s", prefix, choiceLabels[i%len(choiceLabels)], opt)
		if i == m.Selected {
			b.WriteString(theme.Selected.Render(line))
		} else {
			b.WriteString(theme.Unselected.Render(line))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
