// Package history is the TUI screen listing recorded model calls and
// user activity.
package history

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/mathpad/internal/router"
	"github.com/abhisek/mathpad/internal/screen"
	"github.com/abhisek/mathpad/internal/store"
	"github.com/abhisek/mathpad/internal/ui/layout"
	"github.com/abhisek/mathpad/internal/ui/theme"
)

const pageSize = 50

type historyLoadedMsg struct {
	Calls    []store.LLMRequestEventRecord
	Activity []store.ActivityEventRecord
	Err      error
}

type tab int

const (
	tabCalls tab = iota
	tabActivity
)

// HistoryScreen displays recent model calls and user activity.
type HistoryScreen struct {
	eventRepo store.EventRepo
	calls     []store.LLMRequestEventRecord
	activity  []store.ActivityEventRecord
	tab       tab
	selected  int
	expanded  map[int]bool
	loaded    bool
	errMsg    string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a new HistoryScreen.
func New(eventRepo store.EventRepo) *HistoryScreen {
	return &HistoryScreen{
		eventRepo: eventRepo,
		expanded:  make(map[int]bool),
	}
}

func (s *HistoryScreen) Init() tea.Cmd {
	repo := s.eventRepo
	return func() tea.Msg {
		if repo == nil {
			return historyLoadedMsg{}
		}
		ctx := context.Background()

		calls, err := repo.QueryLLMEvents(ctx, store.QueryOpts{Limit: pageSize})
		if err != nil {
			return historyLoadedMsg{Err: err}
		}
		activity, err := repo.QueryActivity(ctx, store.QueryOpts{Limit: pageSize})
		if err != nil {
			return historyLoadedMsg{Err: err}
		}
		return historyLoadedMsg{Calls: calls, Activity: activity}
	}
}

func (s *HistoryScreen) Title() string {
	return "History"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Tab", Description: "Calls/Activity"},
		{Key: "Enter", Description: "Details"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) rows() int {
	if s.tab == tabActivity {
		return len(s.activity)
	}
	return len(s.calls)
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.calls = msg.Calls
			s.activity = msg.Activity
		}
		s.loaded = true
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "tab":
			s.tab = 1 - s.tab
			s.selected = 0
			clear(s.expanded)
			return s, nil
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
			return s, nil
		case "down", "j":
			if s.selected < s.rows()-1 {
				s.selected++
			}
			return s, nil
		case "enter":
			if s.tab == tabCalls {
				s.expanded[s.selected] = !s.expanded[s.selected]
			}
			return s, nil
		}
	}
	return s, nil
}

func (s *HistoryScreen) View(width, height int) string {
	dim := lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Foreground(theme.TextDim)
	switch {
	case s.errMsg != "":
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	case !s.loaded:
		return dim.Render("\n\n  Loading history...")
	case s.eventRepo == nil:
		return dim.Italic(true).Render("\n\n  History needs the event database.")
	}

	var b strings.Builder
	b.WriteString(s.renderTabs() + "\n\n")

	if s.rows() == 0 {
		b.WriteString(dim.Italic(true).Render("  Nothing recorded yet."))
		return b.String()
	}

	if s.tab == tabActivity {
		for i, a := range s.activity {
			line := fmt.Sprintf("%s  %-10s %-14s %s",
				a.Timestamp.Local().Format("Jan 02 15:04"), a.Username, a.Kind, a.Detail)
			b.WriteString(s.row(i, line, width) + "\n")
		}
		return layout.Tail(b.String(), height)
	}

	for i, ev := range s.calls {
		status := theme.Correct.Render("✓")
		if !ev.Success {
			status = theme.Incorrect.Render("✗")
		}
		line := fmt.Sprintf("%s  %-10s %-24s %5d→%-5d %6dms",
			ev.Timestamp.Local().Format("Jan 02 15:04"), ev.Purpose, ev.Model,
			ev.InputTokens, ev.OutputTokens, ev.LatencyMs)
		b.WriteString(status + " " + s.row(i, line, width-2) + "\n")

		if s.expanded[i] {
			b.WriteString(renderDetail(ev, width) + "\n")
		}
	}
	return layout.Tail(b.String(), height)
}

func (s *HistoryScreen) renderTabs() string {
	calls, activity := theme.Hint.Render("Model calls"), theme.Hint.Render("Activity")
	if s.tab == tabCalls {
		calls = theme.Selected.Render("Model calls")
	} else {
		activity = theme.Selected.Render("Activity")
	}
	return "  " + calls + "   " + activity
}

func (s *HistoryScreen) row(i int, line string, width int) string {
	prefix := "  "
	style := lipgloss.NewStyle().Foreground(theme.Text)
	if i == s.selected {
		prefix = "> "
		style = style.Foreground(theme.Primary).Bold(true)
	}
	return style.MaxWidth(width).Render(prefix + line)
}

func renderDetail(ev store.LLMRequestEventRecord, width int) string {
	body := ev.ResponseBody
	style := lipgloss.NewStyle().Foreground(theme.TextDim)
	if !ev.Success {
		body = ev.ErrorMessage
		style = style.Foreground(theme.Error)
	}
	if len(body) > 600 {
		body = body[:600] + "..."
	}
	return style.Width(width - 6).PaddingLeft(6).Render(body)
}
