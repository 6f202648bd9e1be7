package home

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/mathpad/internal/quiz"
	"github.com/abhisek/mathpad/internal/router"
	"github.com/abhisek/mathpad/internal/screen"
	chatscreen "github.com/abhisek/mathpad/internal/screens/chat"
	"github.com/abhisek/mathpad/internal/screens/classify"
	"github.com/abhisek/mathpad/internal/screens/history"
	quizscreen "github.com/abhisek/mathpad/internal/screens/quiz"
	"github.com/abhisek/mathpad/internal/screens/solve"
	"github.com/abhisek/mathpad/internal/ui/components"
)

// HomeScreen is the main menu of the TUI.
type HomeScreen struct {
	env        *screen.Env
	menu       components.Menu
	menuLabels []string
}

var _ screen.Screen = (*HomeScreen)(nil)

func push(s screen.Screen) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg { return router.PushScreenMsg{Screen: s} }
	}
}

// New creates a new HomeScreen.
func New(env *screen.Env) *HomeScreen {
	h := &HomeScreen{env: env}

	items := []components.MenuItem{
		{Label: "SOLVE IMAGE", Hint: "Solve a math problem from a PNG, JPEG, WebP or BMP file"},
		{Label: "CHAT", Hint: "Ask the math tutor anything"},
		{Label: "QUIZ", Hint: fmt.Sprintf("Take a %d-question multiple-choice quiz", quiz.QuestionCount)},
		{Label: "CLASSIFIER", Hint: "Rate a problem's difficulty and list the concepts it needs"},
		{Label: "HISTORY", Hint: "Browse recorded model calls"},
		{Label: "EXIT", Action: func() tea.Cmd { return tea.Quit }},
	}
	items[0].Action = func() tea.Cmd { return push(solve.New(env))() }
	items[1].Action = func() tea.Cmd { return push(chatscreen.New(env))() }
	items[2].Action = func() tea.Cmd { return push(quizscreen.New(env))() }
	items[3].Action = func() tea.Cmd { return push(classify.New(env))() }
	items[4].Action = func() tea.Cmd { return push(history.New(env.Events))() }

	for _, it := range items {
		h.menuLabels = append(h.menuLabels, it.Label)
	}
	h.menu = components.NewMenu(items)
	return h
}

func (h *HomeScreen) Init() tea.Cmd {
	return nil
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

func (h *HomeScreen) View(width, height int) string {
	compact := height < 24 || width < 90
	cw := components.ContentWidth(width)

	sections := []string{renderTitle(cw, compact)}
	if !h.env.Model.Configured() {
		sections = append(sections, renderLLMBanner(cw))
	}
	sections = append(sections, renderStatsBar(h.stats(), cw))

	if compact {
		sections = append(sections, renderArcadeMenuCompact(h.menuLabels, h.menu.Selected, cw))
	} else {
		sections = append(sections, renderArcadeMenu(h.menuLabels, h.menu.Selected, cw))
	}
	if item, ok := h.menu.Current(); ok && item.Hint != "" {
		sections = append(sections, components.ArcadeCard(item.Hint, cw))
	}

	return components.CabinetFrame(strings.Join(sections, "\n\n"), width, height)
}

func (h *HomeScreen) Title() string {
	return "Home"
}

func (h *HomeScreen) stats() stats {
	st := h.env.State
	s := stats{Messages: len(st.Chat.Messages)}
	if st.Quiz.State() == quiz.Complete {
		s.QuizScore = fmt.Sprintf("%d/%d", st.Quiz.Score(), len(st.Quiz.Questions))
	}
	if st.Analysis != nil {
		s.Level = st.Analysis.Difficulty
	}
	return s
}
