// Package quiz is the TUI screen for the generated multiple-choice quiz.
package quiz

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	internalquiz "github.com/abhisek/mathpad/internal/quiz"
	"github.com/abhisek/mathpad/internal/router"
	"github.com/abhisek/mathpad/internal/screen"
	"github.com/abhisek/mathpad/internal/session"
	"github.com/abhisek/mathpad/internal/store"
	"github.com/abhisek/mathpad/internal/ui/components"
	"github.com/abhisek/mathpad/internal/ui/layout"
	"github.com/abhisek/mathpad/internal/ui/theme"
)

type topicChosenMsg string

type difficultyChosenMsg string

// quizReadyMsg carries a quiz generated on a session snapshot.
type quizReadyMsg struct {
	Quiz internalquiz.Quiz
	Err  error
}

// QuizScreen walks through topic selection, the questions and the review.
type QuizScreen struct {
	env        *screen.Env
	topics     components.Menu
	levels     components.Menu
	topic      string
	choice     components.MultiChoice
	spinner    components.Spinner
	generating bool
	err        error
}

var _ screen.Screen = (*QuizScreen)(nil)

// New creates a QuizScreen and switches the session to quiz mode.
func New(env *screen.Env) *QuizScreen {
	if err := session.SelectMode(env.State, session.ModeQuiz); err != nil && env.Log != nil {
		env.Log.Warn("selecting quiz mode failed", "error", err)
	}
	q := &QuizScreen{
		env:     env,
		topics:  components.NewMenu(menuOf(internalquiz.Topics, func(s string) tea.Msg { return topicChosenMsg(s) })),
		levels:  components.NewMenu(menuOf(internalquiz.Difficulties, func(s string) tea.Msg { return difficultyChosenMsg(s) })),
		spinner: components.Spinner{Label: "Generating quiz..."},
	}
	q.syncChoice()
	return q
}

func menuOf(labels []string, msg func(string) tea.Msg) []components.MenuItem {
	items := make([]components.MenuItem, len(labels))
	for i, l := range labels {
		items[i] = components.MenuItem{Label: l, Action: func() tea.Cmd {
			return func() tea.Msg { return msg(l) }
		}}
	}
	return items
}

func (q *QuizScreen) Init() tea.Cmd {
	return nil
}

func (q *QuizScreen) Title() string {
	return "Quiz"
}

func (q *QuizScreen) quiz() *internalquiz.Quiz {
	return &q.env.State.Quiz
}

// syncChoice shows the question awaiting an answer.
func (q *QuizScreen) syncChoice() {
	if cur, ok := q.quiz().Current(); ok {
		q.choice = components.NewMultiChoice(
			fmt.Sprintf("%d. %s", q.quiz().Index+1, cur.Question), cur.Options)
	}
}

func (q *QuizScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case components.SpinnerTickMsg:
		if !q.generating {
			return q, nil
		}
		q.spinner.Advance()
		return q, q.spinner.Tick()

	case topicChosenMsg:
		q.topic = string(msg)
		return q, nil

	case difficultyChosenMsg:
		return q.start(string(msg))

	case quizReadyMsg:
		q.generating = false
		if msg.Err != nil {
			q.err = msg.Err
			q.topic = ""
			return q, nil
		}
		q.env.State.Quiz = msg.Quiz
		q.syncChoice()
		return q, nil

	case tea.KeyMsg:
		return q.handleKey(msg)
	}
	return q, nil
}

func (q *QuizScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()
	if key == "esc" {
		if q.quiz().State() == internalquiz.NotStarted && q.topic != "" && !q.generating {
			q.topic = ""
			return q, nil
		}
		return q, func() tea.Msg { return router.PopScreenMsg{} }
	}
	if q.generating {
		return q, nil
	}
	if key == "ctrl+r" || (key == "r" && q.quiz().State() == internalquiz.Complete) {
		session.RestartQuiz(q.env.State)
		q.topic = ""
		q.err = nil
		return q, nil
	}

	var cmd tea.Cmd
	switch q.quiz().State() {
	case internalquiz.NotStarted:
		if q.topic == "" {
			q.topics, cmd = q.topics.Update(msg)
		} else {
			q.levels, cmd = q.levels.Update(msg)
		}
		return q, cmd

	case internalquiz.InProgress:
		q.choice, cmd = q.choice.Update(msg)
		if answer, ok := q.choice.Chosen(); ok {
			return q.answer(answer)
		}
		return q, cmd
	}
	return q, nil
}

func (q *QuizScreen) start(difficulty string) (screen.Screen, tea.Cmd) {
	if q.topic == "" || q.generating {
		return q, nil
	}
	q.err = nil
	q.generating = true

	snap := q.env.Snapshot()
	model := q.env.Model
	topic := q.topic
	return q, tea.Batch(q.spinner.Tick(), func() tea.Msg {
		ctx, cancel := screen.CallContext()
		defer cancel()
		err := session.StartQuiz(ctx, snap, model, topic, difficulty)
		return quizReadyMsg{Quiz: snap.Quiz, Err: err}
	})
}

func (q *QuizScreen) answer(answer string) (screen.Screen, tea.Cmd) {
	if err := session.AnswerQuiz(q.env.State, answer); err != nil {
		q.err = err
		q.syncChoice()
		return q, nil
	}
	q.err = nil

	qz := q.quiz()
	if qz.State() == internalquiz.Complete {
		q.env.Record(store.ActivityQuizComplete,
			fmt.Sprintf("%s/%s %d/%d", qz.Topic, qz.Difficulty, qz.Score(), len(qz.Questions)))
		return q, nil
	}
	q.syncChoice()
	return q, nil
}

func (q *QuizScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	var b strings.Builder

	qz := q.quiz()
	switch {
	case q.generating:
		b.WriteString(fmt.Sprintf("%s · %s\n\n", q.topic, q.levels.Items[q.levels.Selected].Label))
		b.WriteString(q.spinner.View())

	case qz.State() == internalquiz.NotStarted && q.topic == "":
		b.WriteString(theme.Title.Render("Choose a topic") + "\n\n")
		b.WriteString(q.topics.View())

	case qz.State() == internalquiz.NotStarted:
		b.WriteString(theme.Title.Render(q.topic+": choose a difficulty") + "\n\n")
		b.WriteString(q.levels.View())

	case qz.State() == internalquiz.InProgress:
		b.WriteString(theme.Subtitle.Render(qz.Topic+" · "+qz.Difficulty) + "\n\n")
		b.WriteString(components.NewProgressBar("Progress", qz.Index, len(qz.Questions), cw).View())
		b.WriteString("\n\n")
		b.WriteString(q.choice.View(cw))

	default:
		b.WriteString(renderReview(qz, cw))
	}

	if q.err != nil {
		b.WriteString("\n\n" + components.RenderError(q.err, cw))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(layout.Tail(b.String(), height-2))
}

func renderReview(qz *internalquiz.Quiz, width int) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render(fmt.Sprintf("Score: %d/%d", qz.Score(), len(qz.Questions))))
	b.WriteString("\n\n")

	for _, row := range qz.Review() {
		mark := theme.Correct.Render("✓")
		if !row.Correct {
			mark = theme.Incorrect.Render("✗")
		}
		b.WriteString(lipgloss.NewStyle().Width(width).Render(
			fmt.Sprintf("%s %d. %s", mark, row.Number, row.Question)))
		b.WriteString("\n")
		b.WriteString(theme.Hint.Render("   Your answer: " + row.UserAnswer))
		if !row.Correct {
			b.WriteString("\n" + theme.Correct.Render("   Correct answer: "+row.Answer))
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (q *QuizScreen) KeyHints() []layout.KeyHint {
	switch q.quiz().State() {
	case internalquiz.InProgress:
		return []layout.KeyHint{
			{Key: "↑↓/A-D", Description: "Choose"},
			{Key: "Enter", Description: "Submit"},
			{Key: "Ctrl+R", Description: "Restart"},
			{Key: "Esc", Description: "Back"},
		}
	case internalquiz.Complete:
		return []layout.KeyHint{
			{Key: "r", Description: "New quiz"},
			{Key: "Esc", Description: "Back"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Select"},
		{Key: "Esc", Description: "Back"},
	}
}
