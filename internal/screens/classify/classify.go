// Package classify is the TUI screen for the problem difficulty classifier.
package classify

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/mathpad/internal/classifier"
	"github.com/abhisek/mathpad/internal/router"
	"github.com/abhisek/mathpad/internal/screen"
	"github.com/abhisek/mathpad/internal/session"
	"github.com/abhisek/mathpad/internal/store"
	"github.com/abhisek/mathpad/internal/ui/components"
	"github.com/abhisek/mathpad/internal/ui/layout"
	"github.com/abhisek/mathpad/internal/ui/theme"
)

type analyzedMsg struct {
	Problem string
	Result  *classifier.Result
	Err     error
}

// ClassifyScreen asks for a problem and shows its analysis.
type ClassifyScreen struct {
	env       *screen.Env
	input     components.TextInput
	spinner   components.Spinner
	analyzing bool
	problem   string
	err       error
}

var _ screen.Screen = (*ClassifyScreen)(nil)

// New creates a ClassifyScreen and switches the session to classifier mode.
func New(env *screen.Env) *ClassifyScreen {
	if err := session.SelectMode(env.State, session.ModeClassifier); err != nil && env.Log != nil {
		env.Log.Warn("selecting classifier mode failed", "error", err)
	}
	return &ClassifyScreen{
		env:     env,
		input:   components.NewTextInput("e.g. Find the derivative of x^2 sin(x)", 2000),
		spinner: components.Spinner{Label: "Analyzing..."},
	}
}

func (c *ClassifyScreen) Init() tea.Cmd {
	return c.input.Init()
}

func (c *ClassifyScreen) Title() string {
	return "Classifier"
}

func (c *ClassifyScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case components.SpinnerTickMsg:
		if !c.analyzing {
			return c, nil
		}
		c.spinner.Advance()
		return c, c.spinner.Tick()

	case analyzedMsg:
		c.analyzing = false
		if msg.Err != nil {
			c.err = msg.Err
			return c, nil
		}
		c.env.State.Analysis = msg.Result
		c.problem = msg.Problem
		c.env.Record(store.ActivityClassify, msg.Result.Difficulty)
		return c, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return c, func() tea.Msg { return router.PopScreenMsg{} }
		case "enter":
			return c.analyze()
		}
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c *ClassifyScreen) analyze() (screen.Screen, tea.Cmd) {
	problem := c.input.Value()
	if c.analyzing || problem == "" {
		return c, nil
	}
	c.err = nil
	c.analyzing = true

	snap := c.env.Snapshot()
	model := c.env.Model
	return c, tea.Batch(c.spinner.Tick(), func() tea.Msg {
		ctx, cancel := screen.CallContext()
		defer cancel()
		r, err := session.Classify(ctx, snap, model, problem)
		return analyzedMsg{Problem: problem, Result: r, Err: err}
	})
}

func (c *ClassifyScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	var b strings.Builder

	b.WriteString(theme.Title.Width(cw).Render("Problem difficulty"))
	b.WriteString("\n\n")
	b.WriteString(c.input.View())
	b.WriteString("\n\n")

	if c.analyzing {
		b.WriteString(c.spinner.View())
	} else if r := c.env.State.Analysis; r != nil {
		b.WriteString(components.ArcadeCard(renderResult(c.problem, r, cw-6), cw))
	}

	if c.err != nil {
		b.WriteString("\n\n" + components.RenderError(c.err, cw))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(layout.Tail(b.String(), height-2))
}

func renderResult(problem string, r *classifier.Result, width int) string {
	var b strings.Builder
	if problem != "" {
		b.WriteString(theme.Hint.Width(width).Render(problem) + "\n\n")
	}
	b.WriteString(theme.Body.Render("Difficulty: ") + difficultyStyle(r.Difficulty).Render(r.Difficulty))
	b.WriteString("\n\n" + theme.Body.Render("Required concepts:"))
	if len(r.RequiredConcepts) == 0 {
		b.WriteString("\n" + theme.Hint.Render("  none listed"))
	}
	for _, concept := range r.RequiredConcepts {
		b.WriteString("\n  • " + concept)
	}
	return b.String()
}

func difficultyStyle(d string) lipgloss.Style {
	switch d {
	case "Easy":
		return theme.Correct
	case "Medium":
		return lipgloss.NewStyle().Foreground(theme.ArcadeYellow).Bold(true)
	case "Hard":
		return lipgloss.NewStyle().Foreground(theme.Accent).Bold(true)
	}
	return theme.Incorrect
}

func (c *ClassifyScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Analyze"},
		{Key: "Esc", Description: "Back"},
	}
}
