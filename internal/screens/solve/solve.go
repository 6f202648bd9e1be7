// Package solve is the TUI screen that solves a math problem from an image
// file.
package solve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/mathpad/internal/imagesrc"
	"github.com/abhisek/mathpad/internal/router"
	"github.com/abhisek/mathpad/internal/screen"
	chatscreen "github.com/abhisek/mathpad/internal/screens/chat"
	"github.com/abhisek/mathpad/internal/session"
	"github.com/abhisek/mathpad/internal/store"
	"github.com/abhisek/mathpad/internal/ui/components"
	"github.com/abhisek/mathpad/internal/ui/layout"
	"github.com/abhisek/mathpad/internal/ui/theme"
)

// solvedMsg carries the solution computed on a session snapshot.
type solvedMsg struct {
	Solution *session.Solution
	Err      error
}

// SolveScreen loads an image file and shows the model's solution.
type SolveScreen struct {
	env     *screen.Env
	input   components.TextInput
	spinner components.Spinner
	solving bool
	err     error
	notice  string
}

var _ screen.Screen = (*SolveScreen)(nil)

// New creates a SolveScreen and switches the session to upload mode.
func New(env *screen.Env) *SolveScreen {
	if err := session.SelectMode(env.State, session.ModeUpload); err != nil && env.Log != nil {
		env.Log.Warn("selecting upload mode failed", "error", err)
	}
	return &SolveScreen{
		env:     env,
		input:   components.NewTextInput("path/to/problem.png", 512),
		spinner: components.Spinner{Label: "Solving..."},
	}
}

func (s *SolveScreen) Init() tea.Cmd {
	return s.input.Init()
}

func (s *SolveScreen) Title() string {
	return "Solve"
}

func (s *SolveScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case components.SpinnerTickMsg:
		if !s.solving {
			return s, nil
		}
		s.spinner.Advance()
		return s, s.spinner.Tick()

	case solvedMsg:
		s.solving = false
		if msg.Err != nil {
			s.err = msg.Err
			return s, nil
		}
		s.env.State.Solution = msg.Solution
		detail := string(session.ModeUpload)
		if msg.Solution != nil && msg.Solution.Failed {
			detail += " failed"
		}
		s.env.Record(store.ActivitySolve, detail)
		return s, nil

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *SolveScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()
	if key == "esc" {
		return s, func() tea.Msg { return router.PopScreenMsg{} }
	}
	if s.solving {
		return s, nil
	}

	if sol := s.env.State.Solution; sol != nil {
		switch key {
		case "c":
			return s.feedback(session.FeedbackCorrect)
		case "x":
			return s.feedback(session.FeedbackIncorrect)
		case "enter":
			if err := session.ContinueInChat(s.env.State); err != nil {
				s.err = err
				return s, nil
			}
			s.notice = ""
			return s, func() tea.Msg {
				return router.ReplaceScreenMsg{Screen: chatscreen.New(s.env)}
			}
		case "n":
			session.ClearSolution(s.env.State)
			s.err = nil
			s.notice = ""
			s.input.Reset()
			return s, s.input.Init()
		}
		return s, nil
	}

	if key == "enter" {
		return s.load()
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *SolveScreen) feedback(fb session.Feedback) (screen.Screen, tea.Cmd) {
	if err := session.SetFeedback(s.env.State, fb); err != nil {
		s.err = err
		return s, nil
	}
	s.err = nil
	s.env.Record(store.ActivityFeedback, string(fb))
	if fb == session.FeedbackCorrect {
		s.notice = "Marked correct. Press enter to continue in chat."
	} else {
		s.notice = "Marked incorrect."
	}
	return s, nil
}

// load decodes the file at the entered path and starts solving it.
func (s *SolveScreen) load() (screen.Screen, tea.Cmd) {
	path := s.input.Value()
	s.err = nil
	if path == "" {
		return s, nil
	}

	f, err := os.Open(path)
	if err != nil {
		s.err = err
		return s, nil
	}
	defer f.Close()

	up, err := imagesrc.Decode(filepath.Base(path), f)
	if err != nil {
		s.err = err
		return s, nil
	}
	session.SetUpload(s.env.State, up)

	s.solving = true
	snap := s.env.Snapshot()
	model := s.env.Model
	return s, tea.Batch(s.spinner.Tick(), func() tea.Msg {
		ctx, cancel := screen.CallContext()
		defer cancel()
		err := session.Solve(ctx, snap, model)
		return solvedMsg{Solution: snap.Solution, Err: err}
	})
}

func (s *SolveScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	var b strings.Builder

	b.WriteString(theme.Title.Width(cw).Render("Solve a problem from an image"))
	b.WriteString("\n\n")

	if up := s.env.State.Upload; up != nil {
		b.WriteString(theme.Hint.Render(
			strings.Join([]string{up.Filename, strings.ToUpper(up.Format), dims(up)}, " · ")))
		b.WriteString("\n\n")
	}

	switch sol := s.env.State.Solution; {
	case s.solving:
		b.WriteString(s.spinner.View())
	case sol != nil:
		b.WriteString(components.ArcadeCard(components.RenderModelText(sol.Text, cw-6), cw))
		b.WriteString("\n")
		b.WriteString(feedbackLine(sol))
	default:
		b.WriteString(s.input.View())
	}

	if s.notice != "" {
		b.WriteString("\n\n" + lipgloss.NewStyle().Foreground(theme.Success).Render(s.notice))
	}
	if s.err != nil {
		b.WriteString("\n\n" + components.RenderError(s.err, cw))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(layout.Tail(b.String(), height-2))
}

func dims(up *imagesrc.Upload) string {
	return fmt.Sprintf("%d×%d", up.Width, up.Height)
}

func feedbackLine(sol *session.Solution) string {
	switch sol.Feedback {
	case session.FeedbackCorrect:
		return theme.Correct.Render("✓ You marked this correct")
	case session.FeedbackIncorrect:
		return theme.Incorrect.Render("✗ You marked this incorrect")
	}
	if sol.Failed {
		return theme.Hint.Render("Press n to try another image")
	}
	return theme.Hint.Render("Was this solution correct?")
}

func (s *SolveScreen) KeyHints() []layout.KeyHint {
	if s.env.State.Solution != nil {
		return []layout.KeyHint{
			{Key: "c", Description: "Correct"},
			{Key: "x", Description: "Incorrect"},
			{Key: "Enter", Description: "Continue in chat"},
			{Key: "n", Description: "New image"},
			{Key: "Esc", Description: "Back"},
		}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Solve"},
		{Key: "Esc", Description: "Back"},
	}
}
