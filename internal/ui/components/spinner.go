package components

import (
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/mathpad/internal/ui/theme"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// SpinnerTickMsg advances a Spinner.
type SpinnerTickMsg time.Time

// Spinner is shown while a model call is running.
type Spinner struct {
	Label string
	frame int
}

// Tick schedules the next frame.
func (s Spinner) Tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return SpinnerTickMsg(t)
	})
}

// Advance moves to the next frame.
func (s *Spinner) Advance() {
	s.frame = (s.frame + 1) % len(spinnerFrames)
}

// View renders the current frame and label.
func (s Spinner) View() string {
	return theme.Selected.Render(spinnerFrames[s.frame]) + " " + theme.Hint.Render(s.Label)
}
