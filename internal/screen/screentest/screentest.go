// Package screentest provides helpers for testing TUI screens without a
// terminal.
package screentest

import (
	"context"
	"sync"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/mathpad/internal/canvas"
	"github.com/abhisek/mathpad/internal/gateway"
	"github.com/abhisek/mathpad/internal/llm"
	"github.com/abhisek/mathpad/internal/logging"
	"github.com/abhisek/mathpad/internal/screen"
	"github.com/abhisek/mathpad/internal/session"
	"github.com/abhisek/mathpad/internal/store"
	"github.com/abhisek/mathpad/internal/ui/components"
)

// ActivityRepo records activity events in memory.
type ActivityRepo struct {
	store.EventRepo
	mu     sync.Mutex
	Events []store.ActivityEventData
}

func (r *ActivityRepo) AppendActivity(_ context.Context, data store.ActivityEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, data)
	return nil
}

// Kinds returns the recorded activity kinds in order.
func (r *ActivityRepo) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, len(r.Events))
	for i, e := range r.Events {
		kinds[i] = e.Kind
	}
	return kinds
}

// NewEnv returns an Env for user jsmith whose model replays responses.
func NewEnv(t *testing.T, responses ...llm.MockResponse) (*screen.Env, *ActivityRepo) {
	t.Helper()
	repo := &ActivityRepo{}
	return &screen.Env{
		State:    session.New("jsmith", "John Smith", canvas.DefaultSettings()),
		Model:    gateway.NewWithProvider(llm.NewMockProvider(responses...), logging.Nop()),
		Events:   repo,
		Provider: "mock",
		Log:      logging.Nop(),
	}, repo
}

// maxSteps bounds Drain so a self-renewing command cannot loop forever.
const maxSteps = 32

// Drain runs cmd and feeds every resulting message back into s until no
// commands remain. Spinner ticks are dropped.
func Drain(s screen.Screen, cmd tea.Cmd) screen.Screen {
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0 && steps < maxSteps; steps++ {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, components.SpinnerTickMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			var next tea.Cmd
			s, next = s.Update(msg)
			queue = append(queue, next)
		}
	}
	return s
}

// Key returns a key press for r.
func Key(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

// Special returns a key press for a non-printing key such as tea.KeyEnter.
func Special(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

// Type sends each rune of text as a key press.
func Type(s screen.Screen, text string) screen.Screen {
	for _, r := range text {
		s, _ = s.Update(Key(r))
	}
	return s
}
