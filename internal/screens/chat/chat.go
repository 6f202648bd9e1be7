// Package chat is the TUI screen for talking to the math tutor.
package chat

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	internalchat "github.com/abhisek/mathpad/internal/chat"
	"github.com/abhisek/mathpad/internal/llm"
	"github.com/abhisek/mathpad/internal/router"
	"github.com/abhisek/mathpad/internal/screen"
	"github.com/abhisek/mathpad/internal/session"
	"github.com/abhisek/mathpad/internal/ui/components"
	"github.com/abhisek/mathpad/internal/ui/layout"
	"github.com/abhisek/mathpad/internal/ui/theme"
)

// replyMsg carries the transcript after a tutor call made on a snapshot.
type replyMsg struct {
	Conversation internalchat.Conversation
	Err          error
}

// ChatScreen shows the transcript and a prompt line.
type ChatScreen struct {
	env     *screen.Env
	input   components.TextInput
	spinner components.Spinner
	waiting bool
	err     error
}

var _ screen.Screen = (*ChatScreen)(nil)

// New creates a ChatScreen and switches the session to chat mode.
func New(env *screen.Env) *ChatScreen {
	if err := session.SelectMode(env.State, session.ModeChat); err != nil && env.Log != nil {
		env.Log.Warn("selecting chat mode failed", "error", err)
	}
	return &ChatScreen{
		env:     env,
		input:   components.NewTextInput("Ask a math question...", 2000),
		spinner: components.Spinner{Label: "Thinking..."},
	}
}

func (c *ChatScreen) Init() tea.Cmd {
	return c.input.Init()
}

func (c *ChatScreen) Title() string {
	return "Chat"
}

func (c *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case components.SpinnerTickMsg:
		if !c.waiting {
			return c, nil
		}
		c.spinner.Advance()
		return c, c.spinner.Tick()

	case replyMsg:
		c.waiting = false
		if msg.Err != nil {
			c.err = msg.Err
			return c, nil
		}
		c.env.State.Chat = msg.Conversation
		return c, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return c, func() tea.Msg { return router.PopScreenMsg{} }
		case "ctrl+l":
			if !c.waiting {
				session.ClearChat(c.env.State)
				c.err = nil
			}
			return c, nil
		case "enter":
			return c.send()
		}
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c *ChatScreen) send() (screen.Screen, tea.Cmd) {
	if c.waiting {
		return c, nil
	}
	prompt := c.input.Value()
	if prompt == "" {
		return c, nil
	}
	c.input.Reset()
	c.err = nil
	c.waiting = true

	snap := c.env.Snapshot()
	model := c.env.Model
	return c, tea.Batch(c.spinner.Tick(), func() tea.Msg {
		ctx, cancel := screen.CallContext()
		defer cancel()
		_, err := session.SendChat(ctx, snap, model, prompt)
		return replyMsg{Conversation: snap.Chat, Err: err}
	})
}

func (c *ChatScreen) View(width, height int) string {
	cw := max(width-4, 20)

	var b strings.Builder
	msgs := c.env.State.Chat.Messages
	if len(msgs) == 0 {
		b.WriteString(theme.Hint.Render("No messages yet. Ask the tutor about any math topic."))
	}
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderMessage(m, cw))
	}

	var footer strings.Builder
	if c.waiting {
		footer.WriteString(c.spinner.View() + "\n")
	}
	if c.err != nil {
		footer.WriteString(components.RenderError(c.err, cw) + "\n")
	}
	footer.WriteString(c.input.View())

	bottom := footer.String()
	transcript := layout.Tail(b.String(), height-2-lipgloss.Height(bottom))

	return lipgloss.NewStyle().Padding(1, 2).Render(transcript + "\n\n" + bottom)
}

func renderMessage(m internalchat.Message, width int) string {
	if m.Role == llm.RoleUser {
		return theme.UserLabel.Render("You") + "\n" +
			lipgloss.NewStyle().Foreground(theme.Text).Width(width).Render(m.Content)
	}
	return theme.TutorLabel.Render("Tutor") + "\n" + components.RenderModelText(m.Content, width)
}

func (c *ChatScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Send"},
		{Key: "Ctrl+L", Description: "Clear chat"},
		{Key: "Esc", Description: "Back"},
	}
}
