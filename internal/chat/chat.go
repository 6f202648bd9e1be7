// Package chat keeps the math tutor transcript for one session.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/gateway"
	"github.com/abhisek/mathpad/internal/llm"
)

// Message is one transcript entry.
type Message struct {
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
}

// Client is the part of the gateway chat needs.
type Client interface {
	Configured() bool
	Chat(ctx context.Context, h *gateway.ChatHandle, message string) (*gateway.ChatHandle, string)
}

// Conversation is an append-only transcript plus the model-side handle.
type Conversation struct {
	Messages []Message          `json:"messages,omitempty"`
	Handle   *gateway.ChatHandle `json:"handle,omitempty"`
}

// Send appends prompt and the model's reply. A failed model call still
// appends the reply, rendered as an inline error.
func (c *Conversation) Send(ctx context.Context, client Client, prompt string) (Message, error) {
	if strings.TrimSpace(prompt) == "" {
		return Message{}, apperr.Validation("please type a message")
	}
	if !client.Configured() {
		return Message{}, apperr.Configuration("please configure a model API key", gateway.ErrMissingCredential)
	}

	c.Messages = append(c.Messages, Message{Role: llm.RoleUser, Content: prompt})

	h, text := client.Chat(ctx, c.Handle, prompt)
	c.Handle = h

	reply := Message{Role: llm.RoleAssistant, Content: text}
	c.Messages = append(c.Messages, reply)
	return reply, nil
}

// ContinueFrom adds a solved problem to the transcript so the user can
// follow up on it.
func (c *Conversation) ContinueFrom(solution string) {
	c.Messages = append(c.Messages, Message{
		Role:    llm.RoleAssistant,
		Content: fmt.Sprintf("I just solved this problem:\n\n%s", solution),
	})
}

// Clear empties the transcript and drops the handle so the next message
// starts a fresh conversation.
func (c *Conversation) Clear() {
	c.Messages = nil
	c.Handle = nil
}
