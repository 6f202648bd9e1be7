// Package gateway is the single entry point from mathpad's engines to the
// hosted multimodal model. It owns the fixed prompts, lazily builds the
// provider stack and converts every failure into the gateway error taxonomy.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/llm"
	"github.com/abhisek/mathpad/internal/logging"
	"github.com/abhisek/mathpad/internal/store"
)

// ErrorMarker prefixes every error rendered inline in place of model output.
const ErrorMarker = "❌ Error: "

// SolvePrompt is the instruction sent with every problem image.
const SolvePrompt = "Analyze this mathematical expression. Solve it step-by-step and provide a final answer in the format: **Answer:** [final answer]"

// TutorFraming wraps every chat message.
const TutorFraming = "You are a helpful math tutor. Explain concepts clearly with examples when needed. Format math expressions using LaTeX when appropriate. Help with: %s"

// ChatHandle carries the conversation context for one chat transcript.
// History holds the framed turns exactly as they were sent.
type ChatHandle struct {
	ID      string        `json:"id"`
	History []llm.Message `json:"history"`
}

// NewChatHandle returns an empty conversation context.
func NewChatHandle() *ChatHandle {
	return &ChatHandle{ID: uuid.NewString()}
}

// Gateway talks to the configured model provider.
type Gateway struct {
	cfg       llm.Config
	repo      store.EventRepo
	log       *logging.Logger
	timeout   time.Duration
	maxTokens int

	mu       sync.Mutex
	provider llm.Provider
}

// New returns a Gateway for cfg. The provider is built on first use so a
// missing API key degrades individual actions instead of failing startup.
// repo may be nil to skip event logging.
func New(cfg llm.Config, repo store.EventRepo, log *logging.Logger) *Gateway {
	if log == nil {
		log = logging.Nop()
	}
	g := &Gateway{
		cfg:       cfg,
		repo:      repo,
		log:       log,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
	}
	if g.maxTokens <= 0 {
		g.maxTokens = llm.DefaultConfig().MaxTokens
	}
	return g
}

// NewWithProvider returns a Gateway bound to an existing provider.
func NewWithProvider(p llm.Provider, log *logging.Logger) *Gateway {
	g := New(llm.Config{Provider: "custom"}, nil, log)
	g.provider = p
	return g
}

// Configured reports whether a credential is available for the provider.
func (g *Gateway) Configured() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.provider != nil || g.cfg.HasCredential()
}

// ProviderName returns the configured provider name.
func (g *Gateway) ProviderName() string {
	return g.cfg.Provider
}

func (g *Gateway) getProvider(ctx context.Context) (llm.Provider, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.provider != nil {
		return g.provider, nil
	}

	if err := g.cfg.Validate(); err != nil {
		var missing *llm.ErrMissingAPIKey
		if errors.As(err, &missing) {
			return nil, &InitializationError{Err: fmt.Errorf("%w (set %s)", ErrMissingCredential, missing.EnvVar)}
		}
		return nil, &InitializationError{Err: err}
	}

	p, err := llm.NewProvider(ctx, g.cfg, g.repo, g.log)
	if err != nil {
		return nil, &InitializationError{Err: err}
	}
	g.provider = p
	g.log.Info("model provider ready", "provider", g.cfg.Provider, "model", p.ModelID())
	return p, nil
}

func (g *Gateway) call(ctx context.Context, purpose string, req llm.Request) (string, error) {
	p, err := g.getProvider(ctx)
	if err != nil {
		return "", err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	ctx = llm.WithPurpose(ctx, purpose)

	if req.MaxTokens == 0 {
		req.MaxTokens = g.maxTokens
	}

	resp, err := p.Generate(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	return resp.Text(), nil
}

// classify maps provider errors onto the gateway taxonomy.
func classify(err error) error {
	var auth *llm.ErrAuthentication
	var missing *llm.ErrMissingAPIKey
	var invalid *llm.ErrInvalidResponse

	switch {
	case errors.As(err, &missing):
		return &InitializationError{Err: fmt.Errorf("%w (set %s)", ErrMissingCredential, missing.EnvVar)}
	case errors.As(err, &auth):
		return &InitializationError{Err: err}
	case errors.As(err, &invalid):
		return &FormatError{Raw: string(invalid.Content), Err: err}
	default:
		return &TransportError{Err: err}
	}
}

// SolveText sends the problem image with the fixed solve instruction.
func (g *Gateway) SolveText(ctx context.Context, img image.Image) (string, error) {
	if img == nil {
		return "", apperr.Validation("no image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding image: %w", err)
	}

	return g.call(ctx, llm.PurposeSolve, llm.Request{
		Messages: []llm.Message{
			llm.UserImage(SolvePrompt, llm.Image{MIMEType: "image/png", Data: buf.Bytes()}),
		},
	})
}

// Solve returns the model's step-by-step solution for img, or an
// ErrorMarker-prefixed message describing the failure.
func (g *Gateway) Solve(ctx context.Context, img image.Image) string {
	text, err := g.SolveText(ctx, img)
	if err != nil {
		g.log.Warn("solve failed", "error", err)
		return ErrorMarker + err.Error()
	}
	return text
}

// Chat sends message within the conversation h, creating h when nil.
// The returned handle includes the new exchange only when the call
// succeeded; on failure the text is an ErrorMarker-prefixed message.
func (g *Gateway) Chat(ctx context.Context, h *ChatHandle, message string) (*ChatHandle, string) {
	if h == nil {
		h = NewChatHandle()
	}

	framed := llm.UserText(fmt.Sprintf(TutorFraming, message))
	msgs := make([]llm.Message, 0, len(h.History)+1)
	msgs = append(msgs, h.History...)
	msgs = append(msgs, framed)

	text, err := g.call(ctx, llm.PurposeChat, llm.Request{Messages: msgs})
	if err != nil {
		g.log.Warn("chat failed", "handle", h.ID, "error", err)
		return h, ErrorMarker + err.Error()
	}

	next := &ChatHandle{ID: h.ID, History: append(msgs, llm.Message{Role: llm.RoleAssistant, Content: text})}
	return next, text
}

// Generate performs a stateless single-shot text call.
func (g *Gateway) Generate(ctx context.Context, purpose, prompt string) (string, error) {
	return g.call(ctx, purpose, llm.Request{Messages: []llm.Message{llm.UserText(prompt)}})
}

// IsErrorText reports whether text is an inline error rendered by Solve or
// Chat.
func IsErrorText(text string) bool {
	return strings.HasPrefix(text, ErrorMarker)
}

// StripFence removes a markdown code fence the model may wrap JSON in.
func StripFence(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			tag := strings.TrimSpace(s[:nl])
			if tag == "" || !strings.ContainsAny(tag, "{[") {
				s = s[nl+1:]
			}
		} else {
			s = strings.TrimPrefix(s, "json")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
