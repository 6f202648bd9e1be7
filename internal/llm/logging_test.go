package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/abhisek/mathpad/internal/store"
)

type recordingRepo struct {
	store.EventRepo
	mu     sync.Mutex
	events []store.LLMRequestEventData
	err    error
}

func (r *recordingRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
	return r.err
}

func TestLoggingProvider_RecordsSuccess(t *testing.T) {
	repo := &recordingRepo{}
	mock := NewMockProvider(MockResponse{
		Content: []byte("**Answer:** 5"),
		Usage:   Usage{InputTokens: 11, OutputTokens: 7},
	})
	p := WithLogging(mock, "gemini", repo, nil)

	ctx := WithPurpose(context.Background(), PurposeSolve)
	_, err := p.Generate(ctx, Request{
		System:   "sys",
		Messages: []Message{UserImage("Analyze", Image{MIMEType: "image/png", Data: make([]byte, 10)})},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(repo.events))
	}
	e := repo.events[0]
	if e.Provider != "gemini" || e.Purpose != "solve" || !e.Success {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.InputTokens != 11 || e.OutputTokens != 7 {
		t.Fatalf("unexpected usage in event %+v", e)
	}
	if !strings.Contains(e.RequestBody, "<image image/png, 10 bytes>") {
		t.Fatalf("request body should summarize the image, got %q", e.RequestBody)
	}
	if e.ResponseBody != "**Answer:** 5" {
		t.Fatalf("unexpected response body %q", e.ResponseBody)
	}
}

func TestLoggingProvider_RecordsFailure(t *testing.T) {
	repo := &recordingRepo{}
	mock := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}})
	p := WithLogging(mock, "gemini", repo, nil)

	_, err := p.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(repo.events) != 1 || repo.events[0].Success || repo.events[0].ErrorMessage == "" {
		t.Fatalf("unexpected events %+v", repo.events)
	}
}

func TestLoggingProvider_StoreFailureDoesNotFailRequest(t *testing.T) {
	repo := &recordingRepo{err: errors.New("disk full")}
	mock := NewMockProvider(MockText("ok"))
	p := WithLogging(mock, "mock", repo, nil)

	resp, err := p.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "ok" {
		t.Fatalf("unexpected text %q", resp.Text())
	}
}
