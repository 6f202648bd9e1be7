package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenRouterProvider(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		p, err := NewOpenRouterProvider(OpenRouterConfig{
			APIKey: "sk-or-test",
			Model:  "google/gemini-2.0-flash-001",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.ModelID() != "google/gemini-2.0-flash-001" {
			t.Errorf("model = %q, want %q", p.ModelID(), "google/gemini-2.0-flash-001")
		}
	})

	t.Run("empty API key", func(t *testing.T) {
		_, err := NewOpenRouterProvider(OpenRouterConfig{Model: "google/gemini-2.0-flash-001"})
		var missing *ErrMissingAPIKey
		if !errors.As(err, &missing) {
			t.Fatalf("expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("vendor prefix priced by bare model", func(t *testing.T) {
		if LookupCost("google/gemini-2.0-flash") == nil {
			t.Fatal("expected pricing for prefixed model")
		}
		if LookupCost("acme/unknown") != nil {
			t.Fatal("unknown model should have no pricing")
		}
	})
}

func TestOpenRouterProvider_DefaultsAndHeaders(t *testing.T) {
	var (
		title string
		model string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = r.Header.Get("X-Title")
		var body struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		model = body.Model
		openAITextReply(w, "**Answer:** 3")
	}))
	t.Cleanup(server.Close)

	p, err := NewOpenRouterProvider(OpenRouterConfig{APIKey: "sk-or-test", BaseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != defaultOpenRouterModel {
		t.Fatalf("model = %q, want %q", p.ModelID(), defaultOpenRouterModel)
	}

	resp, err := p.Generate(context.Background(), Request{
		Messages:  []Message{UserImage("Solve", Image{MIMEType: "image/png", Data: []byte("png")})},
		MaxTokens: 64,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "**Answer:** 3" {
		t.Fatalf("unexpected text %q", resp.Text())
	}
	if title != "Mathpad" {
		t.Fatalf("X-Title = %q", title)
	}
	if model != defaultOpenRouterModel {
		t.Fatalf("request model = %q", model)
	}
}
