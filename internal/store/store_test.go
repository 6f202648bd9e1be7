package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	s, err := Open(dsn)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil database handle")
	}
}

func TestPragmasApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pragma.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	conn, err := s.DB().Conn(context.Background())
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	defer conn.Close()

	var mode string
	if err := conn.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		n, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if n <= prev {
			t.Fatalf("sequence not increasing: %d after %d", n, prev)
		}
		prev = n
	}
}

func TestAppendAndQueryLLMEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "gemini", Model: "gemini-2.0-flash", Purpose: "solve", InputTokens: 100, OutputTokens: 50, LatencyMs: 900, Success: true},
		{Provider: "gemini", Model: "gemini-2.0-flash", Purpose: "quiz", InputTokens: 40, OutputTokens: 400, LatencyMs: 1500, Success: true},
		{Provider: "gemini", Model: "gemini-2.0-flash", Purpose: "solve", LatencyMs: 100, Success: false, ErrorMessage: "unavailable"},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d events, want 3", len(all))
	}
	if all[0].Sequence < all[1].Sequence {
		t.Errorf("events not newest first: %d before %d", all[0].Sequence, all[1].Sequence)
	}
	if all[0].ErrorMessage != "unavailable" || all[0].Success {
		t.Errorf("newest event = %+v, want the failed solve", all[0].LLMRequestEventData)
	}

	solves, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "solve", Limit: 1})
	if err != nil {
		t.Fatalf("query by purpose: %v", err)
	}
	if len(solves) != 1 || solves[0].Purpose != "solve" {
		t.Fatalf("purpose filter returned %+v", solves)
	}

	got, err := repo.GetLLMEvent(ctx, all[1].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Purpose != "quiz" || got.OutputTokens != 400 {
		t.Errorf("get returned %+v", got.LLMRequestEventData)
	}
	if got.Timestamp.IsZero() || time.Since(got.Timestamp) > time.Minute {
		t.Errorf("unexpected timestamp %v", got.Timestamp)
	}
}

func TestGetLLMEvent_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.EventRepo().GetLLMEvent(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLLMUsageByPurpose(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	for _, e := range []LLMRequestEventData{
		{Model: "m1", Purpose: "chat", InputTokens: 10, OutputTokens: 20, LatencyMs: 100, Success: true},
		{Model: "m1", Purpose: "chat", InputTokens: 30, OutputTokens: 40, LatencyMs: 300, Success: true},
		{Model: "m2", Purpose: "classify", InputTokens: 5, OutputTokens: 5, LatencyMs: 50, Success: true},
	} {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	stats, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d rows, want 2", len(stats))
	}
	chat := stats[0]
	if chat.Purpose != "chat" || chat.Calls != 2 || chat.InputTokens != 40 || chat.OutputTokens != 60 || chat.AvgLatencyMs != 200 {
		t.Errorf("chat usage = %+v", chat)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 2 || byModel[1].Model != "m2" || byModel[1].Calls != 1 {
		t.Errorf("usage by model = %+v", byModel)
	}
}

func TestActivityLog(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	if err := repo.AppendActivity(ctx, ActivityEventData{Username: "ada", Kind: ActivityLogin}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.AppendLLMRequest(ctx, LLMRequestEventData{Purpose: "solve", Success: true}); err != nil {
		t.Fatalf("append llm: %v", err)
	}
	if err := repo.AppendActivity(ctx, ActivityEventData{Username: "ada", Kind: ActivityQuizComplete, Detail: "4/5"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.AppendActivity(ctx, ActivityEventData{Username: "bob", Kind: ActivityLogin}); err != nil {
		t.Fatalf("append: %v", err)
	}

	ada, err := repo.QueryActivity(ctx, QueryOpts{Username: "ada"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ada) != 2 {
		t.Fatalf("got %d events for ada, want 2", len(ada))
	}
	if ada[0].Kind != ActivityQuizComplete || ada[0].Detail != "4/5" {
		t.Errorf("newest = %+v", ada[0].ActivityEventData)
	}
	// The LLM event in between consumed a sequence number.
	if ada[0].Sequence-ada[1].Sequence != 2 {
		t.Errorf("sequence gap = %d, want 2", ada[0].Sequence-ada[1].Sequence)
	}
}
