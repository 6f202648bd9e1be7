package history

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/mathpad/internal/store"
)

type fakeRepo struct {
	store.EventRepo
	calls    []store.LLMRequestEventRecord
	activity []store.ActivityEventRecord
	err      error
}

func (f *fakeRepo) QueryLLMEvents(context.Context, store.QueryOpts) ([]store.LLMRequestEventRecord, error) {
	return f.calls, f.err
}

func (f *fakeRepo) QueryActivity(context.Context, store.QueryOpts) ([]store.ActivityEventRecord, error) {
	return f.activity, f.err
}

func loaded(t *testing.T, repo store.EventRepo) *HistoryScreen {
	t.Helper()
	s := New(repo)
	s.Update(s.Init()())
	return s
}

func testRepo() *fakeRepo {
	now := time.Now()
	return &fakeRepo{
		calls: []store.LLMRequestEventRecord{
			{ID: 2, Timestamp: now, LLMRequestEventData: store.LLMRequestEventData{
				Purpose: "chat", Model: "gemini-2.0-flash", Success: false, ErrorMessage: "rate limited",
			}},
			{ID: 1, Timestamp: now, LLMRequestEventData: store.LLMRequestEventData{
				Purpose: "solve", Model: "gemini-2.0-flash", Success: true, ResponseBody: "**Answer:** 4",
				InputTokens: 120, OutputTokens: 30,
			}},
		},
		activity: []store.ActivityEventRecord{
			{ID: 1, Timestamp: now, ActivityEventData: store.ActivityEventData{Username: "jsmith", Kind: "login"}},
		},
	}
}

func TestHistoryScreen_Loads(t *testing.T) {
	s := loaded(t, testRepo())
	if !s.loaded || len(s.calls) != 2 || len(s.activity) != 1 {
		t.Fatalf("unexpected state loaded=%v calls=%d activity=%d", s.loaded, len(s.calls), len(s.activity))
	}
	view := s.View(100, 30)
	if !strings.Contains(view, "solve") || !strings.Contains(view, "chat") {
		t.Error("expected both purposes in the view")
	}
}

func TestHistoryScreen_ExpandShowsError(t *testing.T) {
	s := loaded(t, testRepo())
	s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if !s.expanded[0] {
		t.Fatal("expected first row expanded")
	}
	if !strings.Contains(s.View(100, 30), "rate limited") {
		t.Error("expected error message in the expanded row")
	}
}

func TestHistoryScreen_TabSwitchesToActivity(t *testing.T) {
	s := loaded(t, testRepo())
	s.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	s.Update(tea.KeyPressMsg{Code: tea.KeyTab})

	if s.tab != tabActivity || s.selected != 0 {
		t.Fatalf("tab=%v selected=%d", s.tab, s.selected)
	}
	if !strings.Contains(s.View(100, 30), "jsmith") {
		t.Error("expected activity rows")
	}
}

func TestHistoryScreen_Error(t *testing.T) {
	s := loaded(t, &fakeRepo{err: errors.New("db locked")})
	if !strings.Contains(s.View(100, 30), "db locked") {
		t.Error("expected error in the view")
	}
}

func TestHistoryScreen_NoRepo(t *testing.T) {
	s := loaded(t, nil)
	if !s.loaded {
		t.Fatal("expected loaded")
	}
	if !strings.Contains(s.View(100, 30), "event database") {
		t.Error("expected missing database notice")
	}
}
