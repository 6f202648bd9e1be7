package screen

import (
	"context"
	"time"

	"github.com/abhisek/mathpad/internal/chat"
	"github.com/abhisek/mathpad/internal/logging"
	"github.com/abhisek/mathpad/internal/session"
	"github.com/abhisek/mathpad/internal/store"
)

// CallTimeout bounds a single model call started from the TUI.
const CallTimeout = 2 * time.Minute

// Env is what every screen shares: the local session, the model and the
// event log.
//
// State is only mutated from Update. Commands that call the model work on
// a snapshot taken with Snapshot and hand the result back in a message.
type Env struct {
	State    *session.State
	Model    session.Model
	Events   store.EventRepo
	Provider string
	Log      *logging.Logger
}

// Snapshot returns a shallow copy of the session whose chat transcript can
// be appended to without touching the live state.
func (e *Env) Snapshot() *session.State {
	st := *e.State
	st.Chat.Messages = append([]chat.Message(nil), e.State.Chat.Messages...)
	return &st
}

// CallContext returns the context for one model call.
func CallContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), CallTimeout)
}

// Record appends an activity event, ignoring a missing event log.
func (e *Env) Record(kind, detail string) {
	if e.Events == nil {
		return
	}
	err := e.Events.AppendActivity(context.Background(), store.ActivityEventData{
		Username: e.State.Username,
		Kind:     kind,
		Detail:   detail,
	})
	if err != nil && e.Log != nil {
		e.Log.Warn("recording activity failed", "kind", kind, "error", err)
	}
}
