package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/mathpad/internal/canvas"
	"github.com/abhisek/mathpad/internal/logging"
)

// Manager serializes actions per session on top of a Store.
type Manager struct {
	store    Store
	settings canvas.Settings
	log      *logging.Logger
}

// NewManager returns a Manager creating sessions with the given canvas
// settings.
func NewManager(store Store, settings canvas.Settings, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{store: store, settings: settings, log: log}
}

// Create starts a session for a signed-in user.
func (m *Manager) Create(ctx context.Context, username, displayName string) (*State, error) {
	s := New(username, displayName, m.settings)
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	m.log.Info("session created", "session", s.ID, "user", username)
	return s, nil
}

// Get loads a session without taking the action lock.
func (m *Manager) Get(ctx context.Context, id string) (*State, error) {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	m.attachUpload(ctx, s)
	return s, nil
}

// attachUpload lets the upload fetch its pixels from the store when an
// action actually needs them.
func (m *Manager) attachUpload(ctx context.Context, s *State) {
	u := s.Upload
	if u == nil {
		return
	}
	id, uploadID := s.ID, u.ID
	u.Attach(func() ([]byte, error) {
		return m.store.LoadUpload(ctx, id, uploadID)
	})
}

// Do runs fn on session id. At most one Do runs per session; a concurrent
// call fails with ErrBusy. The state is saved only when fn returns nil,
// so a failed action leaves the previous state in place.
func (m *Manager) Do(ctx context.Context, id string, fn func(*State) error) (*State, error) {
	release, err := m.store.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	m.attachUpload(ctx, s)
	prevUpload := ""
	if s.Upload != nil {
		prevUpload = s.Upload.ID
	}

	if err := fn(s); err != nil {
		return nil, err
	}

	saveCtx := context.WithoutCancel(ctx)
	if u := s.Upload; u != nil && u.PNG != nil && (u.ID == "" || u.ID != prevUpload) {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if err := m.store.SaveUpload(saveCtx, s.ID, u.ID, u.PNG); err != nil {
			return nil, err
		}
	}

	s.UpdatedAt = time.Now()
	if err := m.store.Save(saveCtx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Destroy removes a session.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	m.log.Info("session destroyed", "session", id)
	return nil
}
