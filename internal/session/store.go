package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/mathpad/internal/apperr"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// ErrBusy is returned when another action is still running for the same
// session.
var ErrBusy = &apperr.Error{Kind: apperr.KindBusy, Msg: "another request for this session is still running"}

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 24 * time.Hour

// Store persists session state. Implementations return copies: mutating a
// loaded State has no effect until it is saved.
type Store interface {
	Load(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, s *State) error
	Delete(ctx context.Context, id string) error

	// SaveUpload keeps the pixels of upload uploadID for session id apart
	// from the state, replacing the session's previous upload. Save keeps
	// it alive for as long as the state.
	SaveUpload(ctx context.Context, id, uploadID string, png []byte) error

	// LoadUpload returns the pixels of upload uploadID. It fails with
	// ErrNotFound unless uploadID is the session's current upload.
	LoadUpload(ctx context.Context, id, uploadID string) ([]byte, error)

	// Acquire marks id as busy. It fails with ErrBusy when id is already
	// held. The returned func releases it.
	Acquire(ctx context.Context, id string) (func(), error)

	Close() error
}

func encode(s *State) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	return b, nil
}

func decode(b []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &s, nil
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

type memoryUpload struct {
	id      string
	png     []byte
	expires time.Time
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	items   map[string]memoryEntry
	uploads map[string]memoryUpload
	busy    map[string]string
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore. A ttl of zero uses
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:   ttl,
		items:   make(map[string]memoryEntry),
		uploads: make(map[string]memoryUpload),
		busy:    make(map[string]string),
		now:     time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*State, error) {
	m.mu.Lock()
	e, ok := m.items[id]
	if ok && m.now().After(e.expires) {
		delete(m.items, id)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return decode(e.data)
}

func (m *MemoryStore) Save(_ context.Context, s *State) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	expires := m.now().Add(m.ttl)
	m.items[s.ID] = memoryEntry{data: b, expires: expires}
	if u, ok := m.uploads[s.ID]; ok {
		u.expires = expires
		m.uploads[s.ID] = u
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	delete(m.uploads, id)
	return nil
}

func (m *MemoryStore) SaveUpload(_ context.Context, id, uploadID string, png []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[id] = memoryUpload{id: uploadID, png: png, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) LoadUpload(_ context.Context, id, uploadID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok || u.id != uploadID || m.now().After(u.expires) {
		return nil, ErrNotFound
	}
	return u.png, nil
}

// stateSize reports the encoded size of session id, for tests.
func (m *MemoryStore) stateSize(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items[id].data)
}

func (m *MemoryStore) Acquire(_ context.Context, id string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.busy[id]; held {
		return nil, ErrBusy
	}
	token := uuid.NewString()
	m.busy[id] = token
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.busy[id] == token {
			delete(m.busy, id)
		}
	}, nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := m.now()
	for id, e := range m.items {
		if now.After(e.expires) {
			delete(m.items, id)
			n++
		}
	}
	for id, u := range m.uploads {
		if now.After(u.expires) {
			delete(m.uploads, id)
		}
	}
	return n
}

func (m *MemoryStore) Close() error { return nil }
