package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	apperrors "marketminds/internal/errors"
	"marketminds/internal/store"
)

// CheckpointStore persists one State per session. Get returns (nil, nil)
// for an unknown session. Implementations hand out copies, so callers never
// share mutable state.
type CheckpointStore interface {
	Get(ctx context.Context, sessionID string) (*State, error)
	Put(ctx context.Context, state *State) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]store.SessionInfo, error)
}

// MemoryCheckpoints keeps states in process memory.
type MemoryCheckpoints struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewMemoryCheckpoints creates an empty in-memory store.
func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{states: make(map[string]*State)}
}

func (m *MemoryCheckpoints) Get(_ context.Context, sessionID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[sessionID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *MemoryCheckpoints) Put(_ context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.SessionID] = state.Clone()
	return nil
}

func (m *MemoryCheckpoints) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	return nil
}

func (m *MemoryCheckpoints) List(_ context.Context) ([]store.SessionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.SessionInfo, 0, len(m.states))
	for id, s := range m.states {
		out = append(out, store.SessionInfo{SessionID: id, UpdatedAt: s.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// SQLiteCheckpoints stores states as JSON in the SQLite checkpoints table.
type SQLiteCheckpoints struct {
	store store.CheckpointStore
}

// NewSQLiteCheckpoints wraps a checkpoint table.
func NewSQLiteCheckpoints(s store.CheckpointStore) *SQLiteCheckpoints {
	return &SQLiteCheckpoints{store: s}
}

func (c *SQLiteCheckpoints) Get(ctx context.Context, sessionID string) (*State, error) {
	data, err := c.store.LoadCheckpoint(ctx, sessionID)
	if errors.Is(err, apperrors.ErrDataNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding checkpoint %s: %w", sessionID, err)
	}
	return &state, nil
}

func (c *SQLiteCheckpoints) Put(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint %s: %w", state.SessionID, err)
	}
	return c.store.SaveCheckpoint(ctx, state.SessionID, data)
}

func (c *SQLiteCheckpoints) Delete(ctx context.Context, sessionID string) error {
	return c.store.DeleteCheckpoint(ctx, sessionID)
}

func (c *SQLiteCheckpoints) List(ctx context.Context) ([]store.SessionInfo, error) {
	return c.store.ListSessions(ctx)
}
