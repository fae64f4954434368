package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/votestream/backend/internal/models"
)

// MemoryStore keeps session records in process memory. It is the store for the
// single-instance memory backend and for tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]models.VotingSession
	now     func() time.Time
}

// NewMemoryStore creates an empty session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.VotingSession), now: time.Now}
}

// Load returns the stored record or an idle session.
func (m *MemoryStore) Load(_ context.Context, name string) (models.VotingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(name), nil
}

// Transition writes next when the stored record satisfies pre.
func (m *MemoryStore) Transition(_ context.Context, next models.VotingSession, pre Precondition) (models.VotingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.get(next.Name)
	if !pre.Allows(cur) {
		return cur, fmt.Errorf("stored phase %s: %w", cur.Phase, models.ErrInvalidState)
	}
	next = next.Normalized()
	next.UpdatedAt = m.now()
	m.records[next.Name] = next
	return next, nil
}

// UpdateRemaining lowers the countdown of the active round roundID.
func (m *MemoryStore) UpdateRemaining(_ context.Context, name string, roundID uuid.UUID, remaining int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[name]
	if !ok || cur.ID != roundID || cur.Phase != models.PhaseActive || cur.TimeRemainingSeconds <= remaining {
		return false, nil
	}
	cur.TimeRemainingSeconds = remaining
	cur.UpdatedAt = m.now()
	m.records[name] = cur.Normalized()
	return true, nil
}

func (m *MemoryStore) get(name string) models.VotingSession {
	if s, ok := m.records[name]; ok {
		return s
	}
	return models.NewIdleSession(name)
}
