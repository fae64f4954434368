package ideas

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/votestream/backend/internal/models"
)

// MemoryStore keeps ideas in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	ideas []models.Idea
	byID  map[uuid.UUID]int
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory idea store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uuid.UUID]int), now: time.Now}
}

// Create appends one idea.
func (m *MemoryStore) Create(ctx context.Context, idea *models.Idea) error {
	return m.CreateBatch(ctx, []*models.Idea{idea})
}

// CreateBatch appends all ideas under one lock.
func (m *MemoryStore) CreateBatch(_ context.Context, ideas []*models.Idea) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, idea := range ideas {
		idea.ID = uuid.New()
		idea.CreatedAt = m.now()
		m.byID[idea.ID] = len(m.ideas)
		m.ideas = append(m.ideas, *idea)
	}
	return nil
}

// GetByID returns a copy of the idea or models.ErrNotFound.
func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Idea, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	idea := m.ideas[i]
	return &idea, nil
}

// List returns a copy of all ideas in insertion order.
func (m *MemoryStore) List(_ context.Context) ([]models.Idea, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Idea, len(m.ideas))
	copy(out, m.ideas)
	return out, nil
}
