package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/votestream/backend/internal/models"
)

// MemoryStore keeps users in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

// Upsert follows the same rules as Repository.Upsert.
func (m *MemoryStore) Upsert(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byEmail[u.Email]; ok {
		cur := m.byID[id]
		cur.Name = u.Name
		cur.Department = u.Department
		if u.Role == models.RoleAdmin {
			cur.Role = models.RoleAdmin
		}
		*u = *cur
		return nil
	}
	stored := *u
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	m.byID[stored.ID] = &stored
	m.byEmail[stored.Email] = stored.ID
	*u = stored
	return nil
}

// GetByID returns a copy of the user or models.ErrNotFound.
func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// Search matches like Repository.Search.
func (m *MemoryStore) Search(_ context.Context, query string, exclude uuid.UUID, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))
	m.mu.RLock()
	var list []models.User
	for id, u := range m.byID {
		if id == exclude {
			continue
		}
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
			list = append(list, *u)
		}
	}
	m.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].Email < list[j].Email
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
