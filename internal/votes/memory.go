package votes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/votestream/backend/internal/models"
)

type voteKey struct {
	idea   uuid.UUID
	target uuid.UUID
}

// MemoryStore is an in-process ledger. The uniqueness check and the append
// happen under one lock.
type MemoryStore struct {
	mu     sync.RWMutex
	votes  []models.Vote
	keys   map[voteKey]struct{}
	byIdea map[uuid.UUID][]int
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:   make(map[voteKey]struct{}),
		byIdea: make(map[uuid.UUID][]int),
		now:    time.Now,
	}
}

// Insert appends v unless (IdeaID, TargetUserID) is already present.
func (m *MemoryStore) Insert(_ context.Context, v *models.Vote) error {
	k := voteKey{idea: v.IdeaID, target: v.TargetUserID}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[k]; ok {
		return ErrDuplicateVote
	}
	v.ID = uuid.New()
	v.CreatedAt = m.now()
	m.keys[k] = struct{}{}
	m.byIdea[v.IdeaID] = append(m.byIdea[v.IdeaID], len(m.votes))
	m.votes = append(m.votes, *v)
	return nil
}

// CountByIdea returns the number of votes for ideaID.
func (m *MemoryStore) CountByIdea(_ context.Context, ideaID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byIdea[ideaID]), nil
}

// VotersByIdea returns target user ids for ideaID in vote order.
func (m *MemoryStore) VotersByIdea(_ context.Context, ideaID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := m.byIdea[ideaID]
	out := make([]uuid.UUID, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.votes[i].TargetUserID)
	}
	return out, nil
}

// List returns a copy of the ledger.
func (m *MemoryStore) List(_ context.Context) ([]models.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Vote, len(m.votes))
	copy(out, m.votes)
	return out, nil
}
