package sessions

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/votestream/backend/internal/models"
)

type published struct {
	event   string
	payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *recordingNotifier) Publish(event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{event: event, payload: payload})
}

func (n *recordingNotifier) sessions() []models.VotingSession {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.VotingSession
	for _, e := range n.events {
		if s, ok := e.payload.(models.VotingSession); ok && e.event == EventSessionChanged {
			out = append(out, s)
		}
	}
	return out
}

// flakyStore wraps MemoryStore and fails selected calls.
type flakyStore struct {
	*MemoryStore
	mu            sync.Mutex
	transitionErr error
	remainingErr  error
	lostAckErr    error
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: NewMemoryStore()}
}

func (f *flakyStore) failTransitions(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitionErr = err
}

func (f *flakyStore) failRemaining(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remainingErr = err
}

// loseAcks makes transitions commit but report err, as when the caller's context
// expires after the database has committed.
func (f *flakyStore) loseAcks(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lostAckErr = err
}

func (f *flakyStore) Transition(ctx context.Context, next models.VotingSession, pre Precondition) (models.VotingSession, error) {
	f.mu.Lock()
	err, lostAck := f.transitionErr, f.lostAckErr
	f.mu.Unlock()
	if err != nil {
		return models.VotingSession{}, err
	}
	stored, err := f.MemoryStore.Transition(ctx, next, pre)
	if err == nil && lostAck != nil {
		return models.VotingSession{}, lostAck
	}
	return stored, err
}

func (f *flakyStore) UpdateRemaining(ctx context.Context, name string, roundID uuid.UUID, remaining int) (bool, error) {
	f.mu.Lock()
	err := f.remainingErr
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.MemoryStore.UpdateRemaining(ctx, name, roundID, remaining)
}
