package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/votestream/backend/internal/models"
)

// Subscriber delivers events published for a session to this instance.
type Subscriber interface {
	SubscribeRoom(room string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Synchronizer reconciles the controller's local state with the shared store and the
// change events other instances publish. Remote state wins; the local countdown only
// smooths the display between updates.
type Synchronizer struct {
	ctrl     *Controller
	store    Store
	notifier Notifier
	logger   *zap.Logger

	mu            sync.Mutex
	pendingExpiry uuid.UUID // round that ended locally but not yet at the store
}

// NewSynchronizer creates a synchronizer for ctrl. notifier may be nil.
func NewSynchronizer(ctrl *Controller, store Store, notifier Notifier, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{ctrl: ctrl, store: store, notifier: notifier, logger: logger.With(zap.String("session", ctrl.Name()))}
}

// Load reads the authoritative record once, e.g. at startup.
func (s *Synchronizer) Load(ctx context.Context) error {
	remote, err := s.store.Load(ctx, s.ctrl.Name())
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	s.ApplyRemote(remote)
	return nil
}

// ApplyRemote overwrites the local phase and countdown with remote. It reports false
// when remote is a stale copy of a round that already ended locally.
func (s *Synchronizer) ApplyRemote(remote models.VotingSession) bool {
	applied, ok := s.ctrl.applyRemote(remote)
	if !ok {
		s.logger.Debug("remote session update ignored",
			zap.String("round_id", remote.ID.String()), zap.String("phase", string(remote.Phase)))
		return false
	}
	s.logger.Debug("remote session update applied",
		zap.String("round_id", applied.ID.String()),
		zap.String("phase", string(applied.Phase)),
		zap.Int("time_remaining", applied.TimeRemainingSeconds))
	return true
}

// HandleEvent decodes session_changed payloads from the notification channel.
func (s *Synchronizer) HandleEvent(event string, payload []byte) {
	if event != EventSessionChanged {
		return
	}
	var remote models.VotingSession
	if err := json.Unmarshal(payload, &remote); err != nil {
		s.logger.Warn("invalid session payload", zap.Error(err))
		return
	}
	s.ApplyRemote(remote)
}

// Run consumes remote session events until ctx is done.
func (s *Synchronizer) Run(ctx context.Context, sub Subscriber) error {
	cancel, err := sub.SubscribeRoom(s.ctrl.Name(), s.HandleEvent)
	if err != nil {
		return fmt.Errorf("subscribe session events: %w", err)
	}
	s.logger.Info("session synchronizer started")
	<-ctx.Done()
	cancel()
	s.logger.Info("session synchronizer stopped")
	return nil
}

// PushLocalTick propagates local countdown progress. Failures are logged, never returned.
func (s *Synchronizer) PushLocalTick(ctx context.Context, remaining int) {
	cur := s.ctrl.Snapshot()
	if !cur.IsActive() {
		return
	}
	ok, err := s.store.UpdateRemaining(ctx, cur.Name, cur.ID, remaining)
	if err != nil {
		s.logger.Warn("push local tick failed", zap.Error(err), zap.Int("time_remaining", remaining))
		return
	}
	if !ok {
		return
	}
	cur.TimeRemainingSeconds = remaining
	if s.notifier != nil {
		s.notifier.Publish(EventSessionChanged, cur.Normalized())
	}
}

// PushExpiry records at the store that the local countdown ended the current round.
// Losing the race to another instance is expected and ignored. Any other failure leaves
// the round pending so RetryExpiry can write it again.
func (s *Synchronizer) PushExpiry(ctx context.Context) {
	cur := s.ctrl.Snapshot()
	if !cur.HasEnded() {
		return
	}
	pre := Precondition{Phases: []models.Phase{models.PhaseActive}, RoundID: cur.ID}
	stored, err := s.store.Transition(ctx, endedCopy(cur), pre)
	if err != nil {
		if errors.Is(err, models.ErrInvalidState) {
			s.setPending(uuid.Nil)
			s.logger.Debug("round already ended elsewhere", zap.String("round_id", cur.ID.String()))
			return
		}
		s.setPending(cur.ID)
		s.logger.Warn("push expiry failed", zap.Error(err), zap.String("round_id", cur.ID.String()))
		return
	}
	s.setPending(uuid.Nil)
	s.ctrl.confirmEnded(stored)
}

// RetryExpiry repeats a failed PushExpiry while the same round is still ended locally.
// It reports whether a write was attempted.
func (s *Synchronizer) RetryExpiry(ctx context.Context) bool {
	s.mu.Lock()
	round := s.pendingExpiry
	s.mu.Unlock()
	if round == uuid.Nil {
		return false
	}
	cur := s.ctrl.Snapshot()
	if !cur.HasEnded() || cur.ID != round {
		s.setPending(uuid.Nil)
		return false
	}
	s.PushExpiry(ctx)
	return true
}

func (s *Synchronizer) setPending(round uuid.UUID) {
	s.mu.Lock()
	s.pendingExpiry = round
	s.mu.Unlock()
}
