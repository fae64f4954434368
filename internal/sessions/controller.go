package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/votestream/backend/internal/models"
)

// remoteTimeout bounds each write to the shared store.
const remoteTimeout = 5 * time.Second

// EndedHandler is called once per round by the instance whose write ended it.
type EndedHandler func(s models.VotingSession)

// Controller owns the local copy of one voting session and is the only component
// that moves its phase. Remote-backed transitions are applied locally only after the
// store acknowledges them.
type Controller struct {
	mu       sync.Mutex
	state    models.VotingSession
	store    Store
	notifier Notifier
	onEnded  EndedHandler
	newID    func() uuid.UUID
	logger   *zap.Logger
}

// NewController creates an idle controller for the session record name. notifier may be nil.
func NewController(name string, store Store, notifier Notifier, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		state:    models.NewIdleSession(name),
		store:    store,
		notifier: notifier,
		newID:    uuid.New,
		logger:   logger.With(zap.String("session", name)),
	}
}

// OnEnded registers the handler fired after this instance ends a round.
func (c *Controller) OnEnded(fn EndedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEnded = fn
}

// Name returns the session record key.
func (c *Controller) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Name
}

// Snapshot returns a copy of the local session state.
func (c *Controller) Snapshot() models.VotingSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RequireActive returns models.ErrSessionNotActive unless votes may be cast.
func (c *Controller) RequireActive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != models.PhaseActive {
		return fmt.Errorf("%w (phase %s)", models.ErrSessionNotActive, c.state.Phase)
	}
	return nil
}

// Start begins a new round of durationSeconds from idle or ended. A running round is
// never restarted. When the store rejects or fails the write, the local copy is
// reconciled with the stored record; a round whose expiry never reached the store is
// ended there and the start is attempted once more.
func (c *Controller) Start(ctx context.Context, durationSeconds int) (models.VotingSession, error) {
	if durationSeconds < 1 {
		return c.Snapshot(), models.NewValidationError("duration_seconds", "must be at least 1")
	}
	s, stored, err := c.start(ctx, durationSeconds)
	if err != nil && stored && c.resync() {
		s, _, err = c.start(ctx, durationSeconds)
	}
	if err != nil {
		return c.Snapshot(), err
	}
	c.logger.Info("voting session started",
		zap.String("round_id", s.ID.String()), zap.Int("duration_seconds", durationSeconds))
	c.publish(s)
	return s, nil
}

// start performs one guarded write. storeErr reports whether a failure came from the store.
func (c *Controller) start(ctx context.Context, durationSeconds int) (s models.VotingSession, storeErr bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == models.PhaseActive {
		return c.state, false, fmt.Errorf("start: session already active: %w", models.ErrInvalidState)
	}
	next := models.VotingSession{
		Name:                 c.state.Name,
		ID:                   c.newID(),
		Phase:                models.PhaseActive,
		TimeRemainingSeconds: durationSeconds,
		TotalDurationSeconds: durationSeconds,
	}
	stored, err := c.write(ctx, next, Precondition{Phases: []models.Phase{models.PhaseIdle, models.PhaseEnded}})
	if err != nil {
		return c.state, true, fmt.Errorf("start: %w", err)
	}
	c.state = stored
	return stored, false, nil
}

// Tick advances the countdown by one second. Reaching zero ends the round in the same
// call. It fails with models.ErrInvalidState unless the session is active.
func (c *Controller) Tick() (models.VotingSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != models.PhaseActive {
		return c.state, fmt.Errorf("tick: phase %s: %w", c.state.Phase, models.ErrInvalidState)
	}
	if c.state.TimeRemainingSeconds > 0 {
		c.state.TimeRemainingSeconds--
	}
	if c.state.TimeRemainingSeconds == 0 {
		c.state.Phase = models.PhaseEnded
	}
	return c.state, nil
}

// ForceEnd terminates the active round early.
func (c *Controller) ForceEnd(ctx context.Context) (models.VotingSession, error) {
	c.mu.Lock()
	if c.state.Phase != models.PhaseActive {
		cur := c.state
		c.mu.Unlock()
		return cur, fmt.Errorf("end: phase %s: %w", cur.Phase, models.ErrInvalidState)
	}
	next := endedCopy(c.state)
	stored, err := c.write(ctx, next, Precondition{Phases: []models.Phase{models.PhaseActive}, RoundID: c.state.ID})
	if err != nil {
		cur := c.state
		c.mu.Unlock()
		c.resync()
		return cur, fmt.Errorf("end: %w", err)
	}
	c.state = stored
	onEnded := c.onEnded
	c.mu.Unlock()

	c.logger.Info("voting session ended early", zap.String("round_id", stored.ID.String()))
	c.publish(stored)
	if onEnded != nil {
		onEnded(stored)
	}
	return stored, nil
}

// write runs a guarded store transition. It never touches c.state, so it is safe with
// or without c.mu held.
func (c *Controller) write(ctx context.Context, next models.VotingSession, pre Precondition) (models.VotingSession, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()
	stored, err := c.store.Transition(ctx, next, pre)
	if err != nil {
		return models.VotingSession{}, err
	}
	stored.Name = next.Name
	return stored.Normalized(), nil
}

// resync reloads the stored record after a failed or rejected write. A stored round
// that is still active although it ended locally is ended at the store, and true is
// returned; otherwise the stored record is applied like a remote update. It uses its
// own deadline since the caller's context may already be done.
func (c *Controller) resync() bool {
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	name := c.Name()
	stored, err := c.store.Load(ctx, name)
	if err != nil {
		c.logger.Warn("session resync failed", zap.Error(err))
		return false
	}
	stored.Name = name
	local := c.Snapshot()
	if local.HasEnded() && stored.IsActive() && stored.ID == local.ID {
		pre := Precondition{Phases: []models.Phase{models.PhaseActive}, RoundID: local.ID}
		ended, err := c.write(ctx, endedCopy(stored), pre)
		if err != nil {
			c.logger.Warn("ending unconfirmed round failed", zap.Error(err), zap.String("round_id", local.ID.String()))
			return false
		}
		c.confirmEnded(ended)
		return true
	}
	if applied, ok := c.applyRemote(stored); ok {
		c.logger.Info("session resynced from store",
			zap.String("round_id", applied.ID.String()), zap.String("phase", string(applied.Phase)))
	}
	return false
}

// applyRemote overwrites local state with a remote snapshot. An ended round is not
// reactivated unless the remote belongs to a different round.
func (c *Controller) applyRemote(remote models.VotingSession) (models.VotingSession, bool) {
	remote = remote.Normalized()
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote.Name != "" && remote.Name != c.state.Name {
		return c.state, false
	}
	cur := c.state
	if cur.Phase == models.PhaseEnded && remote.Phase == models.PhaseActive &&
		remote.ID == cur.ID && remote.TotalDurationSeconds == cur.TotalDurationSeconds {
		return cur, false
	}
	remote.Name = cur.Name
	c.state = remote
	return remote, true
}

// confirmEnded is called after this instance wrote the expiry of a round.
func (c *Controller) confirmEnded(stored models.VotingSession) {
	stored = stored.Normalized()
	c.mu.Lock()
	stored.Name = c.state.Name
	if c.state.ID == stored.ID {
		c.state = stored
	}
	onEnded := c.onEnded
	c.mu.Unlock()
	c.logger.Info("voting session expired", zap.String("round_id", stored.ID.String()))
	c.publish(stored)
	if onEnded != nil {
		onEnded(stored)
	}
}

func (c *Controller) publish(s models.VotingSession) {
	if c.notifier != nil {
		c.notifier.Publish(EventSessionChanged, s)
	}
}

func endedCopy(s models.VotingSession) models.VotingSession {
	s.Phase = models.PhaseEnded
	s.TimeRemainingSeconds = 0
	return s
}
