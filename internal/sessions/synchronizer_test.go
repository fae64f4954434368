package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/votestream/backend/internal/models"
)

func TestRemoteEndStopsLocalCountdown(t *testing.T) {
	store := NewMemoryStore()
	c, _ := newController(t, store)
	s := NewSynchronizer(c, store, nil, nil)

	started, err := c.Start(context.Background(), 60)
	require.NoError(t, err)

	remote := started
	remote.Phase = models.PhaseEnded
	remote.TimeRemainingSeconds = 0
	assert.True(t, s.ApplyRemote(remote))
	assert.Equal(t, models.PhaseEnded, c.Snapshot().Phase)

	_, err = c.Tick()
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestApplyRemoteRules(t *testing.T) {
	store := NewMemoryStore()
	c, _ := newController(t, store)
	s := NewSynchronizer(c, store, nil, nil)

	started, err := c.Start(context.Background(), 60)
	require.NoError(t, err)

	// Remote is authoritative over the local countdown, in both directions.
	behind := started
	behind.TimeRemainingSeconds = 42
	require.True(t, s.ApplyRemote(behind))
	assert.Equal(t, 42, c.Snapshot().TimeRemainingSeconds)

	_, err = c.ForceEnd(context.Background())
	require.NoError(t, err)

	// A delayed active update of the same round must not reopen it.
	stale := started
	stale.TimeRemainingSeconds = 30
	assert.False(t, s.ApplyRemote(stale))
	assert.Equal(t, models.PhaseEnded, c.Snapshot().Phase)

	// A genuine restart elsewhere carries a new round id.
	restarted := models.VotingSession{Name: "default", ID: uuid.New(), Phase: models.PhaseActive,
		TimeRemainingSeconds: 90, TotalDurationSeconds: 90}
	assert.True(t, s.ApplyRemote(restarted))
	assert.Equal(t, restarted.ID, c.Snapshot().ID)
	assert.Equal(t, models.PhaseActive, c.Snapshot().Phase)

	// Updates for another session record are ignored.
	other := restarted
	other.Name = "other"
	other.Phase = models.PhaseEnded
	assert.False(t, s.ApplyRemote(other))
	assert.Equal(t, models.PhaseActive, c.Snapshot().Phase)
}

func TestApplyRemoteNormalizesInvalidSnapshot(t *testing.T) {
	store := NewMemoryStore()
	c, _ := newController(t, store)
	s := NewSynchronizer(c, store, nil, nil)

	require.True(t, s.ApplyRemote(models.VotingSession{
		Name: "default", ID: uuid.New(), Phase: models.PhaseActive,
		TimeRemainingSeconds: 500, TotalDurationSeconds: 60,
	}))
	got := c.Snapshot()
	assert.Equal(t, 60, got.TimeRemainingSeconds)
}

func TestHandleEventDecodesSessionChanged(t *testing.T) {
	store := NewMemoryStore()
	c, _ := newController(t, store)
	s := NewSynchronizer(c, store, nil, nil)

	remote := models.VotingSession{Name: "default", ID: uuid.New(), Phase: models.PhaseActive,
		TimeRemainingSeconds: 12, TotalDurationSeconds: 20}
	raw, err := json.Marshal(remote)
	require.NoError(t, err)

	s.HandleEvent("vote_recorded", raw)
	assert.Equal(t, models.PhaseIdle, c.Snapshot().Phase)

	s.HandleEvent(EventSessionChanged, []byte("{not json"))
	assert.Equal(t, models.PhaseIdle, c.Snapshot().Phase)

	s.HandleEvent(EventSessionChanged, raw)
	got := c.Snapshot()
	assert.Equal(t, models.PhaseActive, got.Phase)
	assert.Equal(t, 12, got.TimeRemainingSeconds)
	assert.Equal(t, remote.ID, got.ID)
}

func TestLoadAdoptsStoredRound(t *testing.T) {
	store := NewMemoryStore()
	a, _ := newController(t, store)
	_, err := a.Start(context.Background(), 45)
	require.NoError(t, err)

	b, _ := newController(t, store)
	require.NoError(t, NewSynchronizer(b, store, nil, nil).Load(context.Background()))
	assert.Equal(t, a.Snapshot().ID, b.Snapshot().ID)
	assert.Equal(t, models.PhaseActive, b.Snapshot().Phase)
}

func TestPushLocalTickFailureIsLoggedNotReturned(t *testing.T) {
	store := newFlakyStore()
	core, logs := observer.New(zap.WarnLevel)
	c, _ := newController(t, store)
	n := &recordingNotifier{}
	s := NewSynchronizer(c, store, n, zap.New(core))

	_, err := c.Start(context.Background(), 10)
	require.NoError(t, err)
	tick, err := c.Tick()
	require.NoError(t, err)

	store.failRemaining(models.Unavailable("update time remaining", errors.New("broken pipe")))
	s.PushLocalTick(context.Background(), tick.TimeRemainingSeconds)

	assert.Equal(t, 1, logs.FilterMessage("push local tick failed").Len())
	assert.Empty(t, n.sessions())
	assert.Equal(t, 9, c.Snapshot().TimeRemainingSeconds)
}

func TestPushLocalTickPublishesOnlyProgress(t *testing.T) {
	store := NewMemoryStore()
	c, _ := newController(t, store)
	n := &recordingNotifier{}
	s := NewSynchronizer(c, store, n, nil)

	_, err := c.Start(context.Background(), 10)
	require.NoError(t, err)
	tick, err := c.Tick()
	require.NoError(t, err)

	s.PushLocalTick(context.Background(), tick.TimeRemainingSeconds)
	s.PushLocalTick(context.Background(), tick.TimeRemainingSeconds) // store already at 9

	pushed := n.sessions()
	require.Len(t, pushed, 1)
	assert.Equal(t, 9, pushed[0].TimeRemainingSeconds)

	stored, err := store.Load(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, 9, stored.TimeRemainingSeconds)
}

func TestExpiryIsRecordedByExactlyOneInstance(t *testing.T) {
	store := NewMemoryStore()
	a, _ := newController(t, store)
	b, _ := newController(t, store)
	syncA := NewSynchronizer(a, store, nil, nil)
	syncB := NewSynchronizer(b, store, nil, nil)

	endedCount := 0
	a.OnEnded(func(models.VotingSession) { endedCount++ })
	b.OnEnded(func(models.VotingSession) { endedCount++ })

	_, err := a.Start(context.Background(), 2)
	require.NoError(t, err)
	require.NoError(t, syncB.Load(context.Background()))

	for _, c := range []*Controller{a, b} {
		for i := 0; i < 2; i++ {
			_, err := c.Tick()
			require.NoError(t, err)
		}
		require.True(t, c.Snapshot().HasEnded())
	}

	syncA.PushExpiry(context.Background())
	syncB.PushExpiry(context.Background())

	assert.Equal(t, 1, endedCount)
	stored, err := store.Load(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseEnded, stored.Phase)
}

// endLocallyWithFailedExpiry runs a two second round to zero while the store refuses
// the expiry write, leaving the store one step behind.
func endLocallyWithFailedExpiry(t *testing.T, store *flakyStore, c *Controller, s *Synchronizer) models.VotingSession {
	t.Helper()
	started, err := c.Start(context.Background(), 2)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		tick, err := c.Tick()
		require.NoError(t, err)
		s.PushLocalTick(context.Background(), tick.TimeRemainingSeconds)
	}
	require.True(t, c.Snapshot().HasEnded())

	store.failTransitions(models.Unavailable("transition session", errors.New("connection reset")))
	s.PushExpiry(context.Background())
	store.failTransitions(nil)

	stored, err := store.Load(context.Background(), "default")
	require.NoError(t, err)
	require.Equal(t, models.PhaseActive, stored.Phase)
	return started
}

func TestFailedExpiryIsRetriedByTicker(t *testing.T) {
	store := newFlakyStore()
	c, n := newController(t, store)
	s := NewSynchronizer(c, store, n, nil)
	var ended []models.VotingSession
	c.OnEnded(func(sess models.VotingSession) { ended = append(ended, sess) })

	started := endLocallyWithFailedExpiry(t, store, c, s)
	assert.Empty(t, ended)

	tk := NewTicker(c, s, time.Millisecond, nil)
	tk.step(context.Background())

	stored, err := store.Load(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseEnded, stored.Phase)
	require.Len(t, ended, 1)
	assert.Equal(t, started.ID, ended[0].ID)

	// Nothing is pending any more.
	assert.False(t, s.RetryExpiry(context.Background()))

	restarted, err := c.Start(context.Background(), 5)
	require.NoError(t, err)
	assert.NotEqual(t, started.ID, restarted.ID)
}

func TestStartEndsRoundWhoseExpiryNeverReachedStore(t *testing.T) {
	store := newFlakyStore()
	c, _ := newController(t, store)
	s := NewSynchronizer(c, store, nil, nil)
	endedCount := 0
	c.OnEnded(func(models.VotingSession) { endedCount++ })

	started := endLocallyWithFailedExpiry(t, store, c, s)

	restarted, err := c.Start(context.Background(), 5)
	require.NoError(t, err)
	assert.NotEqual(t, started.ID, restarted.ID)
	assert.Equal(t, models.PhaseActive, restarted.Phase)
	assert.Equal(t, 1, endedCount)

	// The stale pending expiry is dropped once a new round runs.
	assert.False(t, s.RetryExpiry(context.Background()))
	stored, err := store.Load(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, restarted.ID, stored.ID)
	assert.Equal(t, models.PhaseActive, stored.Phase)
}
