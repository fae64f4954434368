package votes

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votestream/backend/internal/ideas"
	"github.com/votestream/backend/internal/models"
	"github.com/votestream/backend/internal/sessions"
)

type fixture struct {
	ledger  *Ledger
	store   *MemoryStore
	ideas   *ideas.Service
	session *sessions.Controller
	u1      models.Participant
	u2      models.Participant
	u3      models.Participant
	idea    *models.Idea
}

func newFixture(t *testing.T, active bool) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:   NewMemoryStore(),
		ideas:   ideas.NewService(ideas.NewMemoryStore(), nil, nil),
		session: sessions.NewController("default", sessions.NewMemoryStore(), nil, nil),
		u1:      models.Participant{ID: uuid.New(), Name: "Ada"},
		u2:      models.Participant{ID: uuid.New(), Name: "Grace"},
		u3:      models.Participant{ID: uuid.New(), Name: "Linus"},
	}
	f.ledger = NewLedger(f.store, f.ideas, f.session, nil, nil)

	idea, err := f.ideas.Submit(ctx, models.IdeaDraft{Title: "Dark mode", Description: "Everywhere"}, f.u1)
	require.NoError(t, err)
	f.idea = idea

	if active {
		_, err := f.session.Start(ctx, 60)
		require.NoError(t, err)
	}
	return f
}

func TestProxyVoteCountsOncePerBeneficiary(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	res, err := f.ledger.CastVote(ctx, CastRequest{IdeaID: f.idea.ID, Voter: f.u2, Target: f.u3})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, res.Outcome)
	require.NotNil(t, res.Vote)
	assert.Equal(t, f.u2.ID, res.Vote.VoterID)
	assert.Equal(t, f.u3.ID, res.Vote.TargetUserID)
	assert.Equal(t, "Linus", res.Vote.TargetUserName)

	n, err := f.ledger.CountFor(ctx, f.idea.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	voters, err := f.ledger.VotersFor(ctx, f.idea.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.u3.ID}, voters)

	res, err = f.ledger.CastVote(ctx, CastRequest{IdeaID: f.idea.ID, Voter: f.u2, Target: f.u3})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyVoted, res.Outcome)
	assert.Nil(t, res.Vote)

	// The beneficiary voting directly is the same (idea, target) pair.
	res, err = f.ledger.CastVote(ctx, CastRequest{IdeaID: f.idea.ID, Voter: f.u3})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyVoted, res.Outcome)

	n, err = f.ledger.CountFor(ctx, f.idea.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVotesRejectedOutsideActivePhase(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.ledger.CastVote(ctx, CastRequest{IdeaID: f.idea.ID, Voter: f.u2})
	assert.ErrorIs(t, err, models.ErrSessionNotActive)

	_, err = f.session.Start(ctx, 60)
	require.NoError(t, err)
	_, err = f.session.ForceEnd(ctx)
	require.NoError(t, err)

	_, err = f.ledger.CastVote(ctx, CastRequest{IdeaID: f.idea.ID, Voter: f.u2})
	assert.ErrorIs(t, err, models.ErrSessionNotActive)

	all, err := f.ledger.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAuthorCannotReceiveVoteOnOwnIdea(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.ledger.CastVote(ctx, CastRequest{IdeaID: f.idea.ID, Voter: f.u1})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "target_user_id", ve.Field)

	_, err = f.ledger.CastVote(ctx, CastRequest{IdeaID: f.idea.ID, Voter: f.u2, Target: f.u1})
	assert.ErrorIs(t, err, models.ErrValidation)

	// The author may still cast a proxy vote for someone else.
	res, err := f.ledger.CastVote(ctx, CastRequest{IdeaID: f.idea.ID, Voter: f.u1, Target: f.u2})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecorded, res.Outcome)
}

func TestCastVoteValidation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.ledger.CastVote(ctx, CastRequest{IdeaID: f.idea.ID})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.ledger.CastVote(ctx, CastRequest{IdeaID: uuid.New(), Voter: f.u2})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConcurrentVotesForSamePairRecordOnce(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	const callers = 50
	var wg sync.WaitGroup
	outcomes := make(chan Outcome, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			voter := models.Participant{ID: uuid.New(), Name: "proxy"}
			res, err := f.ledger.CastVote(ctx, CastRequest{IdeaID: f.idea.ID, Voter: voter, Target: f.u3})
			assert.NoError(t, err)
			outcomes <- res.Outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	recorded, already := 0, 0
	for o := range outcomes {
		switch o {
		case OutcomeRecorded:
			recorded++
		case OutcomeAlreadyVoted:
			already++
		}
	}
	assert.Equal(t, 1, recorded)
	assert.Equal(t, callers-1, already)

	n, err := f.ledger.CountFor(ctx, f.idea.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Publish(event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func TestRecordedVotesArePublished(t *testing.T) {
	f := newFixture(t, true)
	n := &recordingNotifier{}
	f.ledger = NewLedger(f.store, f.ideas, f.session, n, nil)
	ctx := context.Background()

	_, err := f.ledger.CastVote(ctx, CastRequest{IdeaID: f.idea.ID, Voter: f.u2})
	require.NoError(t, err)
	_, err = f.ledger.CastVote(ctx, CastRequest{IdeaID: f.idea.ID, Voter: f.u2})
	require.NoError(t, err)

	assert.Equal(t, []string{EventVoteRecorded}, n.events)
}
