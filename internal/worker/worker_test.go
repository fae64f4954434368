package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/votestream/backend/internal/ideas"
	"github.com/votestream/backend/internal/leaderboard"
	"github.com/votestream/backend/internal/models"
	"github.com/votestream/backend/internal/votes"
	"github.com/votestream/backend/pkg/queue"
)

type mockObjects struct{ mock.Mock }

func (m *mockObjects) PutSnapshot(ctx context.Context, key string, body []byte) error {
	return m.Called(ctx, key, body).Error(0)
}

type mockRecords struct{ mock.Mock }

func (m *mockRecords) Insert(ctx context.Context, s *models.LeaderboardSnapshot) (bool, error) {
	args := m.Called(ctx, s)
	return args.Bool(0), args.Error(1)
}

func (m *mockRecords) GetByRound(ctx context.Context, roundID uuid.UUID) (*models.LeaderboardSnapshot, error) {
	args := m.Called(ctx, roundID)
	snap, _ := args.Get(0).(*models.LeaderboardSnapshot)
	return snap, args.Error(1)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Dequeue(ctx context.Context) (*queue.Job, string, error) {
	args := m.Called(ctx)
	job, _ := args.Get(0).(*queue.Job)
	return job, args.String(1), args.Error(2)
}

func (m *mockQueue) Retry(ctx context.Context, job *queue.Job) error {
	return m.Called(ctx, job).Error(0)
}

type fixture struct {
	proc    *LeaderboardProcessor
	objects *mockObjects
	records *mockRecords
	queue   *mockQueue
	ideas   []*models.Idea
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	ideaStore := ideas.NewMemoryStore()
	voteStore := votes.NewMemoryStore()

	author := uuid.New()
	var created []*models.Idea
	for _, title := range []string{"Solar roof", "Bike racks", "Quiet room"} {
		idea := &models.Idea{Title: title, AuthorID: author, AuthorName: "Ann"}
		require.NoError(t, ideaStore.Create(ctx, idea))
		created = append(created, idea)
	}
	// Bike racks: 2 votes, Quiet room: 1 vote.
	for i, ideaIdx := range []int{1, 1, 2} {
		require.NoError(t, voteStore.Insert(ctx, &models.Vote{
			IdeaID:       created[ideaIdx].ID,
			VoterID:      uuid.New(),
			TargetUserID: uuid.New(),
			VoterName:    []string{"a", "b", "c"}[i],
		}))
	}

	f := &fixture{objects: &mockObjects{}, records: &mockRecords{}, queue: &mockQueue{}, ideas: created}
	f.proc = NewLeaderboardProcessor(ideaStore, voteStore, f.objects, f.records, f.queue, nil)
	f.proc.backoff = time.Millisecond
	f.proc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return f
}

func snapshotJob(t *testing.T, round uuid.UUID) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypeLeaderboardSnapshot, queue.LeaderboardPayload{SessionName: "default", RoundID: round})
	require.NoError(t, err)
	return job
}

func TestProcessUploadsAndRecords(t *testing.T) {
	f := newFixture(t)
	round := uuid.New()
	key := "leaderboards/default/" + round.String() + ".json"

	f.records.On("GetByRound", mock.Anything, round).Return(nil, models.ErrNotFound).Once()
	var uploaded []byte
	f.objects.On("PutSnapshot", mock.Anything, key, mock.Anything).
		Run(func(args mock.Arguments) { uploaded = args.Get(2).([]byte) }).
		Return(nil).Once()
	f.records.On("Insert", mock.Anything, mock.MatchedBy(func(s *models.LeaderboardSnapshot) bool {
		return s.RoundID == round && s.S3Key == key && s.TotalIdeas == 3 && s.TotalVotes == 3 && s.UniqueVoters == 3
	})).Return(true, nil).Once()

	require.NoError(t, f.proc.Process(context.Background(), snapshotJob(t, round)))
	f.objects.AssertExpectations(t)
	f.records.AssertExpectations(t)

	var board leaderboard.Board
	require.NoError(t, json.Unmarshal(uploaded, &board))
	assert.Equal(t, round, board.RoundID)
	assert.Equal(t, "default", board.SessionName)
	require.Len(t, board.Podium, 3)
	assert.Equal(t, "Bike racks", board.Podium[0].Idea.Title)
	assert.Equal(t, 2, board.Podium[0].Votes)
	assert.Equal(t, "Quiet room", board.Podium[1].Idea.Title)
	assert.Equal(t, "Solar roof", board.Podium[2].Idea.Title)
	assert.Empty(t, board.Others)
}

func TestProcessUsesBoardCapturedAtRoundEnd(t *testing.T) {
	f := newFixture(t)
	round := uuid.New()
	key := "leaderboards/default/" + round.String() + ".json"

	// Captured before the fixture's later votes were cast.
	session := models.VotingSession{Name: "default", ID: round, Phase: models.PhaseEnded}
	captured := leaderboard.Build(session, []models.Idea{*f.ideas[0]}, []models.Vote{
		{IdeaID: f.ideas[0].ID, VoterID: uuid.New(), TargetUserID: uuid.New()},
	}, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC))
	raw, err := json.Marshal(captured)
	require.NoError(t, err)
	job, err := queue.NewJob(queue.JobTypeLeaderboardSnapshot, queue.LeaderboardPayload{SessionName: "default", RoundID: round, Board: raw})
	require.NoError(t, err)

	f.records.On("GetByRound", mock.Anything, round).Return(nil, models.ErrNotFound).Once()
	f.objects.On("PutSnapshot", mock.Anything, key, []byte(raw)).Return(nil).Once()
	f.records.On("Insert", mock.Anything, mock.MatchedBy(func(s *models.LeaderboardSnapshot) bool {
		return s.RoundID == round && s.TotalIdeas == 1 && s.TotalVotes == 1 && s.UniqueVoters == 1
	})).Return(true, nil).Once()

	require.NoError(t, f.proc.Process(context.Background(), job))
	f.objects.AssertExpectations(t)
	f.records.AssertExpectations(t)
}

func TestProcessSkipsStoredRound(t *testing.T) {
	f := newFixture(t)
	round := uuid.New()
	f.records.On("GetByRound", mock.Anything, round).
		Return(&models.LeaderboardSnapshot{RoundID: round}, nil).Once()

	require.NoError(t, f.proc.Process(context.Background(), snapshotJob(t, round)))
	f.objects.AssertNotCalled(t, "PutSnapshot", mock.Anything, mock.Anything, mock.Anything)
	f.records.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestProcessErrors(t *testing.T) {
	f := newFixture(t)

	err := f.proc.Process(context.Background(), &queue.Job{Type: "transcode"})
	assert.ErrorContains(t, err, "unknown job type")

	err = f.proc.Process(context.Background(), &queue.Job{Type: queue.JobTypeLeaderboardSnapshot, Payload: []byte(`{`)})
	assert.ErrorContains(t, err, "unmarshal payload")

	round := uuid.New()
	f.records.On("GetByRound", mock.Anything, round).Return(nil, models.ErrNotFound)
	f.objects.On("PutSnapshot", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("access denied")).Once()
	err = f.proc.Process(context.Background(), snapshotJob(t, round))
	assert.ErrorContains(t, err, "s3 upload")
	f.records.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestRunRetriesFailedJobs(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := &queue.Job{ID: "j1", Type: "unknown"}
	f.queue.On("Dequeue", mock.Anything).Return(job, queue.QueueLeaderboards, nil).Once()
	f.queue.On("Retry", mock.Anything, job).Return(nil).Once().Run(func(mock.Arguments) { cancel() })
	f.queue.On("Dequeue", mock.Anything).Return(nil, "", context.Canceled).Maybe()

	done := make(chan struct{})
	go func() {
		f.proc.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	f.queue.AssertExpectations(t)
}
