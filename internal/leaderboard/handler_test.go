package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/votestream/backend/internal/models"
)

type staticSource struct {
	ideas   []models.Idea
	votes   []models.Vote
	session models.VotingSession
	err     error
}

func (s staticSource) List(context.Context) ([]models.Idea, error) { return s.ideas, s.err }
func (s staticSource) All(context.Context) ([]models.Vote, error)  { return s.votes, nil }
func (s staticSource) Snapshot() models.VotingSession              { return s.session }

type mockFinder struct{ mock.Mock }

func (m *mockFinder) GetByRound(ctx context.Context, id uuid.UUID) (*models.LeaderboardSnapshot, error) {
	args := m.Called(ctx, id)
	snap, _ := args.Get(0).(*models.LeaderboardSnapshot)
	return snap, args.Error(1)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) SnapshotURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/leaderboard", h.Live)
	r.GET("/leaderboard/snapshots/:round", h.Snapshot)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveLeaderboard(t *testing.T) {
	list := ideasNamed("A", "B")
	b := list[1]
	round := uuid.New()
	src := staticSource{
		ideas:   list,
		votes:   votesFor(b, 2),
		session: models.VotingSession{Name: "default", ID: round, Phase: models.PhaseActive},
	}
	w := serve(NewHandler(src, src, src, nil, nil, nil), "/leaderboard")
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Data Board `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, round, out.Data.RoundID)
	require.Len(t, out.Data.Podium, 2)
	assert.Equal(t, b.ID, out.Data.Podium[0].Idea.ID)
	assert.Equal(t, 2, out.Data.Summary.TotalVotes)

	src.err = models.Unavailable("list ideas", errors.New("eof"))
	w = serve(NewHandler(src, src, src, nil, nil, nil), "/leaderboard")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSnapshotEndpoint(t *testing.T) {
	src := staticSource{}
	assert.Equal(t, http.StatusNotFound, serve(NewHandler(src, src, src, nil, nil, nil), "/leaderboard/snapshots/"+uuid.NewString()).Code)

	finder, signer := &mockFinder{}, &mockSigner{}
	h := NewHandler(src, src, src, finder, signer, nil)
	assert.Equal(t, http.StatusBadRequest, serve(h, "/leaderboard/snapshots/nope").Code)

	missing := uuid.New()
	finder.On("GetByRound", mock.Anything, missing).Return(nil, models.ErrNotFound).Once()
	assert.Equal(t, http.StatusNotFound, serve(h, "/leaderboard/snapshots/"+missing.String()).Code)

	round := uuid.New()
	snap := &models.LeaderboardSnapshot{RoundID: round, SessionName: "default", S3Key: "leaderboards/default/x.json", TotalVotes: 4}
	finder.On("GetByRound", mock.Anything, round).Return(snap, nil).Twice()
	signer.On("SnapshotURL", mock.Anything, snap.S3Key).Return("https://s3.test/x.json?sig", nil).Once()
	signer.On("SnapshotURL", mock.Anything, snap.S3Key).Return("", errors.New("no credentials")).Once()

	w := serve(h, "/leaderboard/snapshots/"+round.String())
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "https://s3.test/x.json?sig", out.Data["download_url"])
	assert.Equal(t, round.String(), out.Data["round_id"])
	assert.EqualValues(t, 4, out.Data["total_votes"])

	assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/leaderboard/snapshots/"+round.String()).Code)
	finder.AssertExpectations(t)
	signer.AssertExpectations(t)
}
