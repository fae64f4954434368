package snapshots

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/votestream/backend/internal/leaderboard"
	"github.com/votestream/backend/internal/models"
	"github.com/votestream/backend/pkg/queue"
)

const enqueueTimeout = 5 * time.Second

// Enqueuer accepts leaderboard snapshot jobs.
type Enqueuer interface {
	EnqueueLeaderboardSnapshot(ctx context.Context, payload queue.LeaderboardPayload) error
}

// IdeaSource returns all ideas in insertion order.
type IdeaSource interface {
	List(ctx context.Context) ([]models.Idea, error)
}

// VoteSource returns the whole vote ledger.
type VoteSource interface {
	List(ctx context.Context) ([]models.Vote, error)
}

// Scheduler queues a snapshot job whenever a round ends on this instance. The
// ranking is frozen into the job so a late or retried job cannot pick up votes
// from a later round.
type Scheduler struct {
	queue  Enqueuer
	ideas  IdeaSource
	votes  VoteSource
	now    func() time.Time
	logger *zap.Logger
}

// NewScheduler creates a snapshot scheduler.
func NewScheduler(q Enqueuer, ideas IdeaSource, votes VoteSource, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{queue: q, ideas: ideas, votes: votes, now: time.Now, logger: logger}
}

// RoundEnded matches sessions.EndedHandler. A failed enqueue is logged; the round
// stays ended either way. If the board cannot be built the job is queued without
// one and the worker ranks the ledger itself.
func (s *Scheduler) RoundEnded(sess models.VotingSession) {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()
	payload := queue.LeaderboardPayload{SessionName: sess.Name, RoundID: sess.ID}
	board, err := s.capture(ctx, sess)
	if err != nil {
		s.logger.Warn("capture final leaderboard failed", zap.Error(err), zap.String("round_id", sess.ID.String()))
	} else {
		payload.Board = board
	}
	if err := s.queue.EnqueueLeaderboardSnapshot(ctx, payload); err != nil {
		s.logger.Error("enqueue leaderboard snapshot failed",
			zap.Error(err), zap.String("round_id", sess.ID.String()))
		return
	}
	s.logger.Info("leaderboard snapshot scheduled", zap.String("round_id", sess.ID.String()))
}

func (s *Scheduler) capture(ctx context.Context, sess models.VotingSession) (json.RawMessage, error) {
	ideas, err := s.ideas.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	votes, err := s.votes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return json.Marshal(leaderboard.Build(sess, ideas, votes, s.now()))
}
