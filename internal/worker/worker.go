package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/votestream/backend/internal/leaderboard"
	"github.com/votestream/backend/internal/models"
	"github.com/votestream/backend/pkg/queue"
	"github.com/votestream/backend/pkg/storage"
)

// JobSource is the Redis job list.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// IdeaSource returns all ideas in insertion order.
type IdeaSource interface {
	List(ctx context.Context) ([]models.Idea, error)
}

// VoteSource returns the whole vote ledger.
type VoteSource interface {
	List(ctx context.Context) ([]models.Vote, error)
}

// ObjectStore uploads snapshot documents.
type ObjectStore interface {
	PutSnapshot(ctx context.Context, key string, body []byte) error
}

// SnapshotStore records uploaded snapshots.
type SnapshotStore interface {
	Insert(ctx context.Context, s *models.LeaderboardSnapshot) (bool, error)
	GetByRound(ctx context.Context, roundID uuid.UUID) (*models.LeaderboardSnapshot, error)
}

// LeaderboardProcessor processes snapshot jobs: take the captured ranking, upload JSON to S3, record it in the DB.
type LeaderboardProcessor struct {
	ideas   IdeaSource
	votes   VoteSource
	objects ObjectStore
	records SnapshotStore
	queue   JobSource
	backoff time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewLeaderboardProcessor creates a leaderboard snapshot processor.
func NewLeaderboardProcessor(ideas IdeaSource, votes VoteSource, objects ObjectStore, records SnapshotStore, q JobSource, logger *zap.Logger) *LeaderboardProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaderboardProcessor{
		ideas:   ideas,
		votes:   votes,
		objects: objects,
		records: records,
		queue:   q,
		backoff: queue.RetryBackoff,
		now:     time.Now,
		logger:  logger,
	}
}

// Process executes one leaderboard snapshot job. Processing a round twice is a no-op.
func (p *LeaderboardProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeLeaderboardSnapshot {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.LeaderboardPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if existing, err := p.records.GetByRound(ctx, payload.RoundID); err == nil && existing != nil {
		p.logger.Info("leaderboard snapshot already stored", zap.String("round_id", payload.RoundID.String()))
		return nil
	}

	body, board, err := p.board(ctx, payload)
	if err != nil {
		return err
	}

	key := storage.LeaderboardKey(payload.SessionName, payload.RoundID.String())
	if err := p.objects.PutSnapshot(ctx, key, body); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	snap := &models.LeaderboardSnapshot{
		RoundID:      payload.RoundID,
		SessionName:  payload.SessionName,
		S3Key:        key,
		TotalIdeas:   board.Summary.TotalIdeas,
		TotalVotes:   board.Summary.TotalVotes,
		UniqueVoters: board.Summary.UniqueVoters,
	}
	if _, err := p.records.Insert(ctx, snap); err != nil {
		p.logger.Error("record leaderboard snapshot failed", zap.Error(err), zap.String("round_id", payload.RoundID.String()))
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("leaderboard snapshot completed",
		zap.String("round_id", payload.RoundID.String()), zap.String("s3_key", key), zap.Int("total_votes", snap.TotalVotes))
	return nil
}

// board returns the ranking captured at round end, or ranks the ledger now for
// jobs queued without one.
func (p *LeaderboardProcessor) board(ctx context.Context, payload queue.LeaderboardPayload) ([]byte, leaderboard.Board, error) {
	var board leaderboard.Board
	if len(payload.Board) > 0 {
		if err := json.Unmarshal(payload.Board, &board); err != nil {
			return nil, board, fmt.Errorf("unmarshal board: %w", err)
		}
		return payload.Board, board, nil
	}

	ideas, err := p.ideas.List(ctx)
	if err != nil {
		return nil, board, fmt.Errorf("list ideas: %w", err)
	}
	votes, err := p.votes.List(ctx)
	if err != nil {
		return nil, board, fmt.Errorf("list votes: %w", err)
	}
	session := models.VotingSession{Name: payload.SessionName, ID: payload.RoundID, Phase: models.PhaseEnded}
	board = leaderboard.Build(session, ideas, votes, p.now())
	body, err := json.Marshal(board)
	if err != nil {
		return nil, board, fmt.Errorf("marshal leaderboard: %w", err)
	}
	return body, board, nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *LeaderboardProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("leaderboard worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *LeaderboardProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
