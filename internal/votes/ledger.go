package votes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/votestream/backend/internal/models"
)

// EventVoteRecorded is published after a vote is stored.
const EventVoteRecorded = "vote_recorded"

// ErrDuplicateVote is returned by a Store when (idea, target user) already has a vote.
var ErrDuplicateVote = errors.New("duplicate vote for idea and target user")

// Outcome is the non-error result of casting a vote.
type Outcome string

const (
	OutcomeRecorded     Outcome = "recorded"
	OutcomeAlreadyVoted Outcome = "already_voted"
)

// CastRequest names the idea, the authenticated caster and the beneficiary.
// A zero Target means the voter votes for themselves.
type CastRequest struct {
	IdeaID uuid.UUID
	Voter  models.Participant
	Target models.Participant
}

// CastResult reports what happened to a vote request. Vote is set only when recorded.
type CastResult struct {
	Outcome Outcome      `json:"outcome"`
	Vote    *models.Vote `json:"vote,omitempty"`
}

// Store is the durable ledger. Insert must be atomic with respect to the
// (IdeaID, TargetUserID) uniqueness constraint and report ErrDuplicateVote.
type Store interface {
	Insert(ctx context.Context, v *models.Vote) error
	CountByIdea(ctx context.Context, ideaID uuid.UUID) (int, error)
	VotersByIdea(ctx context.Context, ideaID uuid.UUID) ([]uuid.UUID, error)
	List(ctx context.Context) ([]models.Vote, error)
}

// IdeaLookup resolves vote targets.
type IdeaLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Idea, error)
}

// SessionGate rejects votes outside the active phase.
type SessionGate interface {
	RequireActive() error
}

// Notifier publishes change events to connected participants.
type Notifier interface {
	Publish(event string, payload interface{})
}

// Ledger records votes and derives per-idea aggregates.
type Ledger struct {
	store    Store
	ideas    IdeaLookup
	gate     SessionGate
	notifier Notifier
	logger   *zap.Logger
}

// NewLedger creates a vote ledger. notifier may be nil.
func NewLedger(store Store, ideas IdeaLookup, gate SessionGate, notifier Notifier, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, ideas: ideas, gate: gate, notifier: notifier, logger: logger}
}

// CastVote records one vote for req.Target on req.IdeaID. A second vote for the same
// (idea, target) pair yields OutcomeAlreadyVoted with a nil error.
func (l *Ledger) CastVote(ctx context.Context, req CastRequest) (CastResult, error) {
	if err := l.gate.RequireActive(); err != nil {
		return CastResult{}, err
	}
	if req.Voter.ID == uuid.Nil {
		return CastResult{}, models.NewValidationError("voter_id", "must be set")
	}
	target := req.Target
	if target.ID == uuid.Nil {
		target = req.Voter
	}

	idea, err := l.ideas.Get(ctx, req.IdeaID)
	if err != nil {
		return CastResult{}, err
	}
	if idea.AuthorID == target.ID {
		return CastResult{}, models.NewValidationError("target_user_id", "cannot vote for own idea")
	}

	v := &models.Vote{
		IdeaID:         idea.ID,
		VoterID:        req.Voter.ID,
		VoterName:      req.Voter.Name,
		TargetUserID:   target.ID,
		TargetUserName: target.Name,
	}
	if err := l.store.Insert(ctx, v); err != nil {
		if errors.Is(err, ErrDuplicateVote) {
			l.logger.Info("vote already recorded",
				zap.String("idea_id", idea.ID.String()), zap.String("target_user_id", target.ID.String()))
			return CastResult{Outcome: OutcomeAlreadyVoted}, nil
		}
		return CastResult{}, err
	}

	l.logger.Info("vote recorded",
		zap.String("idea_id", idea.ID.String()),
		zap.String("voter_id", v.VoterID.String()),
		zap.String("target_user_id", v.TargetUserID.String()))
	if l.notifier != nil {
		l.notifier.Publish(EventVoteRecorded, v)
	}
	return CastResult{Outcome: OutcomeRecorded, Vote: v}, nil
}

// CountFor returns the number of votes recorded for an idea.
func (l *Ledger) CountFor(ctx context.Context, ideaID uuid.UUID) (int, error) {
	return l.store.CountByIdea(ctx, ideaID)
}

// VotersFor returns the beneficiaries who have a vote on the idea.
func (l *Ledger) VotersFor(ctx context.Context, ideaID uuid.UUID) ([]uuid.UUID, error) {
	return l.store.VotersByIdea(ctx, ideaID)
}

// All returns the whole ledger in insertion order.
func (l *Ledger) All(ctx context.Context) ([]models.Vote, error) {
	return l.store.List(ctx)
}
