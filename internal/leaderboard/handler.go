package leaderboard

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/votestream/backend/internal/models"
	"github.com/votestream/backend/pkg/response"
)

// IdeaLister returns all ideas in insertion order.
type IdeaLister interface {
	List(ctx context.Context) ([]models.Idea, error)
}

// VoteLister returns the whole vote ledger.
type VoteLister interface {
	All(ctx context.Context) ([]models.Vote, error)
}

// SessionSource returns the current local session.
type SessionSource interface {
	Snapshot() models.VotingSession
}

// SnapshotFinder looks up stored final rankings.
type SnapshotFinder interface {
	GetByRound(ctx context.Context, roundID uuid.UUID) (*models.LeaderboardSnapshot, error)
}

// URLSigner returns a temporary download URL for a stored object.
type URLSigner interface {
	SnapshotURL(ctx context.Context, key string) (string, error)
}

// StoredSnapshot is the response of GET /leaderboard/snapshots/:round.
type StoredSnapshot struct {
	*models.LeaderboardSnapshot
	DownloadURL string `json:"download_url"`
}

// Handler serves the live leaderboard and stored round snapshots.
type Handler struct {
	ideas     IdeaLister
	votes     VoteLister
	session   SessionSource
	snapshots SnapshotFinder // nil when snapshots are disabled
	signer    URLSigner
	logger    *zap.Logger
}

// NewHandler creates a leaderboard handler. snapshots and signer may be nil.
func NewHandler(ideas IdeaLister, votes VoteLister, session SessionSource, snapshots SnapshotFinder, signer URLSigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ideas: ideas, votes: votes, session: session, snapshots: snapshots, signer: signer, logger: logger}
}

// Live handles GET /leaderboard.
func (h *Handler) Live(c *gin.Context) {
	ctx := c.Request.Context()
	ideas, err := h.ideas.List(ctx)
	if err != nil {
		response.FromError(c, err)
		return
	}
	votes, err := h.votes.All(ctx)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, Build(h.session.Snapshot(), ideas, votes, time.Now()))
}

// Snapshot handles GET /leaderboard/snapshots/:round.
func (h *Handler) Snapshot(c *gin.Context) {
	if h.snapshots == nil || h.signer == nil {
		response.NotFound(c, "leaderboard snapshots are disabled")
		return
	}
	roundID, err := uuid.Parse(c.Param("round"))
	if err != nil {
		response.BadRequest(c, "invalid round id")
		return
	}
	snap, err := h.snapshots.GetByRound(c.Request.Context(), roundID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	url, err := h.signer.SnapshotURL(c.Request.Context(), snap.S3Key)
	if err != nil {
		h.logger.Warn("presign snapshot failed", zap.Error(err), zap.String("round_id", roundID.String()))
		response.ServiceUnavailable(c, "snapshot download unavailable")
		return
	}
	response.OK(c, StoredSnapshot{LeaderboardSnapshot: snap, DownloadURL: url})
}
