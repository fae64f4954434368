package votes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/votestream/backend/internal/middleware"
	"github.com/votestream/backend/internal/models"
	"github.com/votestream/backend/pkg/response"
)

// CastBody is the body for POST /ideas/:id/votes. An empty target votes for the caller.
type CastBody struct {
	TargetUserID string `json:"target_user_id"`
}

// UserLookup resolves the beneficiary of a proxy vote.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// IdeaVotes is the response of GET /ideas/:id/votes.
type IdeaVotes struct {
	IdeaID uuid.UUID   `json:"idea_id"`
	Votes  int         `json:"votes"`
	Voters []uuid.UUID `json:"voters"`
}

// Handler handles vote HTTP endpoints.
type Handler struct {
	ledger *Ledger
	users  UserLookup
	logger *zap.Logger
}

// NewHandler creates a votes handler.
func NewHandler(ledger *Ledger, users UserLookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: ledger, users: users, logger: logger}
}

// Cast handles POST /ideas/:id/votes.
func (h *Handler) Cast(c *gin.Context) {
	ideaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid idea id")
		return
	}
	voter, ok := middleware.CurrentParticipant(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var body CastBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}

	req := CastRequest{IdeaID: ideaID, Voter: voter}
	if body.TargetUserID != "" {
		targetID, err := uuid.Parse(body.TargetUserID)
		if err != nil {
			response.BadRequest(c, "invalid target_user_id")
			return
		}
		if targetID != voter.ID {
			target, err := h.users.GetByID(c.Request.Context(), targetID)
			if err != nil {
				response.FromError(c, err)
				return
			}
			req.Target = target.AsParticipant()
		}
	}

	res, err := h.ledger.CastVote(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if res.Outcome == OutcomeAlreadyVoted {
		response.Informational(c, res, "this participant has already voted for this idea")
		return
	}
	response.Created(c, res)
}

// Summary handles GET /ideas/:id/votes.
func (h *Handler) Summary(c *gin.Context) {
	ideaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid idea id")
		return
	}
	ctx := c.Request.Context()
	n, err := h.ledger.CountFor(ctx, ideaID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	voters, err := h.ledger.VotersFor(ctx, ideaID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if voters == nil {
		voters = []uuid.UUID{}
	}
	response.OK(c, IdeaVotes{IdeaID: ideaID, Votes: n, Voters: voters})
}
