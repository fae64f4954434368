package ideas

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/votestream/backend/internal/middleware"
	"github.com/votestream/backend/internal/models"
	"github.com/votestream/backend/pkg/response"
)

// SubmitRequest is the body for POST /ideas.
type SubmitRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// BatchRequest is the body for POST /ideas/batch.
type BatchRequest struct {
	Ideas []SubmitRequest `json:"ideas" binding:"required"`
}

// Handler handles idea HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an ideas handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Submit handles POST /ideas.
func (h *Handler) Submit(c *gin.Context) {
	author, ok := middleware.CurrentParticipant(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	idea, err := h.svc.Submit(c.Request.Context(), models.IdeaDraft{Title: req.Title, Description: req.Description}, author)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, idea)
}

// SubmitBatch handles POST /ideas/batch. Either every idea is stored or none is.
func (h *Handler) SubmitBatch(c *gin.Context) {
	author, ok := middleware.CurrentParticipant(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	drafts := make([]models.IdeaDraft, 0, len(req.Ideas))
	for _, r := range req.Ideas {
		drafts = append(drafts, models.IdeaDraft{Title: r.Title, Description: r.Description})
	}
	created, err := h.svc.SubmitBatch(c.Request.Context(), drafts, author)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, created)
}

// List handles GET /ideas, newest first.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Warn("list ideas failed", zap.Error(err))
		response.FromError(c, err)
		return
	}
	response.OK(c, NewestFirst(list))
}

// Votable handles GET /ideas/votable?target=. It lists the ideas neither the caller
// nor the proxy target authored, newest first.
func (h *Handler) Votable(c *gin.Context) {
	caller, ok := middleware.CurrentParticipant(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	excluded := []uuid.UUID{caller.ID}
	if s := c.Query("target"); s != "" {
		target, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid target id")
			return
		}
		excluded = append(excluded, target)
	}
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, NewestFirst(Votable(list, excluded...)))
}
