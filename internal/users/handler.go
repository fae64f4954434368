package users

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/votestream/backend/internal/middleware"
	"github.com/votestream/backend/internal/models"
	"github.com/votestream/backend/pkg/response"
)

// Handler serves participant lookups.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	p, ok := middleware.CurrentParticipant(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	u, err := h.store.GetByID(c.Request.Context(), p.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, u)
}

// Search handles GET /users/search?q=&limit=. Used to pick the beneficiary of a proxy vote.
func (h *Handler) Search(c *gin.Context) {
	p, ok := middleware.CurrentParticipant(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	limit := DefaultSearchLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 50 {
			response.BadRequest(c, "limit must be between 1 and 50")
			return
		}
		limit = n
	}
	list, err := h.store.Search(c.Request.Context(), c.Query("q"), p.ID, limit)
	if err != nil {
		h.logger.Warn("user search failed", zap.Error(err))
		response.FromError(c, err)
		return
	}
	if list == nil {
		list = []models.User{}
	}
	response.OK(c, list)
}
