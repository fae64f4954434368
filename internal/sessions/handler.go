package sessions

import (
	"github.com/gin-gonic/gin"

	"github.com/votestream/backend/pkg/response"
)

// StartRequest is the body for POST /session/start. Zero means the configured default.
type StartRequest struct {
	DurationSeconds int `json:"duration_seconds" binding:"omitempty,min=1"`
}

// Handler exposes the voting session over HTTP.
type Handler struct {
	ctrl            *Controller
	defaultDuration int
}

// NewHandler creates a session handler.
func NewHandler(ctrl *Controller, defaultDurationSeconds int) *Handler {
	return &Handler{ctrl: ctrl, defaultDuration: defaultDurationSeconds}
}

// Get handles GET /session.
func (h *Handler) Get(c *gin.Context) {
	response.OK(c, h.ctrl.Snapshot())
}

// Start handles POST /session/start.
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	d := req.DurationSeconds
	if d == 0 {
		d = h.defaultDuration
	}
	s, err := h.ctrl.Start(c.Request.Context(), d)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, s)
}

// End handles POST /session/end (admin).
func (h *Handler) End(c *gin.Context) {
	s, err := h.ctrl.ForceEnd(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, s)
}
