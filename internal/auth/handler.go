package auth

import (
	"context"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/votestream/backend/internal/models"
	"github.com/votestream/backend/pkg/response"
)

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Department string `json:"department"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// UserUpserter creates or refreshes a participant keyed by email.
type UserUpserter interface {
	Upsert(ctx context.Context, u *models.User) error
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	users  UserUpserter
	jwt    *JWTService
	admins map[string]struct{}
	logger *zap.Logger
}

// NewHandler creates an auth handler. Emails in adminEmails are granted the admin role.
func NewHandler(users UserUpserter, jwt *JWTService, adminEmails []string, logger *zap.Logger) *Handler {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, jwt: jwt, admins: admins, logger: logger}
}

// Login handles POST /auth/login. There are no passwords: a participant is identified
// by email and the name is refreshed on every login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.newUser(req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if err := h.users.Upsert(c.Request.Context(), user); err != nil {
		h.logger.Error("upsert user failed", zap.Error(err), zap.String("email", user.Email))
		response.FromError(c, err)
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user})
}

func (h *Handler) newUser(req LoginRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, models.NewValidationError("name", "must not be empty")
	}
	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, models.NewValidationError("email", "must be a valid address")
	}
	role := models.RoleParticipant
	if _, ok := h.admins[email]; ok {
		role = models.RoleAdmin
	}
	return &models.User{
		Email:      email,
		Name:       name,
		Department: strings.TrimSpace(req.Department),
		Role:       role,
	}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
