package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/votestream/backend/internal/models"
	"github.com/votestream/backend/pkg/response"
)

// CurrentRole returns the caller's role set by JWT.
func CurrentRole(c *gin.Context) (models.Role, bool) {
	v, ok := c.Get(ContextUserRole)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return models.Role(role), ok && role != ""
}

// RequireRole admits callers holding one of roles. Anyone else gets 403 with the
// blocked category, e.g. a participant trying to end the round early.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role, ok := CurrentRole(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if _, ok := allowed[role]; !ok {
			response.FromError(c, fmt.Errorf("role %s: %w", role, models.ErrForbidden))
			c.Abort()
			return
		}
		c.Next()
	}
}
