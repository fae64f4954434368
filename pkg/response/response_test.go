package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votestream/backend/internal/models"
)

func TestFromError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name     string
		err      error
		status   int
		category Category
	}{
		{"validation", models.NewValidationError("title", "must not be empty"), http.StatusBadRequest, CategoryValidation},
		{"wrapped validation", fmt.Errorf("idea 2: %w", models.NewValidationError("title", "x")), http.StatusBadRequest, CategoryValidation},
		{"not active", fmt.Errorf("%w (phase idle)", models.ErrSessionNotActive), http.StatusConflict, CategoryBlocked},
		{"invalid state", models.ErrInvalidState, http.StatusConflict, CategoryBlocked},
		{"unavailable", models.Unavailable("insert vote", errors.New("eof")), http.StatusServiceUnavailable, CategoryUnavailable},
		{"not found", models.ErrNotFound, http.StatusNotFound, ""},
		{"forbidden", fmt.Errorf("end session: %w", models.ErrForbidden), http.StatusForbidden, CategoryBlocked},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			FromError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var b Body
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
			assert.False(t, b.Success)
			assert.Equal(t, tt.category, b.Category)
			assert.NotEmpty(t, b.Error)
		})
	}
}

func TestUnavailableHidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	FromError(c, models.Unavailable("insert vote", errors.New("password authentication failed for user postgres")))
	assert.NotContains(t, w.Body.String(), "password")
}
