package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/votestream/backend/internal/models"
)

// Category tells clients how to present a failure.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryInformational Category = "informational"
	CategoryBlocked       Category = "blocked"
	CategoryUnavailable   Category = "unavailable"
)

// Body is the standard API response envelope.
type Body struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Category Category    `json:"category,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Informational sends 200 for a request that changed nothing, e.g. a repeated vote.
func Informational(c *gin.Context, data interface{}, msg string) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data, Error: msg, Category: CategoryInformational})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err, Category: CategoryValidation})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err, Category: CategoryBlocked})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err, Category: CategoryBlocked})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err, Category: CategoryUnavailable})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// FromError maps a domain error to its status and category.
func FromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			BadRequest(c, ve.Error())
			return
		}
		BadRequest(c, err.Error())
	case errors.Is(err, models.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, models.ErrForbidden):
		Forbidden(c, err.Error())
	case errors.Is(err, models.ErrSessionNotActive), errors.Is(err, models.ErrInvalidState):
		Conflict(c, err.Error())
	case errors.Is(err, models.ErrRemoteUnavailable):
		ServiceUnavailable(c, "shared store unavailable, try again")
	default:
		Internal(c, "internal error")
	}
}
