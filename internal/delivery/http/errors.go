package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"story-server/internal/domain"
)

// ErrorResponse is the uniform error body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleServiceError maps domain errors onto HTTP statuses. Forbidden and
// not-found are deliberately distinct: an existing story the caller may not
// see answers 403, never 404.
func handleServiceError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenNotFound):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrStoryNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, domain.ErrGenerationInProgress):
		status = http.StatusConflict
	default:
		log.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.Request.URL.Path).Msg("unhandled internal error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: domain.ErrInternalServer.Error()})
		return
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}
