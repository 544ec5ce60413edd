package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"story-server/internal/model"
	"story-server/internal/service"
)

const identityKey = "identity"

// identityMiddleware resolves the Bearer token into an identity and stores it
// in the gin context. Requests without a token pass through anonymously; a
// present but invalid token is rejected.
func identityMiddleware(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authorization header must use the Bearer scheme"})
			return
		}

		identity, err := auth.Verify(c.Request.Context(), token)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// requireAuth aborts anonymous requests.
func requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identityFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
			return
		}
		c.Next()
	}
}

// requireAdminToken gates the admin routes behind a static token. An empty
// configured token disables them entirely.
func requireAdminToken(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" || c.GetHeader("X-Admin-Token") != adminToken {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
			return
		}
		c.Next()
	}
}

// identityFrom returns the authenticated identity, or nil for anonymous
// requests.
func identityFrom(c *gin.Context) *model.Identity {
	value, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, ok := value.(*model.Identity)
	if !ok {
		return nil
	}
	return identity
}

// requestLogger пишет структурную запись на каждый запрос
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLogger := logger.With().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger()
		c.Request = c.Request.WithContext(reqLogger.WithContext(c.Request.Context()))

		c.Next()

		event := reqLogger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = reqLogger.Error()
		}
		event.
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request handled")
	}
}
