package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/etnz/finntra/auth"
	"github.com/etnz/finntra/importer"
	"github.com/etnz/finntra/state"
	"github.com/etnz/finntra/store"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// claimsKey holds the verified auth.Claims in the gin context.
const claimsKey = "claims"

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
}

// originSet is the normalized list of allowed origins, "*" allows any.
type originSet map[string]struct{}

func newOriginSet(origins []string) originSet {
	set := make(originSet, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		set[origin] = struct{}{}
	}
	return set
}

func (s originSet) allows(origin string) bool {
	if _, ok := s["*"]; ok {
		return true
	}
	_, ok := s[origin]
	return ok
}

// cors answers for the allowed origins. Requests to the open paths are left
// to their handler, which sets its own headers.
func cors(origins originSet, open ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range open {
			if c.Request.URL.Path == p {
				c.Next()
				return
			}
		}
		origin := c.GetHeader("Origin")
		if origin == "" || !origins.allows(origin) {
			if c.Request.Method == http.MethodOptions {
				// Reject bare pre-flight if origin is not whitelisted.
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// authenticate verifies the bearer token. Browsers cannot set headers on a
// websocket handshake so the token is also read from the access_token query.
func authenticate(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			writeError(c, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		claims, err := v.Verify(token)
		if err != nil {
			writeError(c, http.StatusUnauthorized, "unauthorized: "+err.Error())
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsOf(c *gin.Context) auth.Claims {
	claims, _ := c.MustGet(claimsKey).(auth.Claims)
	return claims
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: message})
}

// statusOf maps the errors of the domain packages to an HTTP status.
func statusOf(err error) int {
	var (
		verr validator.ValidationErrors
		aerr *auth.Error
	)
	switch {
	case errors.As(err, &aerr):
		if aerr.Status >= 400 && aerr.Status < 500 {
			return aerr.Status
		}
		return http.StatusBadGateway
	case errors.As(err, &verr),
		errors.Is(err, state.ErrMissingID),
		errors.Is(err, state.ErrUnsupportedCurrency):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrPhotoTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, state.ErrPhotoType), errors.Is(err, importer.ErrUnsupportedExtension):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, importer.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, state.ErrNoStorage):
		return http.StatusServiceUnavailable
	case errors.Is(err, errNotReady):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
