package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	gatekeeper "github.com/layer-3/gatekeeper"
	"github.com/layer-3/gatekeeper/core"
)

const (
	sessionKey = "session"
	bearer     = "Bearer "
)

var errMissingBearer = errors.New("missing bearer token")

// AuthMiddleware creates middleware that validates session tokens
func AuthMiddleware(client gatekeeper.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		if len(auth) <= len(bearer) || !strings.EqualFold(auth[:len(bearer)], bearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: errMissingBearer.Error(),
			})
			return
		}

		session, err := client.ValidateToken(c.Request.Context(), strings.TrimSpace(auth[len(bearer):]))
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, core.ErrStoreUnavailable) {
				status = http.StatusServiceUnavailable
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(status, errorResponse(err))
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// SessionFrom returns the session stored by AuthMiddleware.
func SessionFrom(c *gin.Context) (*core.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	session, ok := v.(*core.Session)
	return session, ok
}

// RequestObserver records per-request metrics.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

// RequestLogger logs every request once it completes. Request bodies are never logged.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		}

		if err := c.Errors.Last(); err != nil {
			event = event.Str("outcome", core.Kind(err.Err))
		}

		event.
			Str("method", c.Request.Method).
			Str("route", routeOf(c)).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// RequestMetrics reports every request to observer.
func RequestMetrics(observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		observer.ObserveRequest(c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}

// routeOf returns the matched route pattern, keeping label cardinality bounded.
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
