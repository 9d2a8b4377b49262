package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	servicedomain "github.com/beaconly/beacon/internal/service/domain"
	"github.com/beaconly/beacon/internal/usercontext"
)

// Identity headers set by the fronting auth proxy.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// IdentityRequired resolves the authenticated user from the proxy headers
// and stores it in the request context.
func (s *Server) IdentityRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			AbortWithError(c, servicedomain.ErrUnauthenticated)
			return
		}

		user := usercontext.User{
			ID:    userID,
			Email: strings.TrimSpace(c.GetHeader(HeaderUserEmail)),
		}
		c.Request = c.Request.WithContext(usercontext.WithUser(c.Request.Context(), user))
		c.Next()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(started)),
		)
	}
}
