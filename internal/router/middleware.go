package router

import (
	"net/http"

	"foodval-go/internal/handlers"
	"foodval-go/internal/runner"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunLoader checks for a session id in the cookie. If the run is still live
// it is added to the context for other handlers.
func RunLoader(log *zap.Logger, registry *runner.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		id, ok := session.Get(handlers.SessionIDKey).(string)
		if !ok {
			c.Next()
			return
		}

		run, err := registry.Get(id)
		if err != nil {
			// The run expired or the server restarted. Forget it.
			log.Debug("Dropping stale session cookie", zap.String("session_id", id))
			session.Delete(handlers.SessionIDKey)
			if err := session.Save(); err != nil {
				log.Warn("Failed to clear session cookie", zap.Error(err))
			}
			c.Next()
			return
		}

		c.Set(handlers.RunContextKey, run)
		c.Next()
	}
}

// RunRequired simply checks if a live run was loaded into the context.
func RunRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(handlers.RunContextKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No active session"})
			return
		}
		c.Next()
	}
}
