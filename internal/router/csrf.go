package router

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"foodval-go/internal/handlers"
	"foodval-go/internal/runner"

	"github.com/gin-gonic/gin"
)

const (
	csrfTokenFormKey   = "_csrf"
	csrfTokenHeaderKey = "X-CSRF-Token"
)

// CSRFProtection checks unsafe requests against the token issued when the
// session started. It must run after RunRequired.
func CSRFProtection() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodDelete {
			c.Next()
			return
		}

		run := c.MustGet(handlers.RunContextKey).(*runner.Run)

		// Fetch requests send a header; plain forms send a field.
		submitted := c.GetHeader(csrfTokenHeaderKey)
		if submitted == "" {
			submitted = c.PostForm(csrfTokenFormKey)
		}

		if submitted == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(run.CSRFToken)) != 1 {
			_ = c.Error(errors.New("invalid CSRF token"))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid CSRF token"})
			return
		}
		c.Next()
	}
}
