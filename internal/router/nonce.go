package router

import (
	"fmt"
	"net/http"

	"foodval-go/internal/handlers"
	"foodval-go/internal/utils"

	"github.com/gin-gonic/gin"
)

const echartsOrigin = "https://cdn.jsdelivr.net"

// NonceMiddleware creates a new cryptographic nonce for each request, adds it
// to the context for templates, and sends a matching Content-Security-Policy.
func NonceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce, err := utils.GenerateSecureToken(16)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Set(handlers.CSPNonceContextKey, nonce)
		c.Header("Content-Security-Policy", fmt.Sprintf(
			"default-src 'self'; script-src 'self' %s 'nonce-%s'; style-src 'self' 'unsafe-inline'; img-src 'self' data:",
			echartsOrigin, nonce,
		))
		c.Next()
	}
}
