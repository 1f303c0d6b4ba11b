package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hearthline/hearthline/pkg/config"
	"github.com/hearthline/hearthline/pkg/logger"
)

const APIKeyHeader = "X-API-Key"

// APIKeyAuth gates requests on a configured API key when auth is enabled
func APIKeyAuth(cfg *config.APIServerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Auth.Enabled {
			c.Next()
			return
		}

		apiKey := c.GetHeader(APIKeyHeader)

		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "API key required",
				"hint":  "Add X-API-Key header",
			})
			c.Abort()
			return
		}

		valid := false
		for _, validKey := range cfg.Auth.APIKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
				valid = true
				break
			}
		}

		if !valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		logger.Logger(c.Request.Context()).Debug("API request authenticated")
		c.Next()
	}
}
