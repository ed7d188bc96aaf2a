package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"saga-orchestrator/internal/config"
)

// CORS adds Cross-Origin Resource Sharing headers to each response,
// grounded on the teacher's src/diplomat/middleware/cors.go, so the
// admin dashboard and any other configured origin can reach the API.
func CORS(cfg *config.Config) gin.HandlerFunc {
	allowHeaders := strings.Join(cfg.CORS.AllowHeaders, ", ")
	allowMethods := strings.Join(cfg.CORS.AllowMethods, ", ")

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", resolveOrigin(cfg.CORS.AllowOrigins, c.Request.Header.Get("Origin")))
		if cfg.CORS.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", allowMethods)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// resolveOrigin picks which Access-Control-Allow-Origin value to send:
// the requesting origin itself when it's in the allow list (or the
// list is wildcarded), otherwise the first configured origin as a
// fallback.
func resolveOrigin(allowed []string, requestOrigin string) string {
	for _, candidate := range allowed {
		if candidate == "*" || candidate == requestOrigin {
			return candidate
		}
	}
	if len(allowed) > 0 {
		return allowed[0]
	}
	return ""
}
