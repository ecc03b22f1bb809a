package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uday169/split-it-app-backend/utils"
)

// AuthRequired rejects requests without a valid bearer token and stores the
// caller's id under utils.ContextUserID.
func AuthRequired(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			utils.Unauthorized(c, "Authorization token required")
			return
		}

		claims, userID, err := tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			utils.Unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(utils.ContextUserID, userID)
		c.Set("email", claims.Email)
		c.Next()
	}
}
