package middleware

import (
	"net/http"
	"strings"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/logger"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/repository"
	"github.com/gin-gonic/gin"
)

// ContextUserID is the Gin context key the authenticated user ID is stored under.
const ContextUserID = "user_id"

// Auth returns a middleware that resolves the Authorization header to a user
// via the token table. Both "Token <key>" and "Bearer <key>" schemes are
// accepted. Unauthenticated requests are rejected with 401.
func Auth(tokens *repository.TokenRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := tokenFromHeader(c.GetHeader("Authorization"))
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication credentials were not provided",
			})
			return
		}

		userID, err := tokens.Resolve(c.Request.Context(), key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		c.Set(ContextUserID, userID)
		c.Request = c.Request.WithContext(logger.SetUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// UserID returns the authenticated user ID set by Auth.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func tokenFromHeader(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	scheme := strings.ToLower(parts[0])
	if scheme != "token" && scheme != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
