package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "userID"

// LegacyTokenHeader is the header older storefront clients send the token in.
const LegacyTokenHeader = "auth-token"

type TokenValidator interface {
	ValidateToken(token string) (int64, error)
}

// AuthMiddleware resolves the request credential to a user id. It accepts
// "Authorization: Bearer <token>" or the legacy auth-token header.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortAuth(c, "Authorization header required")
			return
		}

		userID, err := tokens.ValidateToken(tokenString)
		if err != nil {
			abortAuth(c, "Invalid or expired token")
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false
		}
		return parts[1], true
	}
	if token := strings.TrimSpace(c.GetHeader(LegacyTokenHeader)); token != "" {
		return token, true
	}
	return "", false
}

func abortAuth(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   apperr.KindAuth,
		"message": message,
	})
}

// UserID returns the id set by AuthMiddleware.
func UserID(c *gin.Context) (int64, bool) {
	raw, exists := c.Get(ContextUserID)
	if !exists {
		return 0, false
	}
	id, ok := raw.(int64)
	return id, ok && id > 0
}
