package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

// ContextUser holds the caller's *models.User, set by RoleMiddleware.
const ContextUser = "user"

type UserDirectory interface {
	User(ctx context.Context, id int64) (*models.User, error)
}

// RoleMiddleware looks up the caller's profile and stores it in the context.
// It must run after AuthMiddleware.
func RoleMiddleware(users UserDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			abortAuth(c, "User ID not found in context")
			return
		}

		user, err := users.User(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				abortAuth(c, "Invalid user")
				return
			}
			slog.Error("role lookup failed", "user_id", userID, "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   apperr.KindStorage,
				"message": "Database error checking role",
			})
			return
		}

		c.Set(ContextUser, user)
		c.Next()
	}
}

// AdminMiddleware only lets users with the admin role through. It must run
// after RoleMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   apperr.KindForbidden,
				"message": "Access denied: admin role required",
			})
			return
		}
		c.Next()
	}
}

func IsAdmin(c *gin.Context) bool {
	v, ok := c.Get(ContextUser)
	if !ok {
		return false
	}
	user, ok := v.(*models.User)
	return ok && user.IsAdmin()
}
