package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/evecs/backend/internal/auth"
	"github.com/evecs/backend/pkg/response"
)

const (
	// ContextUserID is the key for the user id in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for the user email in gin context.
	ContextUserEmail = "user_email"
	// ContextAuthorized is the key for the event-management flag in gin context.
	ContextAuthorized = "authorized"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextAuthorized, claims.Authorized)
		c.Next()
	}
}

// RequireAuthorized returns a middleware that only lets authorized users
// (event managers) through.
func RequireAuthorized() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(ContextAuthorized)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if authorized, _ := v.(bool); !authorized {
			response.Forbidden(c, "user is not authorized to manage events")
			c.Abort()
			return
		}
		c.Next()
	}
}
