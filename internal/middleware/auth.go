package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/slidecast/core/internal/pkg/jwt"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeyRole   = "role"

	RoleTeacher = "teacher"
)

// Auth returns a middleware that enforces JWT authentication. When role is
// non-empty the token must carry exactly that role.
func Auth(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := jwt.Parse(extractToken(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}
		if role != "" && claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "forbidden"})
			return
		}
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRole, claims.Role)
		c.Next()
	}
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// ValidateToken checks a raw token and reports its role. Used by the
// socket.io gateway, which has no gin context.
func ValidateToken(rawToken string) (*jwt.Claims, error) {
	return jwt.Parse(NormalizeToken(rawToken))
}

// jwtClaims parses the request's bearer token without enforcing a role.
func jwtClaims(c *gin.Context) (*jwt.Claims, error) {
	return jwt.Parse(extractToken(c))
}

func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
