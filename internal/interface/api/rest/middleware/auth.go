package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"filevault/internal/infrastructure/jwt"
)

const (
	CtxUserID    = "userID"
	CtxUserEmail = "userEmail"
	CtxUserName  = "userName"
)

// AuthMiddleware verifies the bearer token against the identity
// provider's public key: no token at all is 401, a token that does not
// verify is 403, a verifier with no key loaded is 503.
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				gin.H{"error": "Access token required"},
			)
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader || tokenStr == "" {
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				gin.H{"error": "Access token required"},
			)
			return
		}

		claims, err := jwtService.ValidateToken(tokenStr)
		if err != nil {
			if errors.Is(err, jwt.ErrNotConfigured) {
				c.AbortWithStatusJSON(
					http.StatusServiceUnavailable,
					gin.H{"error": "Identity provider not configured"},
				)
				return
			}
			c.AbortWithStatusJSON(
				http.StatusForbidden,
				gin.H{"error": "Invalid token"},
			)
			return
		}

		c.Set(CtxUserID, claims.UID)
		c.Set(CtxUserEmail, claims.Email)
		c.Set(CtxUserName, claims.Name)

		c.Next()
	}
}
