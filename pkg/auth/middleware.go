package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/models"
)

const actorContextKey = "actor"

// JWTAuthMiddleware validates Bearer tokens and injects the actor identity
// into the Gin context for downstream handlers.
func JWTAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthenticated.Error()})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			c.Abort()
			return
		}

		claims, err := ValidateJWT(parts[1], secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		actor := claims.Actor()
		c.Set(actorContextKey, actor)
		c.Set("user_id", actor.ID)
		c.Next()
	}
}

// RequireAdmin rejects requests whose actor is not an admin. Must run after
// JWTAuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthenticated.Error()})
			c.Abort()
			return
		}
		if !actor.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin privileges required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorFromContext retrieves the authenticated actor set by JWTAuthMiddleware
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(actorContextKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}
