package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"fincoach/internal/config"
	userrepo "fincoach/internal/module/user/repository"
	"fincoach/internal/shared"
)

// ContextUserIDKey is where the resolved user id lands in the gin context.
const ContextUserIDKey = "user_id"

// Auth validates the bearer token and resolves the current user. The token
// subject may be the user id or the user's email.
func Auth(cfg *config.Config, users userrepo.UserRepository) gin.HandlerFunc {
	secret := []byte(cfg.JWT.Secret)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, shared.ErrUnauthorized.WithDetails("unexpected signing method %v", t.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "invalid token")
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			abortUnauthorized(c, "token without subject")
			return
		}

		userID, err := uuid.Parse(sub)
		if err != nil {
			user, lookupErr := users.GetByEmail(c.Request.Context(), sub)
			if lookupErr != nil {
				abortUnauthorized(c, "unknown subject")
				return
			}
			userID = user.ID
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, details string) {
	err := shared.ErrUnauthorized.WithDetails("%s", details)
	c.AbortWithStatusJSON(err.Status, gin.H{"error": err})
}

// CurrentUserID reads the authenticated user id set by Auth.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
