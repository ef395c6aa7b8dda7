package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/phms-engine/pkg/auth"
	"github.com/jwalitptl/phms-engine/pkg/httputil"
)

const ContextUserID = "userID"

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token and stores the user id in the context.
// Browsers cannot set headers on websocket upgrades, so the token may also come
// from the access_token query parameter.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("access_token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.RespondWithMessage(c, http.StatusUnauthorized, "invalid authorization format")
				return
			}
			token = parts[1]
		}
		if token == "" {
			httputil.RespondWithMessage(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			httputil.RespondWithMessage(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(ContextUserID, claims.UserID())
		l := zerolog.Ctx(c.Request.Context()).With().Str("user_id", claims.UserID()).Logger()
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Next()
	}
}

// UserID returns the authenticated user, or "" outside Authenticate.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
