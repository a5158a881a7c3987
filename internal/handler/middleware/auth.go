package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"joinus/partyboard/internal/model"
	jwtpkg "joinus/partyboard/pkg/jwt"
	"joinus/partyboard/pkg/response"
)

const (
	ContextKeyClaims   = "member_claims"
	ContextKeyMemberID = "member_id"
	ContextKeyGuildID  = "guild_id"
)

// JWTAuth accepts adapter bearer tokens and stores the acting member and
// guild on the context.
func JWTAuth(jwtManager *jwtpkg.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := jwtManager.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		if claims.TokenType != jwtpkg.TokenTypeAccess {
			response.Unauthorized(c, "invalid token type")
			c.Abort()
			return
		}
		if !model.ValidSnowflake(claims.MemberID()) || !model.ValidSnowflake(claims.GuildID) {
			response.Unauthorized(c, "invalid member or guild id")
			c.Abort()
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyMemberID, claims.MemberID())
		c.Set(ContextKeyGuildID, claims.GuildID)
		c.Next()
	}
}
