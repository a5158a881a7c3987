package middleware

import (
	"github.com/gin-gonic/gin"

	"joinus/partyboard/pkg/response"
)

// AdminAuth checks that the authenticated member is in the admin list.
// Must be used after JWTAuth middleware.
func AdminAuth(adminMemberIDs []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(adminMemberIDs))
	for _, id := range adminMemberIDs {
		allowed[id] = struct{}{}
	}

	return func(c *gin.Context) {
		memberID := c.GetString(ContextKeyMemberID)
		if memberID == "" {
			response.Unauthorized(c, "missing authentication")
			c.Abort()
			return
		}
		if _, isAdmin := allowed[memberID]; !isAdmin {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}
