package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/linkage-api/internal/models"
	appErrors "github.com/noah-isme/linkage-api/pkg/errors"
	"github.com/noah-isme/linkage-api/pkg/response"
)

// Claims returns the token claims stored by JWT, or nil.
func Claims(c *gin.Context) *models.JWTClaims {
	v, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := v.(*models.JWTClaims)
	return claims
}

// RequireRoles admits requests whose token carries one of roles. It must run
// after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
		names = append(names, string(r))
	}
	denied := appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("requires role %s", strings.Join(names, " or ")))

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, denied)
			c.Abort()
			return
		}
		c.Next()
	}
}
