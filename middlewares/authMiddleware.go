package middlewares

import (
	"context"
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"github.com/gin-gonic/gin"
)

type authString string

// RoleReports may trigger report runs and read statements.
const RoleReports = "reports"

// AuthMiddleware requires a bearer token (or the "token" header) signed with
// API_SECRET whose role is one of roles.
func AuthMiddleware(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("token"))
		if token == "" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := utils.JwtValidate(token)
		if err != nil || !hasRole(claims.Role, roles) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), authString("auth"), claims)
		ctx = utils.SetSubjectInContext(ctx, claims.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func hasRole(role string, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func CtxValue(ctx context.Context) *utils.TriggerClaims {
	raw, _ := ctx.Value(authString("auth")).(*utils.TriggerClaims)
	return raw
}
