package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/gatekeeper/pkg/rbac"
)

// Authorize はロールベースの認可を行うミドルウェアを返す。
// 権限テーブルによるロール・メソッドチェックに加え、管理者以外の
// ロールには所有権チェック（自分のリソースのみアクセス可能）を適用する。
// Authenticateが事前に適用されている必要がある。
func Authorize(table *rbac.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := Identity(c)
		if !ok || identity.Role == "" {
			AbortWithEnvelope(c, http.StatusForbidden, KindForbidden, "No role assigned.")
			return
		}

		role := rbac.Role(identity.Role)
		resource := c.Request.URL.Path
		if !table.Allows(role, resource, c.Request.Method) {
			AbortWithEnvelope(c, http.StatusForbidden, KindForbidden, "You do not have permission.")
			return
		}

		if role != rbac.RoleAdmin && rbac.RequiresOwnership(resource) {
			if !rbac.OwnsResource(identity.UserID, resource) {
				AbortWithEnvelope(c, http.StatusForbidden, KindForbidden, "You can only access your own resources.")
				return
			}
		}

		c.Next()
	}
}
