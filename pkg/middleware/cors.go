package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS はクレデンシャル付きのクロスオリジンリクエストを許可する
// Ginミドルウェアを返す。Cookieベースのセッションを使うため、
// ワイルドカードではなくリクエストのOriginを反映し、
// Allow-Credentialsと組にして返す必要がある。
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
