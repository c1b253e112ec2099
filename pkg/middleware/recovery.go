package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時に内容をログに出力し、500のエラーエンベロープを返す。
// スタックトレースはクライアントに返さない。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				AbortWithEnvelope(c, http.StatusInternalServerError, KindInternalError, "An unexpected error occurred.")
			}
		}()
		c.Next()
	}
}
