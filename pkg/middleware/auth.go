package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/gatekeeper/pkg/session"
	"github.com/nao1215/gatekeeper/pkg/token"
)

// Authenticate は相関識別子からセッションを解決する認証ミドルウェアを返す。
// セッションストアから署名付きトークンを読み出して検証し、成功した場合は
// Identityと生トークンをコンテキストに設定する。ストアへの書き込みは行わない。
//
// 「セッションが存在しない」と「一度も存在しなかった」は意図的に同じ
// メッセージで返す。セッションの存在情報を漏らさないため。
func Authenticate(store session.Store, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := CorrelationID(c)
		if correlationID == "" {
			AbortWithEnvelope(c, http.StatusUnauthorized, KindUnauthorized, "No session ID found.")
			return
		}

		raw, err := store.Get(c.Request.Context(), session.Key(correlationID))
		if errors.Is(err, session.ErrNotFound) {
			AbortWithEnvelope(c, http.StatusUnauthorized, KindUnauthorized, "Session not found or expired.")
			return
		}
		if err != nil {
			// ストア障害はキー不在と区別し、401ではなく500で返す
			log.Printf("セッションストアの読み取りに失敗: %v", err)
			AbortWithEnvelope(c, http.StatusInternalServerError, KindInternalError, "Session lookup failed.")
			return
		}

		identity, err := token.Verify(secret, raw)
		if err != nil {
			AbortWithEnvelope(c, http.StatusUnauthorized, KindUnauthorized, "Invalid session token.")
			return
		}

		SetIdentity(c, identity)
		c.Set(contextKeySessionToken, raw)
		c.Next()
	}
}
