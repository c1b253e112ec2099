package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/gatekeeper/pkg/session"
	"github.com/nao1215/gatekeeper/pkg/token"
)

// EnsureSession は認証済みの呼び出し元にセッションを遅延発行する
// ミドルウェアを返す。対象となるのは、Identityがコンテキストに存在し、
// かつリクエストが相関Cookieを運んでいない場合のみ（ログイン直後など、
// Authenticate以外の経路でIdentityが設定されたケース）。
//
// 不変条件: ストアへの書き込みが確認できるまでCookieは設定しない。
// クライアントが存在しないセッションを指すCookieを持つ状態を作らない。
func EnsureSession(store session.Store, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := Identity(c)
		if !ok {
			c.Next()
			return
		}
		if _, err := c.Request.Cookie(CookieName); err == nil {
			// Cookieに紐づくセッションが既に確立している
			c.Next()
			return
		}

		signed, err := token.Sign(secret, *identity)
		if err != nil {
			log.Printf("セッショントークンの署名に失敗: %v", err)
			AbortWithEnvelope(c, http.StatusInternalServerError, KindInternalError, "Session creation failed.")
			return
		}

		correlationID := uuid.NewString()
		if err := store.Set(c.Request.Context(), session.Key(correlationID), signed, token.Lifetime); err != nil {
			// 書き込み失敗時はCookieを設定せずに失敗させる。
			// 認証済みリクエストを未認証に降格させてはならない。
			log.Printf("セッションレコードの書き込みに失敗: user=%s, error=%v", identity.UserID, err)
			AbortWithEnvelope(c, http.StatusInternalServerError, KindInternalError, "Session creation failed.")
			return
		}

		SetSessionCookie(c, correlationID, int(token.Lifetime.Seconds()))
		log.Printf("セッションを発行: session=%s, user=%s", correlationID, identity.UserID)
		c.Next()
	}
}
