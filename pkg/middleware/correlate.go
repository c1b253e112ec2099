package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/gatekeeper/pkg/token"
)

// CookieName は相関識別子を運ぶCookieの名前。
const CookieName = "uuid"

// correlationMaxAge は相関Cookieの有効期間（秒）。24時間。
// セッションレコードのTTL（1時間）とは独立している。
const correlationMaxAge = 24 * 60 * 60

// コンテキストキー。
const (
	contextKeyCorrelationID = "correlation_id"
	contextKeyIdentity      = "identity"
	contextKeySessionToken  = "session_token"
)

// Correlate は全リクエストの先頭で相関識別子を確立するミドルウェアを返す。
// 有効な相関Cookieがあればそれを再利用し、なければ新しい識別子を生成して
// Cookieを発行する。同一リクエスト内で二度呼ばれても識別子を再生成しない。
// バックエンドI/Oは行わない。
func Correlate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(contextKeyCorrelationID); ok {
			c.Next()
			return
		}

		id, err := c.Cookie(CookieName)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			SetSessionCookie(c, id, correlationMaxAge)
		}
		c.Set(contextKeyCorrelationID, id)
		c.Next()
	}
}

// SetSessionCookie は相関Cookieをレスポンスに設定する。
// httpOnly・SameSite=Laxで発行する。secureは本番ではTLS終端側で
// 有効化する前提でfalseにしている。
func SetSessionCookie(c *gin.Context, id string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, id, maxAge, "/", "", false, true)
}

// CorrelationID はコンテキストから相関識別子を取得する。
// Correlateミドルウェアが事前に適用されている必要がある。
func CorrelationID(c *gin.Context) string {
	v, _ := c.Get(contextKeyCorrelationID)
	if id, ok := v.(string); ok {
		return id
	}
	return ""
}

// Identity はコンテキストから検証済みのIdentityを取得する。
func Identity(c *gin.Context) (*token.Identity, bool) {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*token.Identity)
	return identity, ok
}

// SetIdentity はコンテキストにIdentityを設定する。
// 認証ミドルウェアのほか、ログイン直後のハンドラも使用する。
func SetIdentity(c *gin.Context, identity *token.Identity) {
	c.Set(contextKeyIdentity, identity)
}

// SessionToken はコンテキストから生のセッショントークンを取得する。
func SessionToken(c *gin.Context) string {
	v, _ := c.Get(contextKeySessionToken)
	if t, ok := v.(string); ok {
		return t
	}
	return ""
}
