package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// 障害分類。EnvelopeのErrorフィールドに設定する。
const (
	// KindUnauthorized はセッションの欠落・失効・改ざん。
	KindUnauthorized = "Unauthorized"
	// KindForbidden はロール・所有権による拒否。
	KindForbidden = "Forbidden"
	// KindNotFound はどのルートにもマッチしないパス。
	KindNotFound = "Not Found"
	// KindMethodNotAllowed はルートが許可しないHTTPメソッド。
	KindMethodNotAllowed = "Method Not Allowed"
	// KindInternalError はストア障害等のゲートウェイ内部エラー。
	KindInternalError = "Internal Server Error"
	// KindBadGateway はバックエンド到達不能・異常応答。
	KindBadGateway = "Bad Gateway"
)

// Envelope はあらゆる失敗経路でクライアントに返す唯一のレスポンス形式。
// スタックトレースや内部識別子をMessageに含めてはならない。
type Envelope struct {
	// Error は障害分類。
	Error string `json:"error"`
	// Message は人間向けの説明。
	Message string `json:"message"`
	// Timestamp はISO-8601形式の発生時刻。
	Timestamp string `json:"timestamp"`
	// AvailableEndpoints は404応答にのみ付与する既知エンドポイント一覧。
	AvailableEndpoints []string `json:"availableEndpoints,omitempty"`
}

// NewEnvelope は現在時刻付きのEnvelopeを生成する。
func NewEnvelope(kind, message string) Envelope {
	return Envelope{
		Error:     kind,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// AbortWithEnvelope はEnvelopeを書き込み、以降のハンドラ実行を中断する。
// パイプラインの各段はこれを呼ぶことで残りの段を短絡させる。
func AbortWithEnvelope(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, NewEnvelope(kind, message))
}
