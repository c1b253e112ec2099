package gateway

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/gatekeeper/internal/config"
	"github.com/nao1215/gatekeeper/pkg/middleware"
)

// バックエンドに注入する信頼境界ヘッダー。
// 検証済みIdentityからのみ導出し、クライアント供給の同名ヘッダーは破棄する。
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// handleDispatch はルートテーブルへのディスパッチャを返す。
// パスにマッチするルートを先頭から探し、メソッドを検査し、
// ルートが要求するステージチェーンを実行してからバックエンドへ転送する。
// いずれかの段が失敗した場合はそこで短絡し、転送は行わない。
func (s *Server) handleDispatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for i := range s.routes {
			rt := &s.routes[i]
			if !rt.Match(path) {
				continue
			}

			// メソッド違反はどの段も実行せずに405を返す
			if !rt.AllowsMethod(c.Request.Method) {
				middleware.AbortWithEnvelope(c, http.StatusMethodNotAllowed, middleware.KindMethodNotAllowed,
					"Method "+c.Request.Method+" is not allowed on this path.")
				return
			}

			for _, stage := range s.chains[i] {
				stage(c)
				if c.IsAborted() {
					return
				}
			}

			s.forward(c, rt)
			return
		}

		env := middleware.NewEnvelope(middleware.KindNotFound, "The requested path does not match any route.")
		env.AvailableEndpoints = s.endpoints()
		c.AbortWithStatusJSON(http.StatusNotFound, env)
	}
}

// endpoints は404応答に含める既知のトップレベルエンドポイント一覧を返す。
func (s *Server) endpoints() []string {
	list := make([]string, 0, len(s.routes))
	for i := range s.routes {
		list = append(list, s.routes[i].Path)
	}
	return list
}

// forward はリクエストをルートのバックエンドへ転送する。
// パスはルートの書き換え規則を適用し、レスポンスはそのまま書き戻す。
// 接続失敗・タイムアウトは502、HTMLエラーページはEnvelopeに正規化する。
func (s *Server) forward(c *gin.Context, rt *config.Route) {
	target := rt.Target + rt.RewritePath(c.Request.URL.Path)
	if q := c.Request.URL.RawQuery; q != "" {
		target += "?" + q
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, c.Request.Body)
	if err != nil {
		middleware.AbortWithEnvelope(c, http.StatusInternalServerError, middleware.KindInternalError, "Failed to build proxy request.")
		return
	}

	req.Header = c.Request.Header.Clone()
	req.Header.Del(headerUserID)
	req.Header.Del(headerUserRole)
	if identity, ok := middleware.Identity(c); ok {
		req.Header.Set(headerUserID, identity.UserID)
		req.Header.Set(headerUserRole, identity.Role)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("プロキシエラー: %s %s → %s: %v", c.Request.Method, c.Request.URL.Path, rt.Target, err)
		middleware.AbortWithEnvelope(c, http.StatusBadGateway, middleware.KindBadGateway, "Backend service unavailable.")
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("バックエンド応答の読み取りに失敗: %s: %v", target, err)
		middleware.AbortWithEnvelope(c, http.StatusBadGateway, middleware.KindBadGateway, "Backend service unavailable.")
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	// 構造化されたレスポンスを期待している箇所でHTMLのエラーページが
	// 返ってきた場合は、元のステータスコードを保ったままEnvelopeに包む
	if strings.Contains(contentType, "text/html") {
		c.AbortWithStatusJSON(resp.StatusCode, middleware.NewEnvelope(middleware.KindBadGateway, "Backend returned an HTML error page."))
		return
	}

	c.Data(resp.StatusCode, contentType, body)
}
