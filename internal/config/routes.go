package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/gatekeeper/pkg/rbac"
)

// Stage はルートが要求するパイプライン段の閉じた列挙。
// 未知の段名は設定読み込み時に拒否し、リクエスト時には到達させない。
type Stage uint8

const (
	// StageAuth はセッションストア経由の認証。
	StageAuth Stage = iota + 1
	// StageSession は認証済み呼び出し元へのセッション遅延発行。
	StageSession
	// StageRBAC はロールベース認可と所有権チェック。
	StageRBAC
)

// ParseStage は段名をStageに変換する。未知の名前はエラー。
func ParseStage(name string) (Stage, error) {
	switch name {
	case "auth":
		return StageAuth, nil
	case "session":
		return StageSession, nil
	case "rbac":
		return StageRBAC, nil
	default:
		return 0, fmt.Errorf("未知のミドルウェア名: %q", name)
	}
}

// String はStageの設定上の名前を返す。
func (s Stage) String() string {
	switch s {
	case StageAuth:
		return "auth"
	case StageSession:
		return "session"
	case StageRBAC:
		return "rbac"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// Rewrite はバックエンド転送時のパス書き換え規則。
// Fromで始まるパスの接頭辞をToに置換する。Fromが空の場合は書き換えない。
type Rewrite struct {
	// From はゲートウェイ側のパス接頭辞。
	From string `yaml:"from"`
	// To はバックエンド側のパス接頭辞。
	To string `yaml:"to"`
}

// Route はパスパターンとバックエンドの対応。起動後は不変。
type Route struct {
	// Path はリクエストパスのパターン。"**" ワイルドカードを使用できる。
	Path string `yaml:"path"`
	// Target は転送先バックエンドのベースURL。
	// "${AUTH_SERVICE_URL}" 等のプレースホルダを使用できる。
	Target string `yaml:"target"`
	// Methods は許可するHTTPメソッド。
	Methods []string `yaml:"methods"`
	// Middleware は転送前に実行する段名のリスト。実行順は
	// auth → session → rbac に固定される。
	Middleware []string `yaml:"middleware"`
	// Rewrite は転送時のパス書き換え規則。
	Rewrite Rewrite `yaml:"rewrite"`

	// stages はMiddlewareを解決した閉じた列挙のリスト。
	stages []Stage
	// re はPathをコンパイルした正規表現。
	re *regexp.Regexp
	// methodSet はMethodsの集合表現。
	methodSet map[string]struct{}
}

// Match はリクエストパスがこのルートにマッチするか判定する。
func (r *Route) Match(path string) bool {
	return r.re.MatchString(path)
}

// AllowsMethod はHTTPメソッドがこのルートで許可されているか判定する。
func (r *Route) AllowsMethod(method string) bool {
	_, ok := r.methodSet[strings.ToUpper(method)]
	return ok
}

// Stages は転送前に実行する段のリストを返す。
func (r *Route) Stages() []Stage {
	return r.stages
}

// RewritePath はパス書き換え規則を適用したパスを返す。
func (r *Route) RewritePath(path string) string {
	if r.Rewrite.From == "" || !strings.HasPrefix(path, r.Rewrite.From) {
		return path
	}
	return r.Rewrite.To + strings.TrimPrefix(path, r.Rewrite.From)
}

// routesFile はルート設定YAMLのトップレベル構造。
type routesFile struct {
	Routes []Route `yaml:"routes"`
}

// LoadRoutes はルートテーブルを構築する。RoutesFileが設定されていれば
// YAMLから、そうでなければ組み込みのルート設定から読み込む。
// パターンのコンパイルと段名の検証はこの時点で完了させる。
func LoadRoutes(c *Config) ([]Route, error) {
	routes := defaultRoutes()
	if c.RoutesFile != "" {
		data, err := os.ReadFile(c.RoutesFile)
		if err != nil {
			return nil, fmt.Errorf("ルート設定の読み込みに失敗: %w", err)
		}
		var f routesFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("ルート設定の解析に失敗: %w", err)
		}
		if len(f.Routes) == 0 {
			return nil, fmt.Errorf("ルート設定が空です: %s", c.RoutesFile)
		}
		routes = f.Routes
	}

	replacer := strings.NewReplacer(
		"${AUTH_SERVICE_URL}", c.AuthServiceURL,
		"${QR_SERVICE_URL}", c.QRServiceURL,
		"${ANALYTICS_SERVICE_URL}", c.AnalyticsServiceURL,
	)

	for i := range routes {
		rt := &routes[i]
		rt.Target = replacer.Replace(rt.Target)

		re, err := rbac.CompilePattern(rt.Path)
		if err != nil {
			return nil, fmt.Errorf("ルート %q が不正: %w", rt.Path, err)
		}
		rt.re = re

		rt.methodSet = make(map[string]struct{}, len(rt.Methods))
		for _, m := range rt.Methods {
			rt.methodSet[strings.ToUpper(m)] = struct{}{}
		}

		rt.stages = make([]Stage, 0, len(rt.Middleware))
		for _, name := range rt.Middleware {
			stage, err := ParseStage(name)
			if err != nil {
				return nil, fmt.Errorf("ルート %q が不正: %w", rt.Path, err)
			}
			rt.stages = append(rt.stages, stage)
		}
	}
	return routes, nil
}

// defaultRoutes は組み込みのルート設定を返す。
// 認証サービスへのパスは書き換えずそのまま転送する。
func defaultRoutes() []Route {
	return []Route{
		{
			Path:    "/api/v1/auth/**",
			Target:  "${AUTH_SERVICE_URL}",
			Methods: []string{"GET", "POST", "PUT", "DELETE", "PATCH"},
		},
		{
			Path:       "/api/v1/users/**",
			Target:     "${AUTH_SERVICE_URL}",
			Methods:    []string{"GET", "PUT", "DELETE"},
			Middleware: []string{"auth", "session", "rbac"},
			Rewrite:    Rewrite{From: "/api/v1/users", To: "/users"},
		},
		{
			Path:       "/api/v1/qr/**",
			Target:     "${QR_SERVICE_URL}",
			Methods:    []string{"GET", "POST", "PUT", "PATCH"},
			Middleware: []string{"auth", "session", "rbac"},
			Rewrite:    Rewrite{From: "/api/v1/qr", To: "/qr"},
		},
		{
			Path:       "/api/v1/dashboard/**",
			Target:     "${ANALYTICS_SERVICE_URL}",
			Methods:    []string{"POST"},
			Middleware: []string{"auth", "session", "rbac"},
			Rewrite:    Rewrite{From: "/api/v1/dashboard", To: "/dashboard"},
		},
		{
			Path:    "/gateway/api/v1/**",
			Target:  "${AUTH_SERVICE_URL}",
			Methods: []string{"GET"},
		},
	}
}
