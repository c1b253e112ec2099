package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/nao1215/gatekeeper/internal/config"
	"github.com/nao1215/gatekeeper/pkg/middleware"
	"github.com/nao1215/gatekeeper/pkg/rbac"
	"github.com/nao1215/gatekeeper/pkg/session"
	"github.com/nao1215/gatekeeper/pkg/token"
)

// Server はゲートウェイのHTTPサーバー。
// ルートテーブルと権限テーブルは起動時に一度だけ構築し、以降は読み取り専用。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は起動時設定。
	cfg *config.Config
	// routes はルートテーブル。先頭から順に評価し最初のマッチを使う。
	routes []config.Route
	// chains はroutesと同じ並びの、構築済みステージチェーン。
	chains [][]gin.HandlerFunc
	// table はロール権限テーブル。
	table *rbac.Table
	// store はセッションストアへのアダプタ。
	store session.Store
	// client はバックエンド転送用のHTTPクライアント。
	client *http.Client
}

// NewServer は新しいゲートウェイサーバーを生成する。
// ルート・権限設定の検証とセッションストアへの接続準備を起動時に行い、
// 不正な設定はこの時点でエラーにする。
func NewServer(cfg *config.Config) (*Server, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("Redis URLの解析に失敗: %w", err)
	}
	store := session.NewRedisStore(redis.NewClient(opts), cfg.StoreTimeout)
	return newServer(cfg, store)
}

// newServer はストアを差し替え可能な内部コンストラクタ。テストでも使用する。
func newServer(cfg *config.Config, store session.Store) (*Server, error) {
	routes, err := config.LoadRoutes(cfg)
	if err != nil {
		return nil, err
	}
	table, err := config.LoadPermissions(cfg)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS())
	router.Use(middleware.Correlate())

	s := &Server{
		router: router,
		cfg:    cfg,
		routes: routes,
		table:  table,
		store:  store,
		client: &http.Client{Timeout: cfg.ProxyTimeout},
	}
	if err := s.buildChains(); err != nil {
		return nil, err
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}

// buildChains は各ルートのステージチェーンを構築する。
// 段の実行順は auth → session → rbac に固定されている
// （config.LoadRoutesが解決した順をそのまま使う）。
func (s *Server) buildChains() error {
	s.chains = make([][]gin.HandlerFunc, len(s.routes))
	for i := range s.routes {
		chain := make([]gin.HandlerFunc, 0, len(s.routes[i].Stages()))
		for _, stage := range s.routes[i].Stages() {
			h, err := s.stageHandler(stage)
			if err != nil {
				return err
			}
			chain = append(chain, h)
		}
		s.chains[i] = chain
	}
	return nil
}

// stageHandler はStageに対応するミドルウェアを返す。
// Stageは閉じた列挙であり、未知の値は設定読み込み時に拒否済み。
func (s *Server) stageHandler(stage config.Stage) (gin.HandlerFunc, error) {
	switch stage {
	case config.StageAuth:
		return middleware.Authenticate(s.store, s.cfg.JWTSecret), nil
	case config.StageSession:
		return middleware.EnsureSession(s.store, s.cfg.JWTSecret), nil
	case config.StageRBAC:
		return middleware.Authorize(s.table), nil
	default:
		return nil, fmt.Errorf("未知のステージ: %v", stage)
	}
}

// setupRoutes はゲートウェイ自身のエンドポイントとディスパッチャを設定する。
// ルートテーブルへのディスパッチはNoRouteハンドラで行う。
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth())

	g := s.router.Group("/gateway")
	{
		g.GET("/routes", s.handleRoutes())
		g.POST("/test-auth", s.handleTestAuth())
		g.GET("/test-protected", middleware.Authenticate(s.store, s.cfg.JWTSecret), s.handleTestProtected())
	}

	s.router.NoRoute(s.handleDispatch())
}

// handleHealth はゲートウェイ自身の稼働確認を返すハンドラを返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"gateway":   "running",
		})
	}
}

// handleRoutes はルートテーブルの設定内容を返すハンドラを返す。
func (s *Server) handleRoutes() gin.HandlerFunc {
	return func(c *gin.Context) {
		list := make([]gin.H, 0, len(s.routes))
		for i := range s.routes {
			rt := &s.routes[i]
			list = append(list, gin.H{
				"path":       rt.Path,
				"target":     rt.Target,
				"middleware": rt.Middleware,
				"status":     "configured",
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"message":     "Gateway route configuration",
			"routes":      list,
			"totalRoutes": len(s.routes),
		})
	}
}

// handleTestAuth は開発用のテストセッションを発行するハンドラを返す。
// Correlateが確立した相関識別子の下にテストユーザーのセッションを書き込む。
// 本番環境では無効化すべき。
func (s *Server) handleTestAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		testUser := token.Identity{
			UserID: "test-user-123",
			Role:   string(rbac.RoleUser),
			Email:  "test@example.com",
		}

		signed, err := token.Sign(s.cfg.JWTSecret, testUser)
		if err != nil {
			middleware.AbortWithEnvelope(c, http.StatusInternalServerError, middleware.KindInternalError, "Failed to create test session.")
			return
		}

		sessionID := middleware.CorrelationID(c)
		if err := s.store.Set(c.Request.Context(), session.Key(sessionID), signed, token.Lifetime); err != nil {
			middleware.AbortWithEnvelope(c, http.StatusInternalServerError, middleware.KindInternalError, "Failed to create test session.")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":   "Test session created using automatic UUID",
			"sessionId": sessionID,
			"user": gin.H{
				"userId": testUser.UserID,
				"role":   testUser.Role,
				"email":  testUser.Email,
			},
		})
	}
}

// handleTestProtected は認証の疎通確認用ハンドラを返す。
// Authenticateを通過した場合のみ到達する。
func (s *Server) handleTestProtected() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, _ := middleware.Identity(c)
		c.JSON(http.StatusOK, gin.H{
			"message": "Authentication successful!",
			"user": gin.H{
				"userId": identity.UserID,
				"role":   identity.Role,
				"email":  identity.Email,
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
