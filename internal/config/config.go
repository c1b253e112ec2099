package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config はゲートウェイの起動時設定。起動後は変更しない。
// 各コンポーネントへは値として明示的に渡す。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// JWTSecret はトークン署名・検証用の共有秘密鍵。必須。
	JWTSecret string
	// RedisURL はセッションストアの接続URL。
	RedisURL string
	// AuthServiceURL は認証サービスのベースURL。
	AuthServiceURL string
	// QRServiceURL はQRサービスのベースURL。
	QRServiceURL string
	// AnalyticsServiceURL は分析サービスのベースURL。
	AnalyticsServiceURL string
	// RoutesFile はルート設定YAMLのパス。空の場合は組み込み設定を使う。
	RoutesFile string
	// PermissionsFile は権限設定YAMLのパス。空の場合は組み込み設定を使う。
	PermissionsFile string
	// StoreTimeout はセッションストア操作のタイムアウト。
	StoreTimeout time.Duration
	// ProxyTimeout はバックエンド転送のタイムアウト。
	ProxyTimeout time.Duration
}

// Load は環境変数から設定を読み込む。
// 署名秘密鍵が未設定の場合は初回使用時ではなくこの時点で失敗させる。
func Load() (*Config, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRETが設定されていません")
	}

	return &Config{
		Port:                getEnvOr("PORT", "3000"),
		JWTSecret:           secret,
		RedisURL:            getEnvOr("REDIS_URL", "redis://localhost:6379"),
		AuthServiceURL:      getEnvOr("AUTH_SERVICE_URL", "http://localhost:3001"),
		QRServiceURL:        getEnvOr("QR_SERVICE_URL", "http://localhost:3002"),
		AnalyticsServiceURL: getEnvOr("ANALYTICS_SERVICE_URL", "http://localhost:3003"),
		RoutesFile:          os.Getenv("ROUTES_FILE"),
		PermissionsFile:     os.Getenv("PERMISSIONS_FILE"),
		StoreTimeout:        getEnvSecondsOr("STORE_TIMEOUT_SECONDS", 5*time.Second),
		ProxyTimeout:        getEnvSecondsOr("PROXY_TIMEOUT_SECONDS", 30*time.Second),
	}, nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvSecondsOr は秒数として環境変数を取得する。
// 未設定または不正な値の場合はデフォルト値を返す。
func getEnvSecondsOr(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec <= 0 {
		return defaultValue
	}
	return time.Duration(sec) * time.Second
}
