package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound はキーが存在しない、または期限切れで消えている場合に返す。
// ストア自体の障害（ErrUnavailable）とは必ず区別すること。
var ErrNotFound = errors.New("session: not found")

// ErrUnavailable はストアへの接続・操作が失敗した場合に返す。
var ErrUnavailable = errors.New("session: store unavailable")

// KeyPrefix はセッションレコードのキー接頭辞。
// 相関識別子idに対するキーは "session:<id>" となる。
const KeyPrefix = "session:"

// Key は相関識別子からセッションストアのキーを生成する。
func Key(correlationID string) string {
	return KeyPrefix + correlationID
}

// Store はTTL付きキーバリューストアへのアダプタ。
// ビジネスロジックを持たない純粋なパススルー。
type Store interface {
	// Get はキーに対応する値を返す。キーが存在しない場合はErrNotFound。
	Get(ctx context.Context, key string) (string, error)
	// Set はキーに値をTTL付きで書き込む。
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete はキーを削除する。キーが存在しなくてもエラーにしない。
	Delete(ctx context.Context, key string) error
}

// RedisStore はRedisを使用したStoreの実装。
type RedisStore struct {
	// client はRedisクライアント。
	client *redis.Client
	// timeout は各操作に適用するタイムアウト。
	timeout time.Duration
}

// NewRedisStore は新しいRedisStoreを生成する。
// timeoutが0の場合は5秒を使用する。
func NewRedisStore(client *redis.Client, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RedisStore{client: client, timeout: timeout}
}

// Get はキーに対応する値を取得する。
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, nil
}

// Set はキーに値をTTL付きで書き込む。
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete はキーを削除する。
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
