package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/gatekeeper/pkg/session"
	"github.com/nao1215/gatekeeper/pkg/token"
)

// testSecret はテスト用のトークン署名秘密鍵。
const testSecret = "test-secret-key"

// memoryStore はテスト用のインメモリセッションストア。
// failingをtrueにするとすべての操作がErrUnavailableを返す。
type memoryStore struct {
	mu      sync.Mutex
	values  map[string]string
	failing bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: make(map[string]string)}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return "", session.ErrUnavailable
	}
	v, ok := m.values[key]
	if !ok {
		return "", session.ErrNotFound
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return session.ErrUnavailable
	}
	m.values[key] = value
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return session.ErrUnavailable
	}
	delete(m.values, key)
	return nil
}

// newAuthRouter はCorrelate→Authenticateを適用したテスト用ルーターを生成する。
// ハンドラは検証済みIdentityのUserIDを返す。
func newAuthRouter(t *testing.T, store session.Store) *gin.Engine {
	t.Helper()

	router := gin.New()
	router.Use(Correlate())
	router.GET("/protected", Authenticate(store, testSecret), func(c *gin.Context) {
		identity, _ := Identity(c)
		c.JSON(http.StatusOK, gin.H{"userId": identity.UserID, "token": SessionToken(c)})
	})
	return router
}

// seedSession はストアにセッションレコードを書き込み、相関識別子を返す。
func seedSession(t *testing.T, store session.Store, identity token.Identity) string {
	t.Helper()

	signed, err := token.Sign(testSecret, identity)
	if err != nil {
		t.Fatalf("テスト用トークンの署名に失敗: %v", err)
	}
	id := uuid.NewString()
	if err := store.Set(context.Background(), session.Key(id), signed, token.Lifetime); err != nil {
		t.Fatalf("テスト用セッションの書き込みに失敗: %v", err)
	}
	return id
}

// decodeEnvelope はレスポンスボディをEnvelopeとしてパースする。
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()

	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("エンベロープのパースに失敗: %v", err)
	}
	return env
}

// TestAuthenticate は認証ミドルウェアを検証する。
func TestAuthenticate(t *testing.T) {
	t.Parallel()

	t.Run("有効なセッションで認証が成功しIdentityが設定されること", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		id := seedSession(t, store, token.Identity{UserID: "u1", Role: "user", Email: "u1@example.com"})
		router := newAuthRouter(t, store)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: id})
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["userId"] != "u1" {
			t.Errorf("userId = %q, want %q", body["userId"], "u1")
		}
		if body["token"] == "" {
			t.Error("生トークンがコンテキストに設定されていない")
		}
	})

	t.Run("相関識別子が無い場合は401が返ること", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		// Correlateを適用しないルーターで識別子欠落を再現する
		router := gin.New()
		router.GET("/protected", Authenticate(store, testSecret), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		env := decodeEnvelope(t, w)
		if env.Message != "No session ID found." {
			t.Errorf("message = %q, want %q", env.Message, "No session ID found.")
		}
	})

	t.Run("セッションレコードが無い場合は401が返ること", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		router := newAuthRouter(t, store)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: uuid.NewString()})
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		env := decodeEnvelope(t, w)
		if env.Message != "Session not found or expired." {
			t.Errorf("message = %q, want %q", env.Message, "Session not found or expired.")
		}
	})

	t.Run("別の秘密鍵で署名されたトークンは401が返ること", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		signed, err := token.Sign("other-secret", token.Identity{UserID: "u1", Role: "user"})
		if err != nil {
			t.Fatalf("テスト用トークンの署名に失敗: %v", err)
		}
		id := uuid.NewString()
		if err := store.Set(context.Background(), session.Key(id), signed, token.Lifetime); err != nil {
			t.Fatalf("テスト用セッションの書き込みに失敗: %v", err)
		}
		router := newAuthRouter(t, store)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: id})
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		env := decodeEnvelope(t, w)
		if env.Message != "Invalid session token." {
			t.Errorf("message = %q, want %q", env.Message, "Invalid session token.")
		}
	})

	t.Run("ストア障害はキー不在と区別され500が返ること", func(t *testing.T) {
		t.Parallel()

		store := newMemoryStore()
		store.failing = true
		router := newAuthRouter(t, store)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: uuid.NewString()})
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		env := decodeEnvelope(t, w)
		if env.Error != KindInternalError {
			t.Errorf("error = %q, want %q", env.Error, KindInternalError)
		}
	})
}
