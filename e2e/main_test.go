package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api/middleware"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/app"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/config"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/clock"
)

const (
	adminUser     = "ops"
	adminPassword = "ops-secret"
)

var baseTime = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

// TestServer はE2Eテスト用のサーバー
// ストア、チェーン、変更通知はすべてプロセス内の実装を使う
type TestServer struct {
	App   *app.App
	Clock *clock.Fixed
}

// User はリクエストを送る利用者
type User struct {
	ID      string
	Email   string
	Address string
}

// NewTestServer はテストごとに独立したサーバーを作成する
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	t.Setenv("APP_ENV", "test")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CHAIN_DRIVER", "memory")
	t.Setenv("CHAIN_RELAYER_KEY", "")
	t.Setenv("CHANGEFEED_DRIVER", "memory")
	t.Setenv("METADATA_DRIVER", "static")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("ISSUANCE_ORDERING", "mint_first")
	t.Setenv("WORKER_SWEEP_ENABLED", "false")
	t.Setenv("ADMIN_USER", adminUser)
	t.Setenv("ADMIN_PASSWORD", adminPassword)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("OTEL_ENABLED", "false")

	cfg, err := config.Load()
	require.NoError(t, err)

	clk := clock.NewFixed(baseTime)
	a, err := app.Build(context.Background(), cfg, app.Options{Clock: clk})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.StartWorkers(ctx))
	t.Cleanup(func() {
		cancel()
		a.StopWorkers()
		_ = a.Close()
	})

	return &TestServer{App: a, Clock: clk}
}

// Request はHTTPリクエストを実行
func (s *TestServer) Request(method, path string, body any, user *User) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set(middleware.HeaderUserID, user.ID)
		req.Header.Set(middleware.HeaderUserEmail, user.Email)
		req.Header.Set(middleware.HeaderWalletAddress, user.Address)
	}

	rec := httptest.NewRecorder()
	s.App.Echo.ServeHTTP(rec, req)
	return rec
}

// AdminRequest は運用APIへのリクエストを実行
func (s *TestServer) AdminRequest(method, path string, body any) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(adminUser, adminPassword)

	rec := httptest.NewRecorder()
	s.App.Echo.ServeHTTP(rec, req)
	return rec
}

// Tick はイベントIDが衝突しないよう時計を進める
func (s *TestServer) Tick() {
	s.Clock.Advance(time.Millisecond)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireStatus(t *testing.T, want int, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
}
