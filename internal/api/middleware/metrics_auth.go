package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/config"
)

// MetricsBasicAuth は /metrics エンドポイント用の Basic 認証ミドルウェア
// METRICS_USER と METRICS_PASSWORD が設定されている場合のみ認証を要求
// 設定されていない場合は認証をスキップ（ローカル開発用）
func MetricsBasicAuth(cfg config.MetricsConfig) echo.MiddlewareFunc {
	return basicAuth(cfg.IsEnabled(), cfg.User, cfg.Password)
}

// AdminBasicAuth は運用API用の Basic 認証ミドルウェア
// ADMIN_USER と ADMIN_PASSWORD が未設定の場合は認証をスキップ（production では起動時に弾く）
func AdminBasicAuth(cfg config.AdminConfig) echo.MiddlewareFunc {
	return basicAuth(cfg.IsEnabled(), cfg.User, cfg.Password)
}

func basicAuth(enabled bool, expectedUser, expectedPass string) echo.MiddlewareFunc {
	if !enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return middleware.BasicAuth(func(username, password string, c echo.Context) (bool, error) {
		// タイミング攻撃を防ぐため ConstantTimeCompare を使用
		userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(expectedUser)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(expectedPass)) == 1

		return userMatch && passMatch, nil
	})
}
