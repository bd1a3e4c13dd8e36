package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// HeaderIdempotencyKey は購入の冪等キーを渡すヘッダー
const HeaderIdempotencyKey = "Idempotency-Key"

// SetupMiddleware は全ルート共通のミドルウェアを登録する
// origins が空なら全オリジンを許可する
func SetupMiddleware(e *echo.Echo, origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	e.Use(RequestIDMiddleware())
	e.Use(Tracing())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
			HeaderUserID, HeaderUserEmail, HeaderWalletAddress, HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{echo.HeaderXRequestID},
	}))

	// 利用者ヘッダーの取り込みはルート側で認可する前に済ませる
	e.Use(Identify())
}
