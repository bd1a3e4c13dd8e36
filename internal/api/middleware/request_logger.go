package middleware

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/application"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
)

// RequestLogger はリクエストごとに1行の構造化ログを出す
// 購入系のリクエストでは冪等キーとエラー分類も残す
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			res := c.Response()
			fields := []zap.Field{
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.String("path", req.URL.Path),
				zap.Int("status", res.Status),
				zap.Int64("size", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}
			if sc := trace.SpanContextFromContext(req.Context()); sc.HasTraceID() {
				fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
			}
			if id := IdentityFrom(c); id.Authenticated() {
				fields = append(fields, zap.String("user_id", id.UserID))
			}
			if key := req.Header.Get(HeaderIdempotencyKey); key != "" {
				fields = append(fields, zap.String("idempotency_key", key))
			}

			var appErr *application.Error
			switch {
			case errors.As(err, &appErr):
				fields = append(fields, zap.String("kind", string(appErr.Kind)), zap.Error(err))
				if appErr.Kind == application.KindCommitInconsistency || appErr.Kind == application.KindInternal {
					logger.Error("request failed", fields...)
				} else {
					logger.Warn("request rejected", fields...)
				}
			case err != nil:
				fields = append(fields, zap.Error(err))
				logger.Warn("request failed", fields...)
			case res.Status >= 500:
				logger.Error("server error", fields...)
			case res.Status >= 400:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request completed", fields...)
			}
			return err
		}
	}
}

// RequestIDMiddleware は X-Request-ID を引き継ぐか採番してレスポンスに付ける
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(c)
		}
	}
}
