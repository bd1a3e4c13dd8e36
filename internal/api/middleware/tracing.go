package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/application"
)

const tracerName = "github.com/sanosuguru/go-nft-ticket-issuance/internal/api"

// Tracing は traceparent を引き継いでリクエストのサーバースパンを開始する
// トレーサーが無効なら noop のスパンになる
func Tracing() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := otel.Tracer(tracerName).Start(ctx, req.Method+" "+c.Path(),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("http.route", c.Path()),
				),
			)
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			var appErr *application.Error
			var he *echo.HTTPError
			switch {
			case errors.As(err, &appErr):
				span.SetAttributes(attribute.String("app.error.kind", string(appErr.Kind)))
				span.RecordError(err)
				span.SetStatus(codes.Error, string(appErr.Kind))
			case errors.As(err, &he):
				span.SetAttributes(attribute.Int("http.response.status_code", he.Code))
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			default:
				span.SetAttributes(attribute.Int("http.response.status_code", c.Response().Status))
			}
			return err
		}
	}
}
