package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/application"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/metrics"
)

func TestSetupMiddleware(t *testing.T) {
	e := echo.New()

	// ミドルウェア設定が正常に動作することを確認
	SetupMiddleware(e, nil)

	// ミドルウェアが設定されていることを確認
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "test")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Body.String())
}

func TestRequestLogger(t *testing.T) {
	e := echo.New()

	// RequestLogger ミドルウェアを適用
	e.Use(RequestLogger())

	// テスト用ハンドラー
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogger_WithError(t *testing.T) {
	e := echo.New()

	e.Use(RequestLogger())

	e.GET("/error", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad request")
	})

	req := httptest.NewRequest(http.MethodGet, "/error", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestLogger_ServerError(t *testing.T) {
	e := echo.New()

	e.Use(RequestLogger())

	e.GET("/server-error", func(c echo.Context) error {
		return c.String(http.StatusInternalServerError, "internal error")
	})

	req := httptest.NewRequest(http.MethodGet, "/server-error", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	e := echo.New()

	e.Use(RequestIDMiddleware())

	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	// リクエストIDなしのリクエスト
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	// レスポンスにリクエストIDが設定されていることを確認
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestIDMiddleware_WithExistingRequestID(t *testing.T) {
	e := echo.New()

	e.Use(RequestIDMiddleware())

	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	// 既存のリクエストIDを持つリクエスト
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderXRequestID, "existing-request-id")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	// 既存のリクエストIDが維持されていることを確認
	assert.Equal(t, "existing-request-id", rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Get()
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(prev) })

	e := echo.New()
	e.Use(RequestIDMiddleware(), Identify(), RequestLogger())
	e.POST("/events/:id/tickets", func(c echo.Context) error {
		return &application.Error{Kind: application.KindEligibility}
	})

	req := httptest.NewRequest(http.MethodPost, "/events/1/tickets", nil)
	req.Header.Set(HeaderUserID, "alice")
	req.Header.Set(HeaderIdempotencyKey, "order-1")
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	e.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request rejected").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "/events/:id/tickets", fields["route"])
	assert.Equal(t, "alice", fields["user_id"])
	assert.Equal(t, "order-1", fields["idempotency_key"])
	assert.Equal(t, "eligibility", fields["kind"])
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	e := echo.New()
	e.Use(Tracing())
	e.GET("/events/:id", func(c echo.Context) error {
		assert.True(t, trace.SpanContextFromContext(c.Request().Context()).IsValid())
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/events/:id/tickets", func(c echo.Context) error {
		return &application.Error{Kind: application.KindMintFailed}
	})

	t.Run("traceparent を引き継いでサーバースパンを作る", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/events/1", nil)
		req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
		e.ServeHTTP(httptest.NewRecorder(), req)

		spans := recorder.Ended()
		require.NotEmpty(t, spans)
		span := spans[len(spans)-1]
		assert.Equal(t, "GET /events/:id", span.Name())
		assert.Equal(t, trace.SpanKindServer, span.SpanKind())
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	})

	t.Run("アプリケーションエラーはスパンをエラーにする", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/events/1/tickets", nil)
		e.ServeHTTP(httptest.NewRecorder(), req)

		spans := recorder.Ended()
		span := spans[len(spans)-1]
		assert.Equal(t, codes.Error, span.Status().Code)
		assert.Equal(t, "mint_failed", span.Status().Description)
	})
}

func TestPrometheusMiddleware(t *testing.T) {
	e := echo.New()

	// テスト用のメトリクスを作成
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	e.Use(PrometheusMiddleware(m))

	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	// メトリクスが記録されているか確認
	families, err := reg.Gather()
	assert.NoError(t, err)

	var foundRequests, foundDuration bool
	for _, f := range families {
		if f.GetName() == "http_requests_total" {
			foundRequests = true
		}
		if f.GetName() == "http_request_duration_seconds" {
			foundDuration = true
		}
	}
	assert.True(t, foundRequests, "http_requests_total should be recorded")
	assert.True(t, foundDuration, "http_request_duration_seconds should be recorded")
}

func TestPrometheusMiddleware_WithError(t *testing.T) {
	e := echo.New()

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	e.Use(PrometheusMiddleware(m))

	e.GET("/error", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad request")
	})

	req := httptest.NewRequest(http.MethodGet, "/error", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrometheusMiddleware_ApplicationError(t *testing.T) {
	e := echo.New()

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	e.Use(PrometheusMiddleware(m))

	e.GET("/events/:id", func(c echo.Context) error {
		return &application.Error{Kind: application.KindNotFound}
	})

	req := httptest.NewRequest(http.MethodGet, "/events/1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/events/:id", "404")))
}
