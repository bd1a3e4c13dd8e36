// Package server はHTTPルーティングを組み立てる
package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api/handler"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api/middleware"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/config"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/metrics"
)

// Handlers はルーティングするハンドラー一式
type Handlers struct {
	Event          *handler.EventHandler
	Ticket         *handler.TicketHandler
	Resale         *handler.ResaleHandler
	Profile        *handler.ProfileHandler
	Reconciliation *handler.ReconciliationHandler
	Health         *handler.HealthHandler
}

// Options はルーティングの付帯設定
// Metrics が nil の場合は HTTP メトリクスを記録しない
type Options struct {
	Profiles    middleware.ProfileEnsurer
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	MetricsAuth config.MetricsConfig
	Admin       config.AdminConfig
	CORSOrigins []string
}

// New はルーティング済みの Echo を作成する
func New(h Handlers, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e, opts.CORSOrigins)
	if opts.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(opts.Metrics))
	}

	e.GET("/health", h.Health.Check)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})), middleware.MetricsBasicAuth(opts.MetricsAuth))

	v1 := e.Group("/api/v1")
	if opts.Profiles != nil {
		v1.Use(middleware.EnsureProfile(opts.Profiles))
	}

	v1.POST("/events", h.Event.Create)
	v1.GET("/events", h.Event.List)
	v1.GET("/events/:id", h.Event.GetByID)
	v1.POST("/events/:id/cancel", h.Event.Cancel)
	v1.POST("/events/:id/tickets", h.Ticket.Purchase)
	v1.POST("/events/:id/resale", h.Resale.List)
	v1.DELETE("/events/:id/resale", h.Resale.Cancel)

	v1.GET("/me/tickets", h.Ticket.Mine)
	v1.GET("/me/profile", h.Profile.Me)
	v1.GET("/me/resale", h.Resale.Mine)

	admin := v1.Group("/admin", middleware.AdminBasicAuth(opts.Admin))
	admin.GET("/reconciliation", h.Reconciliation.List)
	admin.POST("/reconciliation/retry", h.Reconciliation.Retry)
	admin.POST("/reconciliation/:id/resolve", h.Reconciliation.Resolve)

	return e
}
