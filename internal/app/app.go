// Package app は設定に応じてストア、チェーン、変更通知の実装を選び、
// サービスとHTTPルーティングを組み立てる
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api/handler"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api/server"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/application"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/config"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/chain"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/change"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/reconciliation"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/resale"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/ticket"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/infrastructure/ethereum"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/infrastructure/memory"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/infrastructure/messaging"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/infrastructure/metadata"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-nft-ticket-issuance/internal/infrastructure/redis"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/clock"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/metrics"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/worker"
)

// Options は Build の差し替え口（テスト用）
// 未指定の項目は設定から組み立てる
type Options struct {
	Clock    clock.Clock
	Minter   chain.Minter
	Signer   chain.Signer
	Registry *prometheus.Registry
}

// Services はアプリケーションサービス一式
type Services struct {
	Events         *application.EventService
	Issuance       *application.IssuanceService
	Tickets        *application.TicketService
	Resale         *application.ResaleMarket
	Profiles       *application.ProfileService
	Reconciliation *application.ReconciliationService
	Lifecycle      *application.LifecycleMonitor
}

// App は組み立て済みのアプリケーション
type App struct {
	Echo     *echo.Echo
	Services Services
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Signer   chain.Signer

	cfg         *config.Config
	reconciler  *worker.ReconcileWorker
	sweeper     *worker.LifecycleSweeper
	invalidator *worker.CacheInvalidator
	started     bool
	closers     []func() error
}

type repositories struct {
	tx              transaction.Manager
	events          event.Repository
	tickets         ticket.Repository
	profiles        profile.Repository
	listings        resale.Repository
	reconciliations reconciliation.Repository
}

type changeFeed interface {
	change.Publisher
	change.Subscriber
}

// Build は設定に従って依存を組み立てる
// 途中で失敗した場合はそれまでに開いた接続を閉じる
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	clk := opts.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}

	a.Registry = opts.Registry
	if a.Registry == nil {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	a.Metrics = metrics.NewWithRegistry(a.Registry)

	checks := map[string]handler.CheckFunc{}

	repos, err := a.buildStore(cfg, checks)
	if err != nil {
		return nil, err
	}

	lockManager, cache, err := a.buildRedis(cfg, checks)
	if err != nil {
		return nil, err
	}

	feed, err := a.buildChangeFeed(cfg)
	if err != nil {
		return nil, err
	}

	minter, signer, err := a.buildChain(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	a.Signer = signer

	tokenMetadata, err := buildMetadata(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ledger := application.NewReputationLedger(repos.profiles, cache, feed, clk)
	monitor := application.NewLifecycleMonitor(repos.tx, repos.events, repos.tickets, ledger, clk, a.Metrics)
	issuance := application.NewIssuanceService(application.IssuanceDeps{
		TxManager:       repos.tx,
		Events:          repos.events,
		Tickets:         repos.tickets,
		Profiles:        repos.profiles,
		Reconciliations: repos.reconciliations,
		Minter:          minter,
		Metadata:        tokenMetadata,
		LockManager:     lockManager,
		Ledger:          ledger,
		Publisher:       feed,
		Clock:           clk,
		Metrics:         a.Metrics,
	}, application.IssuanceConfig{
		Ordering:      cfg.Issuance.Ordering,
		MintTimeout:   cfg.Issuance.MintTimeout,
		LockTTL:       cfg.Issuance.LockTTL,
		CommitRetries: cfg.Issuance.CommitRetries,
		CommitBackoff: cfg.Issuance.CommitBackoff,
	})

	a.Services = Services{
		Events:         application.NewEventService(repos.tx, repos.events, repos.profiles, repos.reconciliations, minter, ledger, feed, clk, a.Metrics, cfg.Issuance.MintTimeout),
		Issuance:       issuance,
		Tickets:        application.NewTicketService(repos.tickets, repos.events, repos.listings, monitor),
		Resale:         application.NewResaleMarket(repos.listings, repos.tickets, repos.events, feed, clk, a.Metrics),
		Profiles:       application.NewProfileService(repos.profiles, cache, clk),
		Reconciliation: application.NewReconciliationService(repos.reconciliations, issuance, clk, a.Metrics),
		Lifecycle:      monitor,
	}

	a.Echo = server.New(server.Handlers{
		Event:          handler.NewEventHandler(a.Services.Events, signer),
		Ticket:         handler.NewTicketHandler(a.Services.Issuance, a.Services.Tickets, signer),
		Resale:         handler.NewResaleHandler(a.Services.Resale),
		Profile:        handler.NewProfileHandler(a.Services.Profiles),
		Reconciliation: handler.NewReconciliationHandler(a.Services.Reconciliation),
		Health:         handler.NewHealthHandler(checks),
	}, server.Options{
		Profiles:    a.Services.Profiles,
		Metrics:     a.Metrics,
		Gatherer:    a.Registry,
		MetricsAuth: cfg.Metrics,
		Admin:       cfg.Admin,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	a.Echo.Server.ReadTimeout = cfg.Server.ReadTimeout
	a.Echo.Server.WriteTimeout = cfg.Server.WriteTimeout

	a.reconciler = worker.NewReconcileWorker(a.Services.Reconciliation, cfg.Worker.ReconcileInterval, cfg.Worker.ReconcileBatch)
	if cfg.Worker.SweepEnabled {
		a.sweeper = worker.NewLifecycleSweeper(monitor, cfg.Worker.SweepInterval, cfg.Worker.SweepBatch)
	}
	a.invalidator = worker.NewCacheInvalidator(feed, a.Services.Profiles)

	return a, nil
}

func (a *App) buildStore(cfg *config.Config, checks map[string]handler.CheckFunc) (*repositories, error) {
	if cfg.App.StoreDriver == "memory" {
		store := memory.NewStore()
		logger.Info("インメモリストアを使用します")
		return &repositories{
			tx:              store,
			events:          memory.NewEventRepository(store),
			tickets:         memory.NewTicketRepository(store),
			profiles:        memory.NewProfileRepository(store),
			listings:        memory.NewResaleRepository(store),
			reconciliations: memory.NewReconciliationRepository(store),
		}, nil
	}

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if err := postgres.RunMigrations(db.DB); err != nil {
		return nil, err
	}
	checks["database"] = func(ctx context.Context) error { return postgres.Ping(ctx, db) }
	return postgresRepositories(db), nil
}

func postgresRepositories(db *sqlx.DB) *repositories {
	return &repositories{
		tx:              postgres.NewTxManager(db, postgres.WithIsolation(sql.LevelReadCommitted)),
		events:          postgres.NewEventRepository(db),
		tickets:         postgres.NewTicketRepository(db),
		profiles:        postgres.NewProfileRepository(db),
		listings:        postgres.NewResaleRepository(db),
		reconciliations: postgres.NewReconciliationRepository(db),
	}
}

// buildRedis はロックとプロフィールキャッシュを用意する
// Redis を無効にした場合はどちらも nil（ロック無し、キャッシュ無し）で動く
func (a *App) buildRedis(cfg *config.Config, checks map[string]handler.CheckFunc) (redisinfra.LockManagerInterface, application.ProfileCache, error) {
	if !cfg.Redis.Enabled {
		logger.Warn("Redisが無効です。購入ロックとプロフィールキャッシュを使いません")
		return nil, nil, nil
	}
	client, err := redisinfra.NewClient(&redisinfra.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, client.Close)
	checks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, client) }
	return redisinfra.NewLockManager(client), redisinfra.NewProfileCache(client, cfg.Redis.ProfileCacheTTL), nil
}

func (a *App) buildChangeFeed(cfg *config.Config) (changeFeed, error) {
	c := cfg.ChangeFeed
	switch c.Driver {
	case "nats":
		feed, err := messaging.NewNATSFeed(c.NATSURL, c.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, feed.Close)
		return feed, nil
	case "amqp":
		feed, err := messaging.NewAMQPFeed(c.AMQPURL, c.Exchange, c.Queue, c.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, feed.Close)
		return feed, nil
	default:
		bus := memory.NewBus()
		a.closers = append(a.closers, func() error { bus.Close(); return nil })
		return bus, nil
	}
}

// buildChain はコントラクトとリレイヤーの署名者を用意する
// memory の場合は起動ごとに使い捨ての鍵を生成する
func (a *App) buildChain(ctx context.Context, cfg *config.Config, opts Options) (chain.Minter, chain.Signer, error) {
	minter, signer := opts.Minter, opts.Signer
	if signer == nil {
		var (
			ks  *ethereum.KeySigner
			err error
		)
		if cfg.Chain.RelayerKey != "" {
			ks, err = ethereum.NewKeySigner(cfg.Chain.RelayerKey)
		} else if cfg.Chain.Driver == "memory" {
			ks, err = ethereum.GenerateKeySigner()
		} else {
			err = errors.New("CHAIN_DRIVER=ethereum には CHAIN_RELAYER_KEY が必要です")
		}
		if err != nil {
			return nil, nil, err
		}
		signer = ks
	}
	if minter != nil {
		return minter, signer, nil
	}

	if cfg.Chain.Driver == "memory" {
		logger.Info("インメモリのチケットコントラクトを使用します", zap.String("relayer", signer.Address()))
		return memory.NewMinter(), signer, nil
	}

	client, err := ethereum.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, func() error { client.Close(); return nil })
	m, err := ethereum.NewMinter(client, cfg.Chain.ContractAddress, cfg.Chain.ChainID)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("チケットコントラクトに接続しました",
		zap.String("contract", cfg.Chain.ContractAddress),
		zap.Int64("chain_id", cfg.Chain.ChainID),
		zap.String("relayer", signer.Address()),
	)
	return m, signer, nil
}

func buildMetadata(ctx context.Context, cfg *config.Config) (application.TokenMetadata, error) {
	c := cfg.Metadata
	if c.Driver != "s3" {
		return metadata.NewStatic(c.DefaultURI), nil
	}
	store, err := metadata.NewS3Store(ctx, metadata.S3Options{
		Bucket:        c.S3Bucket,
		Prefix:        c.S3Prefix,
		PublicBaseURL: c.PublicBaseURL,
		Region:        c.S3Region,
		Endpoint:      c.S3Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("メタデータストアの初期化に失敗: %w", err)
	}
	return store, nil
}

// StartWorkers はバックグラウンドワーカーを開始する
func (a *App) StartWorkers(ctx context.Context) error {
	if err := a.invalidator.Start(ctx); err != nil {
		return err
	}
	go a.reconciler.Start(ctx)
	if a.sweeper != nil {
		go a.sweeper.Start(ctx)
	}
	a.started = true
	return nil
}

// StopWorkers はバックグラウンドワーカーを停止する
// 開始していない場合は何もしない
func (a *App) StopWorkers() {
	if !a.started {
		return
	}
	a.started = false
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	a.reconciler.Stop()
	a.invalidator.Stop()
}

// Close は開いた接続を逆順に閉じる
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Addr はHTTPサーバーの待ち受けアドレスを返す
func (a *App) Addr() string {
	return ":" + a.cfg.Server.Port
}
