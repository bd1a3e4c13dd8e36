package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/app"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/config"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("設定の読み込みに失敗しました", zap.Error(err))
	}
	logger.Set(logger.NewLogger(cfg.App.Env, cfg.App.LogLevel))
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Env)
	if err != nil {
		logger.Fatal("トレーサーの初期化に失敗しました", zap.Error(err))
	}

	a, err := app.Build(ctx, cfg, app.Options{})
	if err != nil {
		logger.Fatal("アプリケーションの初期化に失敗しました", zap.Error(err))
	}

	if err := a.StartWorkers(ctx); err != nil {
		logger.Fatal("ワーカーの起動に失敗しました", zap.Error(err))
	}

	// Graceful shutdown
	go func() {
		logger.Info("サーバーを起動します",
			zap.String("addr", a.Addr()),
			zap.String("env", cfg.App.Env),
			zap.String("store", cfg.App.StoreDriver),
			zap.String("chain", cfg.Chain.Driver),
			zap.String("ordering", cfg.Issuance.Ordering),
		)
		if err := a.Echo.Start(a.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("サーバー起動エラー", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("サーバーをシャットダウンしています...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	exitCode := 0
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
		exitCode = 1
	}
	a.StopWorkers()
	if err := a.Close(); err != nil {
		logger.Error("接続のクローズに失敗しました", zap.Error(err))
		exitCode = 1
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("トレースの送信に失敗しました", zap.Error(err))
	}

	if exitCode != 0 {
		_ = logger.Sync()
		os.Exit(exitCode)
	}
	logger.Info("サーバーが正常にシャットダウンしました")
}
