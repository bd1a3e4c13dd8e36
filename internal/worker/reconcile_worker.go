package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/application"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
)

// Reconciler は保留中の照合エントリを再試行するインターフェース
type Reconciler interface {
	Retry(ctx context.Context, limit int) (application.RetryReport, error)
	RefreshGauge(ctx context.Context)
}

// ReconcileWorker は記録できなかった購入を定期的に再記録するワーカー
type ReconcileWorker struct {
	ticker
	reconciler Reconciler
	batch      int
}

// NewReconcileWorker は新しいワーカーを作成
func NewReconcileWorker(r Reconciler, interval time.Duration, batch int) *ReconcileWorker {
	return &ReconcileWorker{
		ticker:     newTicker("reconcile", interval),
		reconciler: r,
		batch:      batch,
	}
}

// Start はワーカーを開始
// 起動直後に一度実行してから定期実行に入る
func (w *ReconcileWorker) Start(ctx context.Context) {
	w.reconcile(ctx)
	w.run(ctx, w.reconcile)
}

// Stop はワーカーを停止
func (w *ReconcileWorker) Stop() {
	w.stop()
}

func (w *ReconcileWorker) reconcile(ctx context.Context) {
	log := logger.Get()

	report, err := w.reconciler.Retry(ctx, w.batch)
	if err != nil {
		log.Error("照合エントリの再試行に失敗", zap.Error(err))
		return
	}
	w.reconciler.RefreshGauge(ctx)

	if report.Resolved+report.Manual+report.Failed > 0 {
		log.Info("照合エントリを再試行",
			zap.Int("resolved", report.Resolved),
			zap.Int("manual", report.Manual),
			zap.Int("failed", report.Failed),
		)
	} else {
		log.Debug("再試行対象の照合エントリなし")
	}
}
