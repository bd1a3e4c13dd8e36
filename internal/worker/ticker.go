// Package worker はバックグラウンドで定期実行する処理を提供する
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
)

// ticker は interval ごとに tick を呼び出すループ
type ticker struct {
	name     string
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newTicker(name string, interval time.Duration) ticker {
	return ticker{
		name:     name,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (t *ticker) run(ctx context.Context, tick func(context.Context)) {
	logger.Info("ワーカー開始", zap.String("worker", t.name), zap.Duration("interval", t.interval))

	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	defer close(t.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("ワーカー停止（コンテキストキャンセル）", zap.String("worker", t.name))
			return
		case <-t.stopCh:
			logger.Info("ワーカー停止（シグナル受信）", zap.String("worker", t.name))
			return
		case <-tk.C:
			tick(ctx)
		}
	}
}

// stop は停止を通知し、ループの終了を待つ
func (t *ticker) stop() {
	close(t.stopCh)
	<-t.doneCh
}
