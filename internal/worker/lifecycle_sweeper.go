package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
)

// Sweeper は開催済みチケットの不参加ペナルティをまとめて適用するインターフェース
type Sweeper interface {
	Sweep(ctx context.Context, limit int) (int, error)
}

// LifecycleSweeper はチケット一覧の閲覧を待たずにペナルティを適用するワーカー
type LifecycleSweeper struct {
	ticker
	sweeper Sweeper
	batch   int
}

// NewLifecycleSweeper は新しいスイーパーを作成
func NewLifecycleSweeper(s Sweeper, interval time.Duration, batch int) *LifecycleSweeper {
	return &LifecycleSweeper{
		ticker:  newTicker("lifecycle_sweeper", interval),
		sweeper: s,
		batch:   batch,
	}
}

// Start はスイーパーを開始
func (s *LifecycleSweeper) Start(ctx context.Context) {
	s.run(ctx, s.sweep)
}

// Stop はスイーパーを停止
func (s *LifecycleSweeper) Stop() {
	s.stop()
}

func (s *LifecycleSweeper) sweep(ctx context.Context) {
	log := logger.Get()

	count, err := s.sweeper.Sweep(ctx, s.batch)
	if err != nil {
		log.Error("不参加ペナルティの一括適用に失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("不参加ペナルティを一括適用", zap.Int("count", count))
	} else {
		log.Debug("ペナルティ対象なし")
	}
}
