package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/change"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
)

// Invalidator はプロフィールキャッシュを破棄するインターフェース
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// CacheInvalidator はプロフィールの変更通知を受けてキャッシュを破棄する
// 他のインスタンスで発生した更新を取りこぼさないための購読者
type CacheInvalidator struct {
	sub         change.Subscriber
	invalidator Invalidator
	unsubscribe func()
}

// NewCacheInvalidator は新しい購読者を作成
func NewCacheInvalidator(sub change.Subscriber, inv Invalidator) *CacheInvalidator {
	return &CacheInvalidator{sub: sub, invalidator: inv}
}

// Start は購読を開始する
func (c *CacheInvalidator) Start(ctx context.Context) error {
	unsubscribe, err := c.sub.Subscribe(ctx, c.handle)
	if err != nil {
		return fmt.Errorf("変更通知の購読に失敗: %w", err)
	}
	c.unsubscribe = unsubscribe
	logger.Info("プロフィールキャッシュ無効化の購読を開始")
	return nil
}

// Stop は購読を解除する
func (c *CacheInvalidator) Stop() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *CacheInvalidator) handle(ctx context.Context, ev change.Event) {
	if ev.Entity != change.EntityProfile || ev.ID == "" {
		return
	}
	if err := c.invalidator.Invalidate(ctx, ev.ID); err != nil {
		logger.Warn("プロフィールキャッシュの無効化に失敗", zap.String("user_id", ev.ID), zap.Error(err))
	}
}
