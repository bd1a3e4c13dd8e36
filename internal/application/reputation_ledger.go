package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/change"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/clock"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
)

// ReputationLedger はレピュテーションの唯一の書き込み口
// 増減はストアの原子更新に任せ、ユーザー単位で失われる更新が無いようにする
type ReputationLedger struct {
	profiles  profile.Repository
	cache     ProfileCache
	publisher change.Publisher
	clock     clock.Clock
}

func NewReputationLedger(pr profile.Repository, cache ProfileCache, pub change.Publisher, clk clock.Clock) *ReputationLedger {
	return &ReputationLedger{profiles: pr, cache: cache, publisher: pub, clock: clk}
}

// Increment はスコアを delta 増やし、更新後のスコアを返す
func (l *ReputationLedger) Increment(ctx context.Context, userID string, delta int) (int, error) {
	if delta <= 0 {
		return 0, validationError(ErrInvalidDelta)
	}
	return l.update(ctx, userID, delta)
}

// Decrement はスコアを delta 減らす（0で下限）
func (l *ReputationLedger) Decrement(ctx context.Context, userID string, delta int) (int, error) {
	if delta <= 0 {
		return 0, validationError(ErrInvalidDelta)
	}
	return l.update(ctx, userID, -delta)
}

// Read は正本のスコアを返す（キャッシュは見ない）
func (l *ReputationLedger) Read(ctx context.Context, userID string) (int, error) {
	p, err := l.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return 0, notFoundError(err)
		}
		return 0, internalError(fmt.Errorf("プロフィール取得に失敗: %w", err))
	}
	return p.Reputation, nil
}

func (l *ReputationLedger) update(ctx context.Context, userID string, delta int) (int, error) {
	score, err := l.ApplyTx(ctx, nil, userID, delta)
	if err != nil {
		return 0, err
	}
	l.Notify(ctx, userID)
	return score, nil
}

// ApplyTx は呼び出し元のトランザクション内で符号付きの delta を適用する
// コミット後に Notify を呼ぶのは呼び出し元の責務
func (l *ReputationLedger) ApplyTx(ctx context.Context, tx transaction.Tx, userID string, delta int) (int, error) {
	if delta == 0 {
		return 0, validationError(ErrInvalidDelta)
	}
	score, err := l.profiles.AddReputation(ctx, tx, userID, delta)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return 0, notFoundError(err)
		}
		return 0, internalError(fmt.Errorf("レピュテーション更新に失敗: %w", err))
	}
	return score, nil
}

// Notify はプロフィールの変更をキャッシュと購読者に伝える
// 失敗してもスコアの正しさには影響しないのでログに留める
func (l *ReputationLedger) Notify(ctx context.Context, userID string) {
	if l.cache != nil {
		if err := l.cache.Invalidate(ctx, userID); err != nil {
			logger.Warn("プロフィールキャッシュの無効化に失敗", zap.String("user_id", userID), zap.Error(err))
		}
	}
	publish(ctx, l.publisher, change.New(change.EntityProfile, change.KindUpdate, userID, l.clock.Now()))
}

// publish は変更通知を発行する。配送の失敗は呼び出し元に返さない
func publish(ctx context.Context, pub change.Publisher, ev change.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		logger.Warn("変更通知の発行に失敗",
			zap.String("entity", string(ev.Entity)),
			zap.String("kind", string(ev.Kind)),
			zap.String("id", ev.ID),
			zap.Error(err),
		)
	}
}

func eventKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
