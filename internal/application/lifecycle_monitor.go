package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/ticket"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/clock"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/metrics"
)

// LifecycleStatus はチケットの開催状況
type LifecycleStatus struct {
	Expired bool
	Missed  bool
}

// EvaluateLifecycle は開催日時と出席状況からチケットの状態を判定する
// 中止されたイベントは不参加として扱わない
func EvaluateLifecycle(now time.Time, ev *event.Event, tk *ticket.Ticket) LifecycleStatus {
	expired := ev.IsExpired(now)
	return LifecycleStatus{
		Expired: expired,
		Missed:  expired && !tk.Attended && !ev.IsCancelled,
	}
}

// LifecycleMonitor は不参加チケットのペナルティを一度だけ適用する
type LifecycleMonitor struct {
	txManager transaction.Manager
	events    event.Repository
	tickets   ticket.Repository
	ledger    *ReputationLedger
	clock     clock.Clock
	metrics   *metrics.Metrics
}

func NewLifecycleMonitor(tm transaction.Manager, er event.Repository, tr ticket.Repository, ledger *ReputationLedger, clk clock.Clock, m *metrics.Metrics) *LifecycleMonitor {
	return &LifecycleMonitor{txManager: tm, events: er, tickets: tr, ledger: ledger, clock: clk, metrics: m}
}

// Evaluate は現在時刻でチケットの状態を判定する
func (m *LifecycleMonitor) Evaluate(ev *event.Event, tk *ticket.Ticket) LifecycleStatus {
	return EvaluateLifecycle(m.clock.Now(), ev, tk)
}

// Apply は不参加チケットにペナルティを適用し、今回適用したかを返す
// 減点フラグの確保とスコアの減算は同じトランザクションで行い、
// 減算に失敗した場合はフラグも元に戻るので次回の評価で再試行される
func (m *LifecycleMonitor) Apply(ctx context.Context, ev *event.Event, tk *ticket.Ticket) (bool, error) {
	if tk.ReputationDecreased || !m.Evaluate(ev, tk).Missed {
		return false, nil
	}

	applied := false
	err := transaction.Run(ctx, m.txManager, func(tx transaction.Tx) error {
		claimed, err := m.tickets.ClaimReputationDecrease(ctx, tx, tk.ID)
		if err != nil {
			return fmt.Errorf("減点フラグの更新に失敗: %w", err)
		}
		if !claimed {
			return nil
		}
		if _, err := m.ledger.ApplyTx(ctx, tx, tk.OwnerID, -profile.PenaltyMissedEvent); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		var appErr *Error
		if errors.As(err, &appErr) {
			return false, err
		}
		return false, internalError(err)
	}

	tk.ReputationDecreased = true
	if applied {
		m.ledger.Notify(ctx, tk.OwnerID)
		if m.metrics != nil {
			m.metrics.ReputationPenaltiesTotal.Inc()
		}
		logger.Info("不参加ペナルティを適用",
			zap.String("ticket_id", tk.ID),
			zap.Int64("event_id", ev.ID),
			zap.String("user_id", tk.OwnerID),
		)
	}
	return applied, nil
}

// Sweep は開催済みで未減点のチケットをまとめて評価し、適用件数を返す
func (m *LifecycleMonitor) Sweep(ctx context.Context, limit int) (int, error) {
	candidates, err := m.tickets.ListPenaltyCandidates(ctx, m.clock.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("ペナルティ候補の取得に失敗: %w", err)
	}

	events := make(map[int64]*event.Event)
	count := 0
	for _, tk := range candidates {
		ev, ok := events[tk.EventID]
		if !ok {
			ev, err = m.events.GetByID(ctx, tk.EventID)
			if err != nil {
				logger.Error("イベント取得に失敗", zap.Int64("event_id", tk.EventID), zap.Error(err))
				continue
			}
			events[tk.EventID] = ev
		}

		applied, err := m.Apply(ctx, ev, tk)
		if err != nil {
			logger.Error("ペナルティ適用に失敗", zap.String("ticket_id", tk.ID), zap.Error(err))
			continue
		}
		if applied {
			count++
		}
	}
	return count, nil
}
