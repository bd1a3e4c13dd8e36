package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/reconciliation"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/ticket"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/clock"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/metrics"
)

// MaxReconcileAttempts を超えた commit_failed は manual に切り替える
const MaxReconcileAttempts = 10

// Recommitter は照合エントリの記録を再実行する
type Recommitter interface {
	Recommit(ctx context.Context, entry *reconciliation.Entry) error
}

// RetryReport は再試行の結果
type RetryReport struct {
	Resolved int
	Manual   int
	Failed   int
}

// ReconciliationService はミント済みで記録できなかった購入の照合を扱う
type ReconciliationService struct {
	repo        reconciliation.Repository
	recommitter Recommitter
	clock       clock.Clock
	metrics     *metrics.Metrics
}

func NewReconciliationService(repo reconciliation.Repository, rc Recommitter, clk clock.Clock, m *metrics.Metrics) *ReconciliationService {
	return &ReconciliationService{repo: repo, recommitter: rc, clock: clk, metrics: m}
}

// Pending は未解消のエントリを古い順に返す
func (s *ReconciliationService) Pending(ctx context.Context, limit int) ([]*reconciliation.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	entries, err := s.repo.ListOpen(ctx, limit)
	if err != nil {
		return nil, internalError(fmt.Errorf("照合エントリ取得に失敗: %w", err))
	}
	return entries, nil
}

// Resolve はエントリを手動で解消済みにする
func (s *ReconciliationService) Resolve(ctx context.Context, id, note string) (*reconciliation.Entry, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, reconciliation.ErrEntryNotFound) {
			return nil, notFoundError(err)
		}
		return nil, internalError(err)
	}
	if err := e.Resolve(s.clock.Now()); err != nil {
		return nil, newError(KindConflict, err, nil)
	}
	if note != "" {
		e.Detail = appendDetail(e.Detail, "resolved: "+note)
	}
	if err := s.repo.Update(ctx, e); err != nil {
		return nil, internalError(fmt.Errorf("照合エントリ更新に失敗: %w", err))
	}
	logger.Info("照合エントリを解消", zap.String("id", e.ID), zap.String("kind", string(e.Kind)))
	s.RefreshGauge(ctx)
	return e, nil
}

// Retry は再試行可能なエントリの記録を再実行する
// 販売枠の競合に負けたものや所有済みのものは manual に切り替える
func (s *ReconciliationService) Retry(ctx context.Context, limit int) (RetryReport, error) {
	var report RetryReport
	entries, err := s.repo.ListRetryable(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("照合エントリ取得に失敗: %w", err)
	}

	for _, e := range entries {
		e.Attempts++

		err := s.recommitter.Recommit(ctx, e)
		switch {
		case err == nil:
			_ = e.Resolve(s.clock.Now())
			report.Resolved++
		case errors.Is(err, event.ErrSoldOut):
			e.Kind = reconciliation.KindOversold
			e.Status = reconciliation.StatusManual
			e.Detail = appendDetail(e.Detail, err.Error())
			report.Manual++
		case errors.Is(err, ticket.ErrAlreadyOwned) || e.Attempts >= MaxReconcileAttempts:
			e.Status = reconciliation.StatusManual
			e.Detail = appendDetail(e.Detail, err.Error())
			report.Manual++
		default:
			e.Detail = appendDetail(e.Detail, err.Error())
			report.Failed++
		}

		if err := s.repo.Update(ctx, e); err != nil {
			logger.Error("照合エントリ更新に失敗", zap.String("id", e.ID), zap.Error(err))
		}
	}

	s.RefreshGauge(ctx)
	return report, nil
}

// RefreshGauge は未解消エントリ数のメトリクスを更新する
func (s *ReconciliationService) RefreshGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	counts, err := s.repo.CountOpenByKind(ctx)
	if err != nil {
		logger.Warn("照合エントリ数の集計に失敗", zap.Error(err))
		return
	}
	// 解消済みになった種類も 0 として出す
	for _, kind := range []reconciliation.Kind{
		reconciliation.KindOversold,
		reconciliation.KindCommitFailed,
		reconciliation.KindEventCommitFailed,
		reconciliation.KindReleaseFailed,
		reconciliation.KindDuplicateMint,
	} {
		s.metrics.ReconciliationOpen.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}
}

// appendDetail は詳細の末尾に追記する（長くなりすぎないよう末尾を残す）
func appendDetail(detail, msg string) string {
	const maxLen = 2000
	out := msg
	if detail != "" {
		out = detail + "\n" + msg
	}
	if len(out) > maxLen {
		out = out[len(out)-maxLen:]
	}
	return out
}
