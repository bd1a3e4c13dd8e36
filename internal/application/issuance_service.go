package application

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/chain"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/change"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/reconciliation"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/ticket"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-nft-ticket-issuance/internal/infrastructure/redis"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/clock"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/idgen"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/metrics"
)

const tracerName = "github.com/sanosuguru/go-nft-ticket-issuance/internal/application"

// 購入処理の順序
const (
	// OrderingMintFirst はミントしてから販売枠を確保する
	// 競合に負けた場合はミント済みのまま照合キューに積む
	OrderingMintFirst = "mint_first"
	// OrderingReserveFirst は販売枠を確保してからミントする
	// ミントに失敗した場合は確保した枠を戻す
	OrderingReserveFirst = "reserve_first"
)

var (
	// ErrIdempotencyKeyReused は別の購入で使われた冪等キーが指定されたことを表す
	ErrIdempotencyKeyReused = errors.New("冪等キーは別の購入で使用済みです")
	// ErrDuplicateMint は同じ冪等キーの購入が並行して別々にミントされたことを表す
	ErrDuplicateMint = errors.New("同じ冪等キーで二重にミントされました")
)

// duplicateNonceSuffix は二重ミントの照合エントリに付けるノンスの接尾辞
const duplicateNonceSuffix = ":dup"

// IssuanceConfig はチケット発行の設定
type IssuanceConfig struct {
	Ordering      string
	MintTimeout   time.Duration
	LockTTL       time.Duration
	CommitRetries int
	CommitBackoff time.Duration
}

// DefaultIssuanceConfig はデフォルトの発行設定を返す
func DefaultIssuanceConfig() IssuanceConfig {
	return IssuanceConfig{
		Ordering:      OrderingMintFirst,
		MintTimeout:   60 * time.Second,
		LockTTL:       90 * time.Second,
		CommitRetries: 3,
		CommitBackoff: 200 * time.Millisecond,
	}
}

// IssuanceDeps はチケット発行サービスの依存
// LockManager, Metadata, Publisher, Metrics は nil でもよい
type IssuanceDeps struct {
	TxManager       transaction.Manager
	Events          event.Repository
	Tickets         ticket.Repository
	Profiles        profile.Repository
	Reconciliations reconciliation.Repository
	Minter          chain.Minter
	Metadata        TokenMetadata
	LockManager     redisinfra.LockManagerInterface
	Ledger          *ReputationLedger
	Publisher       change.Publisher
	IDs             idgen.Generator
	Clock           clock.Clock
	Metrics         *metrics.Metrics
}

// IssuanceService はオンチェーンのミントとオフチェーンの記録をまとめてチケットを発行する
type IssuanceService struct {
	IssuanceDeps
	cfg    IssuanceConfig
	tracer trace.Tracer
}

func NewIssuanceService(deps IssuanceDeps, cfg IssuanceConfig) *IssuanceService {
	if deps.IDs == nil {
		deps.IDs = idgen.NanoID{}
	}
	if cfg.Ordering == "" {
		cfg.Ordering = OrderingMintFirst
	}
	return &IssuanceService{IssuanceDeps: deps, cfg: cfg, tracer: otel.Tracer(tracerName)}
}

// PurchaseInput は購入リクエスト
// IdempotencyKey が空の場合はサーバー側でミントノンスを採番する
type PurchaseInput struct {
	EventID        int64
	BuyerID        string
	BuyerAddress   string
	IdempotencyKey string
}

// PurchaseResult は購入結果
// Created が false の場合は同じ冪等キーで発行済みのチケットを返している
type PurchaseResult struct {
	Ticket  *ticket.Ticket
	Created bool
}

// Purchase はチケットを購入する
func (s *IssuanceService) Purchase(ctx context.Context, input PurchaseInput, signer chain.Signer) (*PurchaseResult, error) {
	ctx, span := s.tracer.Start(ctx, "issuance.Purchase", trace.WithAttributes(
		attribute.Int64("event.id", input.EventID),
		attribute.String("issuance.ordering", s.cfg.Ordering),
	))
	defer span.End()

	result, err := s.purchase(ctx, input, signer)
	s.observe(result, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
	}
	return result, err
}

func (s *IssuanceService) purchase(ctx context.Context, input PurchaseInput, signer chain.Signer) (*PurchaseResult, error) {
	nonce := input.IdempotencyKey
	if nonce != "" {
		// 冪等性チェック
		result, err := s.findPrevious(ctx, input, nonce)
		if err != nil || result != nil {
			return result, err
		}
	} else {
		generated, err := s.IDs.NewNonce()
		if err != nil {
			return nil, internalError(err)
		}
		nonce = generated
	}

	// 同じ購入者による同一イベントの同時購入を1件に絞る
	if s.LockManager != nil && input.BuyerID != "" {
		lockStart := time.Now()
		lock, err := s.LockManager.AcquireLock(ctx, redisinfra.PurchaseLockKey(input.EventID, input.BuyerID), s.cfg.LockTTL)
		s.observeLock("acquire", lockStart, err)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockNotAcquired) {
				return nil, newError(KindConflict, ErrPurchaseInProgress, nil)
			}
			return nil, internalError(fmt.Errorf("ロック取得に失敗: %w", err))
		}
		defer func() {
			releaseStart := time.Now()
			err := lock.Release(context.WithoutCancel(ctx))
			s.observeLock("release", releaseStart, err)
		}()
		// ミントと記録が終わるまでロックを保持する
		defer s.keepLockAlive(ctx, lock)()
	}

	ev, err := s.checkEligibility(ctx, input)
	if err != nil {
		return nil, err
	}

	tokenURI := ticket.DefaultTokenURI
	if s.Metadata != nil {
		tokenURI, err = s.Metadata.TokenURI(ctx, ev, input.BuyerID, nonce)
		if err != nil {
			return nil, internalError(fmt.Errorf("メタデータの準備に失敗: %w", err))
		}
	}

	if s.cfg.Ordering == OrderingReserveFirst {
		return s.purchaseReserveFirst(ctx, ev, input, nonce, tokenURI, signer)
	}
	return s.purchaseMintFirst(ctx, ev, input, nonce, tokenURI, signer)
}

// keepLockAlive は TTL の1/3ごとにロックを延長し、停止関数を返す
// 延長に失敗したら以降は延長しない
func (s *IssuanceService) keepLockAlive(ctx context.Context, lock redisinfra.Lock) func() {
	interval := s.cfg.LockTTL / 3
	if interval <= 0 {
		return func() {}
	}
	ctx = context.WithoutCancel(ctx)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				start := time.Now()
				err := lock.Extend(ctx, s.cfg.LockTTL)
				s.observeLock("extend", start, err)
				if err != nil {
					logger.Warn("購入ロックの延長に失敗", zap.Error(err))
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

// findPrevious は同じ冪等キーの購入結果を探す。見つからなければ (nil, nil)
func (s *IssuanceService) findPrevious(ctx context.Context, input PurchaseInput, nonce string) (*PurchaseResult, error) {
	existing, err := s.Tickets.GetByMintNonce(ctx, nonce)
	if err == nil {
		if existing.EventID != input.EventID || existing.OwnerID != input.BuyerID {
			return nil, validationError(ErrIdempotencyKeyReused)
		}
		return &PurchaseResult{Ticket: existing, Created: false}, nil
	}
	if !errors.Is(err, ticket.ErrTicketNotFound) {
		return nil, internalError(fmt.Errorf("冪等性チェックに失敗: %w", err))
	}

	// ミント済みで照合待ちのものは再ミントしない
	entry, err := s.Reconciliations.GetByMintNonce(ctx, nonce)
	if err == nil {
		if entry.Kind == reconciliation.KindOversold {
			return nil, inconsistencyError(ErrOversoldSideEffect, nil)
		}
		return nil, inconsistencyError(ErrCommitDeferred, nil)
	}
	if !errors.Is(err, reconciliation.ErrEntryNotFound) {
		return nil, internalError(fmt.Errorf("冪等性チェックに失敗: %w", err))
	}
	return nil, nil
}

// checkEligibility は正本のスナップショットに対して購入条件を順に検証する
func (s *IssuanceService) checkEligibility(ctx context.Context, input PurchaseInput) (*event.Event, error) {
	ev, err := s.Events.GetByID(ctx, input.EventID)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return nil, eligibilityError(event.ErrEventUnavailable)
		}
		return nil, internalError(fmt.Errorf("イベント取得に失敗: %w", err))
	}
	if ev.IsCancelled {
		return nil, eligibilityError(event.ErrEventUnavailable)
	}
	if ev.IsExpired(s.Clock.Now()) {
		return nil, eligibilityError(event.ErrEventExpired)
	}
	if ev.IsOrganizer(input.BuyerID, input.BuyerAddress) {
		return nil, eligibilityError(event.ErrSelfPurchaseForbidden)
	}
	if input.BuyerID == "" || input.BuyerAddress == "" {
		return nil, unauthenticatedError()
	}

	buyer, err := s.Profiles.GetByID(ctx, input.BuyerID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return nil, unauthenticatedError()
		}
		return nil, internalError(fmt.Errorf("プロフィール取得に失敗: %w", err))
	}
	if !ev.HasCapacity() {
		return nil, eligibilityError(event.ErrSoldOut)
	}
	if !buyer.Meets(ev.ReputationRequired) {
		return nil, eligibilityError(event.ErrInsufficientReputation)
	}

	if _, err := s.Tickets.GetByEventAndOwner(ctx, ev.ID, input.BuyerID); err == nil {
		return nil, eligibilityError(ticket.ErrAlreadyOwned)
	} else if !errors.Is(err, ticket.ErrTicketNotFound) {
		return nil, internalError(fmt.Errorf("所有チケットの確認に失敗: %w", err))
	}
	return ev, nil
}

func (s *IssuanceService) purchaseMintFirst(ctx context.Context, ev *event.Event, input PurchaseInput, nonce, tokenURI string, signer chain.Signer) (*PurchaseResult, error) {
	receipt, err := s.mint(ctx, ev, input, tokenURI, signer)
	if err != nil {
		return nil, mintFailedError(err)
	}

	// ここから先はオンチェーンで確定済みなので、クライアントの切断で中断しない
	ctx = context.WithoutCancel(ctx)
	tk := ticket.NewTicket(ev.ID, input.BuyerID, input.BuyerAddress, tokenURI, receipt.TxHash, nonce, s.Clock.Now())

	tk, err = s.commitWithRetry(ctx, tk, false)
	if err != nil {
		return nil, s.deferCommit(ctx, tk, false, err)
	}
	s.committed(ctx, tk)
	return &PurchaseResult{Ticket: tk, Created: true}, nil
}

func (s *IssuanceService) purchaseReserveFirst(ctx context.Context, ev *event.Event, input PurchaseInput, nonce, tokenURI string, signer chain.Signer) (*PurchaseResult, error) {
	err := transaction.Run(ctx, s.TxManager, func(tx transaction.Tx) error {
		return s.Events.IncrementSoldIfAvailable(ctx, tx, ev.ID)
	})
	if err != nil {
		if errors.Is(err, event.ErrSoldOut) {
			return nil, eligibilityError(event.ErrSoldOut)
		}
		return nil, internalError(fmt.Errorf("販売枠の確保に失敗: %w", err))
	}

	receipt, err := s.mint(ctx, ev, input, tokenURI, signer)
	if err != nil {
		_ = s.release(context.WithoutCancel(ctx), ev, input, nonce, err)
		return nil, mintFailedError(err)
	}

	ctx = context.WithoutCancel(ctx)
	tk := ticket.NewTicket(ev.ID, input.BuyerID, input.BuyerAddress, tokenURI, receipt.TxHash, nonce, s.Clock.Now())

	tk, err = s.commitWithRetry(ctx, tk, true)
	if err != nil {
		// 記録できない購入のために確保した枠は戻す
		reserved := true
		if !retryableCommitError(err) && s.release(ctx, ev, input, nonce, err) {
			reserved = false
		}
		return nil, s.deferCommit(ctx, tk, reserved, err)
	}
	s.committed(ctx, tk)
	return &PurchaseResult{Ticket: tk, Created: true}, nil
}

// mint はタイムアウト付きでミントを実行する
func (s *IssuanceService) mint(ctx context.Context, ev *event.Event, input PurchaseInput, tokenURI string, signer chain.Signer) (*chain.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.MintTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "chain.MintTicket", trace.WithAttributes(
		attribute.Int64("event.id", ev.ID),
		attribute.String("ticket.token_uri", tokenURI),
	))
	defer span.End()

	start := time.Now()
	receipt, err := s.Minter.MintTicket(ctx, signer, chain.MintRequest{
		To:       input.BuyerAddress,
		EventID:  ev.ID,
		TokenURI: tokenURI,
		Value:    big.NewInt(ev.PriceWei),
	})
	status := "success"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, "mint failed")
		fields := []zap.Field{
			zap.Int64("event_id", ev.ID),
			zap.String("buyer_id", input.BuyerID),
			zap.Error(err),
		}
		var unconfirmed *chain.UnconfirmedError
		if errors.As(err, &unconfirmed) {
			span.SetAttributes(attribute.String("chain.tx_hash", unconfirmed.TxHash))
			fields = append(fields, zap.String("tx_hash", unconfirmed.TxHash))
		}
		logger.Warn("ミントに失敗", fields...)
	} else {
		span.SetAttributes(attribute.String("chain.tx_hash", receipt.TxHash))
	}
	if s.Metrics != nil {
		s.Metrics.ChainCallDuration.WithLabelValues("mint_ticket", status).Observe(time.Since(start).Seconds())
	}
	return receipt, err
}

// commit はチケットの記録と販売数・ミント数の更新を1トランザクションで行う
// reserved が true の場合は販売枠を確保済みなので販売数は更新しない
func (s *IssuanceService) commit(ctx context.Context, tk *ticket.Ticket, reserved bool) error {
	return transaction.Run(ctx, s.TxManager, func(tx transaction.Tx) error {
		if !reserved {
			if err := s.Events.IncrementSoldIfAvailable(ctx, tx, tk.EventID); err != nil {
				return err
			}
		}
		if err := s.Tickets.Create(ctx, tx, tk); err != nil {
			return err
		}
		return s.Profiles.IncrementTicketsMinted(ctx, tx, tk.OwnerID)
	})
}

// commitWithRetry は一時的な失敗に限り commit を再試行する
// 同じノンスで同じミントが記録済みならそのチケットを返す
// 別のミントで記録済みなら ErrDuplicateMint を返す
func (s *IssuanceService) commitWithRetry(ctx context.Context, tk *ticket.Ticket, reserved bool) (*ticket.Ticket, error) {
	var err error
	for attempt := 0; attempt <= s.cfg.CommitRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.cfg.CommitBackoff * time.Duration(attempt))
		}
		err = s.commit(ctx, tk, reserved)
		if err == nil {
			return tk, nil
		}
		if errors.Is(err, ticket.ErrDuplicateNonce) {
			if existing, getErr := s.Tickets.GetByMintNonce(ctx, tk.MintNonce); getErr == nil {
				if existing.TxHash == tk.TxHash {
					return existing, nil
				}
				return tk, fmt.Errorf("%w: 記録済み %s", ErrDuplicateMint, existing.TxHash)
			}
		}
		if !retryableCommitError(err) {
			break
		}
		logger.Warn("チケット記録に失敗、再試行します",
			zap.Int64("event_id", tk.EventID),
			zap.String("mint_nonce", tk.MintNonce),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return tk, err
}

func retryableCommitError(err error) bool {
	return !errors.Is(err, event.ErrSoldOut) &&
		!errors.Is(err, ticket.ErrAlreadyOwned) &&
		!errors.Is(err, ticket.ErrDuplicateNonce) &&
		!errors.Is(err, ErrDuplicateMint)
}

// deferCommit はミント済みで記録できなかった購入を照合キューに積み、不整合エラーを返す
func (s *IssuanceService) deferCommit(ctx context.Context, tk *ticket.Ticket, reserved bool, cause error) error {
	kind := reconciliation.KindCommitFailed
	reason := ErrCommitDeferred
	nonce := tk.MintNonce
	switch {
	case errors.Is(cause, event.ErrSoldOut):
		kind = reconciliation.KindOversold
		reason = ErrOversoldSideEffect
	case errors.Is(cause, ErrDuplicateMint):
		// 元のノンスは記録済みのチケットが使っている
		kind = reconciliation.KindDuplicateMint
		reason = ErrDuplicateMint
		nonce = tk.MintNonce + duplicateNonceSuffix
	}

	entry := reconciliation.NewEntry(kind, tk.EventID, tk.OwnerID, tk.OwnerAddress, tk.TxHash, nonce, tk.TokenURI, cause.Error(), s.Clock.Now())
	entry.Reserved = reserved
	if !retryableCommitError(cause) {
		entry.Status = reconciliation.StatusManual
	}
	s.enqueue(ctx, entry)

	logger.Error("ミント済みチケットを記録できませんでした",
		zap.String("kind", string(kind)),
		zap.Int64("event_id", tk.EventID),
		zap.String("buyer_id", tk.OwnerID),
		zap.String("tx_hash", tk.TxHash),
		zap.String("mint_nonce", tk.MintNonce),
		zap.Error(cause),
	)
	return inconsistencyError(reason, cause)
}

// release は reserve_first で確保した販売枠を戻す。戻せたら true
// 戻せなかった場合は照合キューに積む
func (s *IssuanceService) release(ctx context.Context, ev *event.Event, input PurchaseInput, nonce string, cause error) bool {
	err := transaction.Run(ctx, s.TxManager, func(tx transaction.Tx) error {
		return s.Events.DecrementSold(ctx, tx, ev.ID)
	})
	if err == nil {
		return true
	}
	logger.Error("販売枠の返却に失敗",
		zap.Int64("event_id", ev.ID),
		zap.String("buyer_id", input.BuyerID),
		zap.Error(err),
	)
	detail := fmt.Sprintf("cause: %v / release: %v", cause, err)
	s.enqueue(ctx, reconciliation.NewEntry(reconciliation.KindReleaseFailed, ev.ID, input.BuyerID, input.BuyerAddress, "", nonce+":release", "", detail, s.Clock.Now()))
	return false
}

func (s *IssuanceService) enqueue(ctx context.Context, entry *reconciliation.Entry) {
	if err := s.Reconciliations.Create(ctx, entry); err != nil {
		// 照合キューにも書けない場合はログが唯一の記録になる
		logger.Error("照合エントリの登録に失敗",
			zap.String("kind", string(entry.Kind)),
			zap.Int64("event_id", entry.EventID),
			zap.String("buyer_id", entry.BuyerID),
			zap.String("buyer_address", entry.BuyerAddress),
			zap.String("tx_hash", entry.TxHash),
			zap.String("mint_nonce", entry.MintNonce),
			zap.String("token_uri", entry.TokenURI),
			zap.Error(err),
		)
		return
	}
	if s.Metrics != nil {
		s.Metrics.ReconciliationEnqueued.WithLabelValues(string(entry.Kind)).Inc()
	}
}

// committed は記録後の通知を行う
func (s *IssuanceService) committed(ctx context.Context, tk *ticket.Ticket) {
	now := s.Clock.Now()
	publish(ctx, s.Publisher, change.New(change.EntityTicket, change.KindInsert, tk.ID, now))
	publish(ctx, s.Publisher, change.New(change.EntityEvent, change.KindUpdate, eventKey(tk.EventID), now))
	if s.Ledger != nil {
		s.Ledger.Notify(ctx, tk.OwnerID)
	}
	logger.Info("チケットを発行",
		zap.String("ticket_id", tk.ID),
		zap.Int64("event_id", tk.EventID),
		zap.String("buyer_id", tk.OwnerID),
		zap.String("tx_hash", tk.TxHash),
	)
}

// Recommit は照合エントリの記録を再実行する
// 同じノンスのチケットが既にあれば何もしない
func (s *IssuanceService) Recommit(ctx context.Context, entry *reconciliation.Entry) error {
	if _, err := s.Tickets.GetByMintNonce(ctx, entry.MintNonce); err == nil {
		return nil
	} else if !errors.Is(err, ticket.ErrTicketNotFound) {
		return fmt.Errorf("チケット確認に失敗: %w", err)
	}

	tk := ticket.NewTicket(entry.EventID, entry.BuyerID, entry.BuyerAddress, entry.TokenURI, entry.TxHash, entry.MintNonce, s.Clock.Now())
	if err := s.commit(ctx, tk, entry.Reserved); err != nil {
		if errors.Is(err, ticket.ErrDuplicateNonce) {
			return nil
		}
		return err
	}
	s.committed(ctx, tk)
	return nil
}

func (s *IssuanceService) observe(result *PurchaseResult, err error) {
	if s.Metrics == nil {
		return
	}
	status := metrics.PurchaseSuccess
	switch {
	case err == nil && !result.Created:
		status = metrics.PurchaseIdempotent
	case err == nil:
	case IsKind(err, KindEligibility), IsKind(err, KindUnauthenticated), IsKind(err, KindValidation):
		status = metrics.PurchaseIneligible
	case IsKind(err, KindMintFailed):
		status = metrics.PurchaseMintFailed
	case IsKind(err, KindCommitInconsistency):
		status = metrics.PurchaseInconsistent
	case IsKind(err, KindConflict):
		status = metrics.PurchaseLockFailed
	default:
		status = metrics.PurchaseError
	}
	s.Metrics.PurchasesTotal.WithLabelValues(status).Inc()
}

func (s *IssuanceService) observeLock(op string, start time.Time, err error) {
	if s.Metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	s.Metrics.DistributedLockDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}
