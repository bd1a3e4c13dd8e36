package application

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/clock"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/metrics"
)

// EventService はイベントの作成と参照を扱う
type EventService struct {
	txManager       transaction.Manager
	eventRepo       event.Repository
	profileRepo     profile.Repository
	reconciliations reconciliation.Repository
	minter          chain.Minter
	ledger          *ReputationLedger
	publisher       change.Publisher
	clock           clock.Clock
	metrics         *metrics.Metrics
	chainTimeout    time.Duration
	tracer          trace.Tracer
}

func NewEventService(tm transaction.Manager, er event.Repository, pr profile.Repository, rr reconciliation.Repository, minter chain.Minter, ledger *ReputationLedger, pub change.Publisher, clk clock.Clock, m *metrics.Metrics, chainTimeout time.Duration) *EventService {
	return &EventService{
		txManager:       tm,
		eventRepo:       er,
		profileRepo:     pr,
		reconciliations: rr,
		minter:          minter,
		ledger:          ledger,
		publisher:       pub,
		clock:           clk,
		metrics:         m,
		chainTimeout:    chainTimeout,
		tracer:          otel.Tracer(tracerName),
	}
}

type CreateEventInput struct {
	Name               string
	Description        string
	Location           string
	Date               time.Time
	PriceWei           int64
	MaxTickets         int
	ReputationRequired int
	OrganizerID        string
	OrganizerAddress   string
}

// CreateEvent はオンチェーンにイベントを作成してから記録し、主催者にボーナスを付与する
func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput, signer chain.Signer) (*event.Event, error) {
	if input.OrganizerID == "" {
		return nil, unauthenticatedError()
	}
	e := event.NewEvent(input.Name, input.Description, input.Location, input.Date, input.PriceWei,
		input.MaxTickets, input.ReputationRequired, input.OrganizerID, input.OrganizerAddress, s.clock.Now())
	if err := e.Validate(); err != nil {
		return nil, validationError(err)
	}
	if _, err := s.profileRepo.GetByID(ctx, input.OrganizerID); err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return nil, unauthenticatedError()
		}
		return nil, internalError(fmt.Errorf("プロフィール取得に失敗: %w", err))
	}

	receipt, err := s.createOnChain(ctx, e, signer)
	if err != nil {
		return nil, mintFailedError(err)
	}

	ctx = context.WithoutCancel(ctx)
	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		if err := s.eventRepo.Create(ctx, tx, e); err != nil {
			return err
		}
		_, err := s.ledger.ApplyTx(ctx, tx, e.OrganizerID, profile.BonusEventCreated)
		return err
	})
	if err != nil {
		entry := reconciliation.NewEntry(reconciliation.KindEventCommitFailed, e.ID, e.OrganizerID, e.OrganizerAddress,
			receipt.TxHash, e.MetadataHash, "", err.Error(), s.clock.Now())
		if qErr := s.reconciliations.Create(ctx, entry); qErr != nil {
			logger.Error("照合エントリの登録に失敗", zap.Int64("event_id", e.ID), zap.Error(qErr))
		} else if s.metrics != nil {
			s.metrics.ReconciliationEnqueued.WithLabelValues(string(entry.Kind)).Inc()
		}
		logger.Error("オンチェーン作成済みのイベントを記録できませんでした",
			zap.Int64("event_id", e.ID),
			zap.String("tx_hash", receipt.TxHash),
			zap.Error(err),
		)
		return nil, inconsistencyError(ErrCommitDeferred, err)
	}

	s.ledger.Notify(ctx, e.OrganizerID)
	publish(ctx, s.publisher, change.New(change.EntityEvent, change.KindInsert, eventKey(e.ID), s.clock.Now()))
	logger.Info("イベントを作成",
		zap.Int64("event_id", e.ID),
		zap.String("organizer_id", e.OrganizerID),
		zap.Int("max_tickets", e.MaxTickets),
	)
	return e, nil
}

func (s *EventService) createOnChain(ctx context.Context, e *event.Event, signer chain.Signer) (*chain.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.chainTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "chain.CreateEvent", trace.WithAttributes(attribute.Int64("event.id", e.ID)))
	defer span.End()

	start := time.Now()
	receipt, err := s.minter.CreateEvent(ctx, signer, e.ID, e.MetadataHash, e.MaxTickets)
	status := "success"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, "create event failed")
	}
	if s.metrics != nil {
		s.metrics.ChainCallDuration.WithLabelValues("create_event", status).Observe(time.Since(start).Seconds())
	}
	return receipt, err
}

func (s *EventService) GetEvent(ctx context.Context, id int64) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return nil, notFoundError(err)
		}
		return nil, internalError(err)
	}
	return e, nil
}

func (s *EventService) ListEvents(ctx context.Context, limit, offset int) ([]*event.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	events, err := s.eventRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, internalError(err)
	}
	return events, nil
}

// CancelEvent はイベントを中止する。主催者のみ実行でき、取り消しはできない
func (s *EventService) CancelEvent(ctx context.Context, id int64, by string) (*event.Event, error) {
	if by == "" {
		return nil, unauthenticatedError()
	}
	e, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.Cancel(by, s.clock.Now()); err != nil {
		if errors.Is(err, event.ErrNotOrganizer) {
			return nil, newError(KindForbidden, err, nil)
		}
		return nil, newError(KindConflict, err, nil)
	}
	if err := s.eventRepo.MarkCancelled(ctx, id); err != nil {
		if errors.Is(err, event.ErrEventAlreadyCancelled) {
			return nil, newError(KindConflict, err, nil)
		}
		return nil, internalError(fmt.Errorf("イベント中止に失敗: %w", err))
	}
	publish(ctx, s.publisher, change.New(change.EntityEvent, change.KindUpdate, eventKey(id), s.clock.Now()))
	return e, nil
}
