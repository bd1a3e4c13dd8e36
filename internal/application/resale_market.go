package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/change"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/resale"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/ticket"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/clock"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/metrics"
)

// ResaleMarket は再販出品の唯一の書き込み口
// 出品の売買成立（所有権の移転）は扱わない
type ResaleMarket struct {
	listingRepo resale.Repository
	ticketRepo  ticket.Repository
	eventRepo   event.Repository
	publisher   change.Publisher
	clock       clock.Clock
	metrics     *metrics.Metrics
}

func NewResaleMarket(lr resale.Repository, tr ticket.Repository, er event.Repository, pub change.Publisher, clk clock.Clock, m *metrics.Metrics) *ResaleMarket {
	return &ResaleMarket{listingRepo: lr, ticketRepo: tr, eventRepo: er, publisher: pub, clock: clk, metrics: m}
}

// List は所有チケットを出品する。価格は出品時点のイベント価格で固定する
func (m *ResaleMarket) List(ctx context.Context, eventID int64, sellerID string) (*resale.Listing, error) {
	l, err := m.list(ctx, eventID, sellerID)
	m.observe("list", err)
	return l, err
}

func (m *ResaleMarket) list(ctx context.Context, eventID int64, sellerID string) (*resale.Listing, error) {
	if sellerID == "" {
		return nil, unauthenticatedError()
	}
	tk, err := m.ticketRepo.GetByEventAndOwner(ctx, eventID, sellerID)
	if err != nil {
		if errors.Is(err, ticket.ErrTicketNotFound) {
			return nil, notFoundError(err)
		}
		return nil, internalError(fmt.Errorf("チケット取得に失敗: %w", err))
	}
	ev, err := m.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, event.ErrEventNotFound) {
			return nil, notFoundError(err)
		}
		return nil, internalError(fmt.Errorf("イベント取得に失敗: %w", err))
	}
	if ev.IsCancelled || ev.IsExpired(m.clock.Now()) || tk.Attended {
		return nil, newError(KindNotEligible, resale.ErrNotEligible, nil)
	}

	if _, err := m.listingRepo.GetActive(ctx, eventID, sellerID); err == nil {
		return nil, newError(KindAlreadyListed, resale.ErrAlreadyListed, nil)
	} else if !errors.Is(err, resale.ErrListingNotFound) {
		return nil, internalError(fmt.Errorf("出品確認に失敗: %w", err))
	}

	l := resale.NewListing(ev.ID, sellerID, tk.OwnerAddress, ev.PriceWei, m.clock.Now())
	if err := m.listingRepo.Create(ctx, l); err != nil {
		// 事前確認をすり抜けた同時出品はストアの一意制約で弾かれる
		if errors.Is(err, resale.ErrAlreadyListed) {
			return nil, newError(KindAlreadyListed, err, nil)
		}
		return nil, internalError(fmt.Errorf("出品に失敗: %w", err))
	}

	publish(ctx, m.publisher, change.New(change.EntityListing, change.KindInsert, l.ID, m.clock.Now()))
	logger.Info("チケットを出品", zap.String("listing_id", l.ID), zap.Int64("event_id", eventID), zap.String("seller_id", sellerID))
	return l, nil
}

// Cancel は有効な出品を取り下げる
func (m *ResaleMarket) Cancel(ctx context.Context, eventID int64, sellerID string) error {
	err := m.cancel(ctx, eventID, sellerID)
	m.observe("cancel", err)
	return err
}

func (m *ResaleMarket) cancel(ctx context.Context, eventID int64, sellerID string) error {
	if sellerID == "" {
		return unauthenticatedError()
	}
	active, err := m.listingRepo.GetActive(ctx, eventID, sellerID)
	if err != nil {
		if errors.Is(err, resale.ErrListingNotFound) {
			return notFoundError(err)
		}
		return internalError(fmt.Errorf("出品取得に失敗: %w", err))
	}
	if err := m.listingRepo.DeleteActive(ctx, eventID, sellerID); err != nil {
		if errors.Is(err, resale.ErrListingNotFound) {
			return notFoundError(err)
		}
		return internalError(fmt.Errorf("出品取り下げに失敗: %w", err))
	}
	publish(ctx, m.publisher, change.New(change.EntityListing, change.KindDelete, active.ID, m.clock.Now()))
	return nil
}

// ActiveListings は出品者の有効な出品一覧を返す
func (m *ResaleMarket) ActiveListings(ctx context.Context, sellerID string) ([]*resale.Listing, error) {
	if sellerID == "" {
		return nil, unauthenticatedError()
	}
	listings, err := m.listingRepo.ListActiveBySeller(ctx, sellerID)
	if err != nil {
		return nil, internalError(err)
	}
	return listings, nil
}

func (m *ResaleMarket) observe(op string, err error) {
	if m.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = string(KindOf(err))
	}
	m.metrics.ResaleOperationsTotal.WithLabelValues(op, status).Inc()
}
