package application

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/resale"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/ticket"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
)

// TicketFilter は所有チケット一覧の絞り込み
type TicketFilter string

const (
	TicketFilterAll      TicketFilter = "all"
	TicketFilterUpcoming TicketFilter = "upcoming"
	TicketFilterPast     TicketFilter = "past"
)

// ErrInvalidTicketFilter は不正な絞り込み条件を表す
var ErrInvalidTicketFilter = errors.New("filter は all, upcoming, past のいずれかです")

// TicketView は所有チケットと表示用の状態
type TicketView struct {
	Ticket    *ticket.Ticket
	Event     *event.Event
	Expired   bool
	Missed    bool
	OnResale  bool
	CanResale bool
}

// TicketService は所有チケットの参照を扱う
// 参照のたびに開催状況を評価し、不参加のペナルティを適用する
type TicketService struct {
	ticketRepo  ticket.Repository
	eventRepo   event.Repository
	listingRepo resale.Repository
	monitor     *LifecycleMonitor
}

func NewTicketService(tr ticket.Repository, er event.Repository, lr resale.Repository, monitor *LifecycleMonitor) *TicketService {
	return &TicketService{ticketRepo: tr, eventRepo: er, listingRepo: lr, monitor: monitor}
}

// MyTickets は利用者の所有チケットを開催日時の近い順に返す
func (s *TicketService) MyTickets(ctx context.Context, userID string, filter TicketFilter) ([]*TicketView, error) {
	if userID == "" {
		return nil, unauthenticatedError()
	}
	switch filter {
	case "":
		filter = TicketFilterAll
	case TicketFilterAll, TicketFilterUpcoming, TicketFilterPast:
	default:
		return nil, validationError(ErrInvalidTicketFilter)
	}

	tickets, err := s.ticketRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, internalError(fmt.Errorf("チケット取得に失敗: %w", err))
	}
	listings, err := s.listingRepo.ListActiveBySeller(ctx, userID)
	if err != nil {
		return nil, internalError(fmt.Errorf("出品取得に失敗: %w", err))
	}
	listed := make(map[int64]bool, len(listings))
	for _, l := range listings {
		listed[l.EventID] = true
	}

	views := make([]*TicketView, 0, len(tickets))
	for _, tk := range tickets {
		ev, err := s.eventRepo.GetByID(ctx, tk.EventID)
		if err != nil {
			if errors.Is(err, event.ErrEventNotFound) {
				logger.Warn("チケットのイベントが見つかりません", zap.String("ticket_id", tk.ID), zap.Int64("event_id", tk.EventID))
				continue
			}
			return nil, internalError(fmt.Errorf("イベント取得に失敗: %w", err))
		}

		// ペナルティの失敗は一覧表示を妨げない。フラグが立たないので次回再試行される
		if _, err := s.monitor.Apply(ctx, ev, tk); err != nil {
			logger.Error("不参加ペナルティの適用に失敗", zap.String("ticket_id", tk.ID), zap.Error(err))
		}

		st := s.monitor.Evaluate(ev, tk)
		if (filter == TicketFilterUpcoming && st.Expired) || (filter == TicketFilterPast && !st.Expired) {
			continue
		}
		views = append(views, &TicketView{
			Ticket:    tk,
			Event:     ev,
			Expired:   st.Expired,
			Missed:    st.Missed,
			OnResale:  listed[ev.ID],
			CanResale: !ev.IsCancelled && !st.Expired && !tk.Attended && !listed[ev.ID],
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Event.Date.Before(views[j].Event.Date)
	})
	return views, nil
}
