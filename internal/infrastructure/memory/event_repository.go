package memory

import (
	"context"
	"sort"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
)

// EventRepository はイベントリポジトリのインメモリ実装
type EventRepository struct {
	store *Store
}

func NewEventRepository(s *Store) *EventRepository {
	return &EventRepository{store: s}
}

func (r *EventRepository) Create(ctx context.Context, tx transaction.Tx, e *event.Event) error {
	return r.store.write(tx, func() (func(), error) {
		if _, ok := r.store.events[e.ID]; ok {
			return nil, event.ErrEventAlreadyExists
		}
		cp := *e
		r.store.events[e.ID] = &cp
		return func() { delete(r.store.events, e.ID) }, nil
	})
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	var out *event.Event
	r.store.read(func() {
		if e, ok := r.store.events[id]; ok {
			cp := *e
			out = &cp
		}
	})
	if out == nil {
		return nil, event.ErrEventNotFound
	}
	return out, nil
}

func (r *EventRepository) List(ctx context.Context, limit, offset int) ([]*event.Event, error) {
	var all []*event.Event
	r.store.read(func() {
		for _, e := range r.store.events {
			cp := *e
			all = append(all, &cp)
		}
	})
	sort.Slice(all, func(i, j int) bool {
		if all[i].Date.Equal(all[j].Date) {
			return all[i].ID < all[j].ID
		}
		return all[i].Date.Before(all[j].Date)
	})
	if offset >= len(all) {
		return []*event.Event{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *EventRepository) IncrementSoldIfAvailable(ctx context.Context, tx transaction.Tx, id int64) error {
	return r.store.write(tx, func() (func(), error) {
		e, ok := r.store.events[id]
		if !ok {
			return nil, event.ErrEventNotFound
		}
		if e.TicketsSold >= e.MaxTickets {
			return nil, event.ErrSoldOut
		}
		e.TicketsSold++
		return func() { e.TicketsSold-- }, nil
	})
}

func (r *EventRepository) DecrementSold(ctx context.Context, tx transaction.Tx, id int64) error {
	return r.store.write(tx, func() (func(), error) {
		e, ok := r.store.events[id]
		if !ok {
			return nil, event.ErrEventNotFound
		}
		if e.TicketsSold == 0 {
			return nil, nil
		}
		e.TicketsSold--
		return func() { e.TicketsSold++ }, nil
	})
}

func (r *EventRepository) MarkCancelled(ctx context.Context, id int64) error {
	return r.store.write(nil, func() (func(), error) {
		e, ok := r.store.events[id]
		if !ok {
			return nil, event.ErrEventNotFound
		}
		if e.IsCancelled {
			return nil, event.ErrEventAlreadyCancelled
		}
		e.IsCancelled = true
		return nil, nil
	})
}
