package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/ticket"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
)

// TicketRepository はチケットリポジトリのインメモリ実装
type TicketRepository struct {
	store *Store
}

func NewTicketRepository(s *Store) *TicketRepository {
	return &TicketRepository{store: s}
}

func (r *TicketRepository) Create(ctx context.Context, tx transaction.Tx, t *ticket.Ticket) error {
	return r.store.write(tx, func() (func(), error) {
		for _, existing := range r.store.tickets {
			if existing.MintNonce == t.MintNonce {
				return nil, ticket.ErrDuplicateNonce
			}
			if existing.EventID == t.EventID && existing.OwnerID == t.OwnerID {
				return nil, ticket.ErrAlreadyOwned
			}
		}
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		cp := *t
		r.store.tickets[t.ID] = &cp
		id := t.ID
		return func() { delete(r.store.tickets, id) }, nil
	})
}

func (r *TicketRepository) find(match func(*ticket.Ticket) bool) (*ticket.Ticket, error) {
	var out *ticket.Ticket
	r.store.read(func() {
		for _, t := range r.store.tickets {
			if match(t) {
				cp := *t
				out = &cp
				return
			}
		}
	})
	if out == nil {
		return nil, ticket.ErrTicketNotFound
	}
	return out, nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*ticket.Ticket, error) {
	return r.find(func(t *ticket.Ticket) bool { return t.ID == id })
}

func (r *TicketRepository) GetByMintNonce(ctx context.Context, nonce string) (*ticket.Ticket, error) {
	return r.find(func(t *ticket.Ticket) bool { return t.MintNonce == nonce })
}

func (r *TicketRepository) GetByEventAndOwner(ctx context.Context, eventID int64, ownerID string) (*ticket.Ticket, error) {
	return r.find(func(t *ticket.Ticket) bool { return t.EventID == eventID && t.OwnerID == ownerID })
}

func (r *TicketRepository) ListByOwner(ctx context.Context, ownerID string) ([]*ticket.Ticket, error) {
	out := []*ticket.Ticket{}
	r.store.read(func() {
		for _, t := range r.store.tickets {
			if t.OwnerID == ownerID {
				cp := *t
				out = append(out, &cp)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *TicketRepository) ListPenaltyCandidates(ctx context.Context, before time.Time, limit int) ([]*ticket.Ticket, error) {
	out := []*ticket.Ticket{}
	r.store.read(func() {
		for _, t := range r.store.tickets {
			if t.Attended || t.ReputationDecreased {
				continue
			}
			e, ok := r.store.events[t.EventID]
			if !ok || e.IsCancelled || !e.Date.Before(before) {
				continue
			}
			cp := *t
			out = append(out, &cp)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *TicketRepository) ClaimReputationDecrease(ctx context.Context, tx transaction.Tx, id string) (bool, error) {
	claimed := false
	err := r.store.write(tx, func() (func(), error) {
		t, ok := r.store.tickets[id]
		if !ok {
			return nil, ticket.ErrTicketNotFound
		}
		if t.ReputationDecreased {
			return nil, nil
		}
		t.ReputationDecreased = true
		claimed = true
		return func() { t.ReputationDecreased = false }, nil
	})
	return claimed, err
}

// MarkAttended は出席を記録する（チェックインの連携先とテスト用）
func (r *TicketRepository) MarkAttended(ctx context.Context, id string) error {
	return r.store.write(nil, func() (func(), error) {
		t, ok := r.store.tickets[id]
		if !ok {
			return nil, ticket.ErrTicketNotFound
		}
		t.Attended = true
		return nil, nil
	})
}
