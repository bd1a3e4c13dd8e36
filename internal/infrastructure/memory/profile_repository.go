package memory

import (
	"context"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
)

// ProfileRepository はプロフィールリポジトリのインメモリ実装
type ProfileRepository struct {
	store *Store
}

func NewProfileRepository(s *Store) *ProfileRepository {
	return &ProfileRepository{store: s}
}

func (r *ProfileRepository) CreateIfNotExists(ctx context.Context, p *profile.Profile) error {
	return r.store.write(nil, func() (func(), error) {
		if _, ok := r.store.profiles[p.ID]; ok {
			return nil, nil
		}
		cp := *p
		r.store.profiles[p.ID] = &cp
		return nil, nil
	})
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*profile.Profile, error) {
	var out *profile.Profile
	r.store.read(func() {
		if p, ok := r.store.profiles[id]; ok {
			cp := *p
			out = &cp
		}
	})
	if out == nil {
		return nil, profile.ErrProfileNotFound
	}
	return out, nil
}

func (r *ProfileRepository) AddReputation(ctx context.Context, tx transaction.Tx, id string, delta int) (int, error) {
	var score int
	err := r.store.write(tx, func() (func(), error) {
		p, ok := r.store.profiles[id]
		if !ok {
			return nil, profile.ErrProfileNotFound
		}
		prev := p.Reputation
		p.Reputation = profile.ApplyDelta(p.Reputation, delta)
		score = p.Reputation
		return func() { p.Reputation = prev }, nil
	})
	return score, err
}

func (r *ProfileRepository) IncrementTicketsMinted(ctx context.Context, tx transaction.Tx, id string) error {
	return r.store.write(tx, func() (func(), error) {
		p, ok := r.store.profiles[id]
		if !ok {
			return nil, profile.ErrProfileNotFound
		}
		p.TicketsMinted++
		return func() { p.TicketsMinted-- }, nil
	})
}
