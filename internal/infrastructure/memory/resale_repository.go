package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/resale"
)

// ResaleRepository は再販出品リポジトリのインメモリ実装
type ResaleRepository struct {
	store *Store
}

func NewResaleRepository(s *Store) *ResaleRepository {
	return &ResaleRepository{store: s}
}

func (r *ResaleRepository) Create(ctx context.Context, l *resale.Listing) error {
	return r.store.write(nil, func() (func(), error) {
		for _, existing := range r.store.listings {
			if existing.EventID == l.EventID && existing.SellerID == l.SellerID && !existing.IsSold {
				return nil, resale.ErrAlreadyListed
			}
		}
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		cp := *l
		r.store.listings[l.ID] = &cp
		return nil, nil
	})
}

func (r *ResaleRepository) GetActive(ctx context.Context, eventID int64, sellerID string) (*resale.Listing, error) {
	var out *resale.Listing
	r.store.read(func() {
		for _, l := range r.store.listings {
			if l.EventID == eventID && l.SellerID == sellerID && !l.IsSold {
				cp := *l
				out = &cp
				return
			}
		}
	})
	if out == nil {
		return nil, resale.ErrListingNotFound
	}
	return out, nil
}

func (r *ResaleRepository) ListActiveBySeller(ctx context.Context, sellerID string) ([]*resale.Listing, error) {
	out := []*resale.Listing{}
	r.store.read(func() {
		for _, l := range r.store.listings {
			if l.SellerID == sellerID && !l.IsSold {
				cp := *l
				out = append(out, &cp)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ResaleRepository) DeleteActive(ctx context.Context, eventID int64, sellerID string) error {
	return r.store.write(nil, func() (func(), error) {
		for id, l := range r.store.listings {
			if l.EventID == eventID && l.SellerID == sellerID && !l.IsSold {
				delete(r.store.listings, id)
				return nil, nil
			}
		}
		return nil, resale.ErrListingNotFound
	})
}
