package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/reconciliation"
)

// ReconciliationRepository は照合エントリのインメモリ実装
type ReconciliationRepository struct {
	store *Store
}

func NewReconciliationRepository(s *Store) *ReconciliationRepository {
	return &ReconciliationRepository{store: s}
}

func (r *ReconciliationRepository) Create(ctx context.Context, e *reconciliation.Entry) error {
	return r.store.write(nil, func() (func(), error) {
		for _, existing := range r.store.entries {
			if existing.MintNonce == e.MintNonce {
				return nil, reconciliation.ErrDuplicateNonce
			}
		}
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		cp := *e
		r.store.entries[e.ID] = &cp
		return nil, nil
	})
}

func (r *ReconciliationRepository) find(match func(*reconciliation.Entry) bool) (*reconciliation.Entry, error) {
	var out *reconciliation.Entry
	r.store.read(func() {
		for _, e := range r.store.entries {
			if match(e) {
				cp := *e
				out = &cp
				return
			}
		}
	})
	if out == nil {
		return nil, reconciliation.ErrEntryNotFound
	}
	return out, nil
}

func (r *ReconciliationRepository) GetByID(ctx context.Context, id string) (*reconciliation.Entry, error) {
	return r.find(func(e *reconciliation.Entry) bool { return e.ID == id })
}

func (r *ReconciliationRepository) GetByMintNonce(ctx context.Context, nonce string) (*reconciliation.Entry, error) {
	return r.find(func(e *reconciliation.Entry) bool { return e.MintNonce == nonce })
}

func (r *ReconciliationRepository) ListOpen(ctx context.Context, limit int) ([]*reconciliation.Entry, error) {
	return r.list(func(e *reconciliation.Entry) bool { return e.Status != reconciliation.StatusResolved }, limit)
}

func (r *ReconciliationRepository) ListRetryable(ctx context.Context, limit int) ([]*reconciliation.Entry, error) {
	return r.list(func(e *reconciliation.Entry) bool { return e.Retryable() }, limit)
}

func (r *ReconciliationRepository) CountOpenByKind(ctx context.Context) (map[reconciliation.Kind]int, error) {
	out := map[reconciliation.Kind]int{}
	r.store.read(func() {
		for _, e := range r.store.entries {
			if e.Status != reconciliation.StatusResolved {
				out[e.Kind]++
			}
		}
	})
	return out, nil
}

func (r *ReconciliationRepository) list(match func(*reconciliation.Entry) bool, limit int) ([]*reconciliation.Entry, error) {
	out := []*reconciliation.Entry{}
	r.store.read(func() {
		for _, e := range r.store.entries {
			if match(e) {
				cp := *e
				out = append(out, &cp)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ReconciliationRepository) Update(ctx context.Context, e *reconciliation.Entry) error {
	return r.store.write(nil, func() (func(), error) {
		if _, ok := r.store.entries[e.ID]; !ok {
			return nil, reconciliation.ErrEntryNotFound
		}
		cp := *e
		r.store.entries[e.ID] = &cp
		return nil, nil
	})
}
