package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/resale"
)

const listingColumns = `id, event_id, seller_id, seller_address, price_wei, is_sold, created_at`

type listingRow struct {
	ID            string    `db:"id"`
	EventID       int64     `db:"event_id"`
	SellerID      string    `db:"seller_id"`
	SellerAddress string    `db:"seller_address"`
	PriceWei      int64     `db:"price_wei"`
	IsSold        bool      `db:"is_sold"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r *listingRow) toEntity() *resale.Listing {
	return &resale.Listing{
		ID:            r.ID,
		EventID:       r.EventID,
		SellerID:      r.SellerID,
		SellerAddress: r.SellerAddress,
		PriceWei:      r.PriceWei,
		IsSold:        r.IsSold,
		CreatedAt:     r.CreatedAt,
	}
}

// ResaleRepository は再販出品リポジトリのPostgreSQL実装
// 有効な出品の一意性は部分ユニークインデックスで保証する
type ResaleRepository struct{ db *sqlx.DB }

func NewResaleRepository(db *sqlx.DB) *ResaleRepository { return &ResaleRepository{db: db} }

func (r *ResaleRepository) Create(ctx context.Context, l *resale.Listing) error {
	query := `
		INSERT INTO resale_listings (event_id, seller_id, seller_address, price_wei, is_sold, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, query, l.EventID, l.SellerID, l.SellerAddress, l.PriceWei, l.IsSold, l.CreatedAt).Scan(&l.ID)
	if err != nil {
		if isUniqueViolation(err, "resale_listings_active_key") {
			return resale.ErrAlreadyListed
		}
		return fmt.Errorf("出品作成に失敗: %w", err)
	}
	return nil
}

func (r *ResaleRepository) GetActive(ctx context.Context, eventID int64, sellerID string) (*resale.Listing, error) {
	var row listingRow
	query := `SELECT ` + listingColumns + ` FROM resale_listings WHERE event_id = $1 AND seller_id = $2 AND NOT is_sold`
	if err := r.db.GetContext(ctx, &row, query, eventID, sellerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, resale.ErrListingNotFound
		}
		return nil, fmt.Errorf("出品取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ResaleRepository) ListActiveBySeller(ctx context.Context, sellerID string) ([]*resale.Listing, error) {
	var rows []listingRow
	query := `SELECT ` + listingColumns + ` FROM resale_listings WHERE seller_id = $1 AND NOT is_sold ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query, sellerID); err != nil {
		return nil, fmt.Errorf("出品一覧取得に失敗: %w", err)
	}
	out := make([]*resale.Listing, len(rows))
	for i := range rows {
		out[i] = rows[i].toEntity()
	}
	return out, nil
}

func (r *ResaleRepository) DeleteActive(ctx context.Context, eventID int64, sellerID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM resale_listings WHERE event_id = $1 AND seller_id = $2 AND NOT is_sold`, eventID, sellerID)
	if err != nil {
		return fmt.Errorf("出品取り下げに失敗: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("削除結果の確認に失敗: %w", err)
	} else if n == 0 {
		return resale.ErrListingNotFound
	}
	return nil
}

var _ resale.Repository = (*ResaleRepository)(nil)
