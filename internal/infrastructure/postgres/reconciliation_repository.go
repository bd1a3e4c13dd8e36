package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/reconciliation"
)

const entryColumns = `id, kind, event_id, buyer_id, buyer_address, tx_hash, mint_nonce, token_uri, detail,
	status, attempts, reserved, created_at, resolved_at`

type entryRow struct {
	ID           string     `db:"id"`
	Kind         string     `db:"kind"`
	EventID      int64      `db:"event_id"`
	BuyerID      string     `db:"buyer_id"`
	BuyerAddress string     `db:"buyer_address"`
	TxHash       string     `db:"tx_hash"`
	MintNonce    string     `db:"mint_nonce"`
	TokenURI     string     `db:"token_uri"`
	Detail       string     `db:"detail"`
	Status       string     `db:"status"`
	Attempts     int        `db:"attempts"`
	Reserved     bool       `db:"reserved"`
	CreatedAt    time.Time  `db:"created_at"`
	ResolvedAt   *time.Time `db:"resolved_at"`
}

func (r *entryRow) toEntity() *reconciliation.Entry {
	return &reconciliation.Entry{
		ID:           r.ID,
		Kind:         reconciliation.Kind(r.Kind),
		EventID:      r.EventID,
		BuyerID:      r.BuyerID,
		BuyerAddress: r.BuyerAddress,
		TxHash:       r.TxHash,
		MintNonce:    r.MintNonce,
		TokenURI:     r.TokenURI,
		Detail:       r.Detail,
		Status:       reconciliation.Status(r.Status),
		Attempts:     r.Attempts,
		Reserved:     r.Reserved,
		CreatedAt:    r.CreatedAt,
		ResolvedAt:   r.ResolvedAt,
	}
}

// ReconciliationRepository は照合エントリのPostgreSQL実装
type ReconciliationRepository struct{ db *sqlx.DB }

func NewReconciliationRepository(db *sqlx.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

func (r *ReconciliationRepository) Create(ctx context.Context, e *reconciliation.Entry) error {
	query := `
		INSERT INTO reconciliation_entries (kind, event_id, buyer_id, buyer_address, tx_hash, mint_nonce, token_uri,
			detail, status, attempts, reserved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, query,
		string(e.Kind), e.EventID, e.BuyerID, e.BuyerAddress, e.TxHash, e.MintNonce, e.TokenURI,
		e.Detail, string(e.Status), e.Attempts, e.Reserved, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		if isUniqueViolation(err, "reconciliation_entries_mint_nonce_key") {
			return reconciliation.ErrDuplicateNonce
		}
		return fmt.Errorf("照合エントリ作成に失敗: %w", err)
	}
	return nil
}

func (r *ReconciliationRepository) get(ctx context.Context, where string, arg any) (*reconciliation.Entry, error) {
	var row entryRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+entryColumns+` FROM reconciliation_entries WHERE `+where, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reconciliation.ErrEntryNotFound
		}
		return nil, fmt.Errorf("照合エントリ取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ReconciliationRepository) GetByID(ctx context.Context, id string) (*reconciliation.Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, reconciliation.ErrEntryNotFound
	}
	return r.get(ctx, `id = $1`, id)
}

func (r *ReconciliationRepository) GetByMintNonce(ctx context.Context, nonce string) (*reconciliation.Entry, error) {
	return r.get(ctx, `mint_nonce = $1`, nonce)
}

func (r *ReconciliationRepository) ListOpen(ctx context.Context, limit int) ([]*reconciliation.Entry, error) {
	return r.list(ctx, `status <> 'resolved'`, limit)
}

func (r *ReconciliationRepository) ListRetryable(ctx context.Context, limit int) ([]*reconciliation.Entry, error) {
	return r.list(ctx, `status = 'pending' AND kind = 'commit_failed'`, limit)
}

func (r *ReconciliationRepository) list(ctx context.Context, where string, limit int) ([]*reconciliation.Entry, error) {
	var rows []entryRow
	query := `SELECT ` + entryColumns + ` FROM reconciliation_entries WHERE ` + where + ` ORDER BY created_at LIMIT $1`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("照合エントリ一覧取得に失敗: %w", err)
	}
	out := make([]*reconciliation.Entry, len(rows))
	for i := range rows {
		out[i] = rows[i].toEntity()
	}
	return out, nil
}

func (r *ReconciliationRepository) CountOpenByKind(ctx context.Context) (map[reconciliation.Kind]int, error) {
	var rows []struct {
		Kind  string `db:"kind"`
		Count int    `db:"count"`
	}
	query := `SELECT kind, COUNT(*) AS count FROM reconciliation_entries WHERE status <> 'resolved' GROUP BY kind`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("照合エントリの集計に失敗: %w", err)
	}
	out := make(map[reconciliation.Kind]int, len(rows))
	for _, row := range rows {
		out[reconciliation.Kind(row.Kind)] = row.Count
	}
	return out, nil
}

func (r *ReconciliationRepository) Update(ctx context.Context, e *reconciliation.Entry) error {
	query := `
		UPDATE reconciliation_entries
		SET kind = $2, status = $3, attempts = $4, detail = $5, resolved_at = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, e.ID, string(e.Kind), string(e.Status), e.Attempts, e.Detail, e.ResolvedAt)
	if err != nil {
		return fmt.Errorf("照合エントリ更新に失敗: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	} else if n == 0 {
		return reconciliation.ErrEntryNotFound
	}
	return nil
}

var _ reconciliation.Repository = (*ReconciliationRepository)(nil)
