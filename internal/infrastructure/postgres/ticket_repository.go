package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/ticket"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
)

const ticketColumns = `id, event_id, owner_id, owner_address, token_uri, tx_hash, mint_nonce, attended, refunded, reputation_decreased, created_at`

type ticketRow struct {
	ID                  string    `db:"id"`
	EventID             int64     `db:"event_id"`
	OwnerID             string    `db:"owner_id"`
	OwnerAddress        string    `db:"owner_address"`
	TokenURI            string    `db:"token_uri"`
	TxHash              string    `db:"tx_hash"`
	MintNonce           string    `db:"mint_nonce"`
	Attended            bool      `db:"attended"`
	Refunded            bool      `db:"refunded"`
	ReputationDecreased bool      `db:"reputation_decreased"`
	CreatedAt           time.Time `db:"created_at"`
}

func (r *ticketRow) toEntity() *ticket.Ticket {
	return &ticket.Ticket{
		ID:                  r.ID,
		EventID:             r.EventID,
		OwnerID:             r.OwnerID,
		OwnerAddress:        r.OwnerAddress,
		TokenURI:            r.TokenURI,
		TxHash:              r.TxHash,
		MintNonce:           r.MintNonce,
		Attended:            r.Attended,
		Refunded:            r.Refunded,
		ReputationDecreased: r.ReputationDecreased,
		CreatedAt:           r.CreatedAt,
	}
}

func toTickets(rows []ticketRow) []*ticket.Ticket {
	out := make([]*ticket.Ticket, len(rows))
	for i := range rows {
		out[i] = rows[i].toEntity()
	}
	return out
}

type TicketRepository struct{ db *sqlx.DB }

func NewTicketRepository(db *sqlx.DB) *TicketRepository { return &TicketRepository{db: db} }

func (r *TicketRepository) Create(ctx context.Context, tx transaction.Tx, t *ticket.Ticket) error {
	query := `
		INSERT INTO tickets (event_id, owner_id, owner_address, token_uri, tx_hash, mint_nonce, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := queryer(r.db, tx).QueryRowxContext(ctx, query,
		t.EventID, t.OwnerID, t.OwnerAddress, t.TokenURI, t.TxHash, t.MintNonce, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		switch {
		case isUniqueViolation(err, "tickets_mint_nonce_key"):
			return ticket.ErrDuplicateNonce
		case isUniqueViolation(err, "tickets_event_owner_key"):
			return ticket.ErrAlreadyOwned
		}
		return fmt.Errorf("チケット記録に失敗: %w", err)
	}
	return nil
}

func (r *TicketRepository) get(ctx context.Context, where string, args ...any) (*ticket.Ticket, error) {
	var row ticketRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+ticketColumns+` FROM tickets WHERE `+where, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticket.ErrTicketNotFound
		}
		return nil, fmt.Errorf("チケット取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*ticket.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ticket.ErrTicketNotFound
	}
	return r.get(ctx, `id = $1`, id)
}

func (r *TicketRepository) GetByMintNonce(ctx context.Context, nonce string) (*ticket.Ticket, error) {
	return r.get(ctx, `mint_nonce = $1`, nonce)
}

func (r *TicketRepository) GetByEventAndOwner(ctx context.Context, eventID int64, ownerID string) (*ticket.Ticket, error) {
	return r.get(ctx, `event_id = $1 AND owner_id = $2`, eventID, ownerID)
}

func (r *TicketRepository) ListByOwner(ctx context.Context, ownerID string) ([]*ticket.Ticket, error) {
	var rows []ticketRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+ticketColumns+` FROM tickets WHERE owner_id = $1 ORDER BY created_at`, ownerID); err != nil {
		return nil, fmt.Errorf("チケット一覧取得に失敗: %w", err)
	}
	return toTickets(rows), nil
}

func (r *TicketRepository) ListPenaltyCandidates(ctx context.Context, before time.Time, limit int) ([]*ticket.Ticket, error) {
	query := `
		SELECT t.id, t.event_id, t.owner_id, t.owner_address, t.token_uri, t.tx_hash, t.mint_nonce,
			t.attended, t.refunded, t.reputation_decreased, t.created_at
		FROM tickets t
		JOIN events e ON e.id = t.event_id
		WHERE e.date < $1 AND NOT e.is_cancelled AND NOT t.attended AND NOT t.reputation_decreased
		ORDER BY t.created_at
		LIMIT $2
	`
	var rows []ticketRow
	if err := r.db.SelectContext(ctx, &rows, query, before, limit); err != nil {
		return nil, fmt.Errorf("ペナルティ候補取得に失敗: %w", err)
	}
	return toTickets(rows), nil
}

// ClaimReputationDecrease は false→true の条件付き UPDATE で減点の権利を1回だけ確保する
func (r *TicketRepository) ClaimReputationDecrease(ctx context.Context, tx transaction.Tx, id string) (bool, error) {
	q := queryer(r.db, tx)
	result, err := q.ExecContext(ctx, `UPDATE tickets SET reputation_decreased = TRUE WHERE id = $1 AND NOT reputation_decreased`, id)
	if err != nil {
		return false, fmt.Errorf("減点フラグ更新に失敗: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("チケット確認に失敗: %w", err)
	}
	if !exists {
		return false, ticket.ErrTicketNotFound
	}
	return false, nil
}

// MarkAttended は出席を記録する
func (r *TicketRepository) MarkAttended(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tickets SET attended = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("出席記録に失敗: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	} else if n == 0 {
		return ticket.ErrTicketNotFound
	}
	return nil
}

var _ ticket.Repository = (*TicketRepository)(nil)
