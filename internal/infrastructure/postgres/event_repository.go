package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
)

const eventColumns = `id, name, description, location, date, price_wei, max_tickets, tickets_sold,
	reputation_required, is_cancelled, organizer_id, organizer_address, metadata_hash, created_at, updated_at`

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID                 int64     `db:"id"`
	Name               string    `db:"name"`
	Description        string    `db:"description"`
	Location           string    `db:"location"`
	Date               time.Time `db:"date"`
	PriceWei           int64     `db:"price_wei"`
	MaxTickets         int       `db:"max_tickets"`
	TicketsSold        int       `db:"tickets_sold"`
	ReputationRequired int       `db:"reputation_required"`
	IsCancelled        bool      `db:"is_cancelled"`
	OrganizerID        string    `db:"organizer_id"`
	OrganizerAddress   string    `db:"organizer_address"`
	MetadataHash       string    `db:"metadata_hash"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (r *eventRow) toEntity() *event.Event {
	return &event.Event{
		ID:                 r.ID,
		Name:               r.Name,
		Description:        r.Description,
		Location:           r.Location,
		Date:               r.Date,
		PriceWei:           r.PriceWei,
		MaxTickets:         r.MaxTickets,
		TicketsSold:        r.TicketsSold,
		ReputationRequired: r.ReputationRequired,
		IsCancelled:        r.IsCancelled,
		OrganizerID:        r.OrganizerID,
		OrganizerAddress:   r.OrganizerAddress,
		MetadataHash:       r.MetadataHash,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する。ID はオンチェーンと共有するため呼び出し元が採番する
func (r *EventRepository) Create(ctx context.Context, tx transaction.Tx, e *event.Event) error {
	query := `
		INSERT INTO events (id, name, description, location, date, price_wei, max_tickets, tickets_sold,
			reputation_required, is_cancelled, organizer_id, organizer_address, metadata_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := queryer(r.db, tx).ExecContext(ctx, query,
		e.ID, e.Name, e.Description, e.Location, e.Date, e.PriceWei, e.MaxTickets, e.TicketsSold,
		e.ReputationRequired, e.IsCancelled, e.OrganizerID, e.OrganizerAddress, e.MetadataHash, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "events_pkey") {
			return event.ErrEventAlreadyExists
		}
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	var row eventRow
	err := r.db.GetContext(ctx, &row, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// List はイベント一覧を開催日時の近い順に取得する
func (r *EventRepository) List(ctx context.Context, limit, offset int) ([]*event.Event, error) {
	var rows []eventRow
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY date ASC, id ASC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}

	events := make([]*event.Event, len(rows))
	for i := range rows {
		events[i] = rows[i].toEntity()
	}
	return events, nil
}

// IncrementSoldIfAvailable は条件付き UPDATE で販売数を増やす
// 行ロックで直列化されるため、同時に実行しても上限を超えない
func (r *EventRepository) IncrementSoldIfAvailable(ctx context.Context, tx transaction.Tx, id int64) error {
	q := queryer(r.db, tx)
	result, err := q.ExecContext(ctx, `
		UPDATE events SET tickets_sold = tickets_sold + 1, updated_at = NOW()
		WHERE id = $1 AND tickets_sold < max_tickets
	`, id)
	if err != nil {
		return fmt.Errorf("販売数の更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if n == 1 {
		return nil
	}
	if err := r.ensureExists(ctx, q, id); err != nil {
		return err
	}
	return event.ErrSoldOut
}

// DecrementSold は販売数を1減らす。0の場合は何もしない
func (r *EventRepository) DecrementSold(ctx context.Context, tx transaction.Tx, id int64) error {
	q := queryer(r.db, tx)
	result, err := q.ExecContext(ctx, `
		UPDATE events SET tickets_sold = tickets_sold - 1, updated_at = NOW()
		WHERE id = $1 AND tickets_sold > 0
	`, id)
	if err != nil {
		return fmt.Errorf("販売数の返却に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if n == 1 {
		return nil
	}
	return r.ensureExists(ctx, q, id)
}

// MarkCancelled はイベントを中止状態にする
func (r *EventRepository) MarkCancelled(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE events SET is_cancelled = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT is_cancelled
	`, id)
	if err != nil {
		return fmt.Errorf("イベント中止に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if n == 1 {
		return nil
	}
	if err := r.ensureExists(ctx, r.db, id); err != nil {
		return err
	}
	return event.ErrEventAlreadyCancelled
}

func (r *EventRepository) ensureExists(ctx context.Context, q sqlx.QueryerContext, id int64) error {
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("イベント確認に失敗しました: %w", err)
	}
	if !exists {
		return event.ErrEventNotFound
	}
	return nil
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
