package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
)

type profileRow struct {
	ID             string    `db:"id"`
	Email          string    `db:"email"`
	Name           string    `db:"name"`
	Reputation     int       `db:"reputation"`
	TicketsMinted  int       `db:"tickets_minted"`
	EventsAttended int       `db:"events_attended"`
	Flags          int       `db:"flags"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *profileRow) toEntity() *profile.Profile {
	return &profile.Profile{
		ID:             r.ID,
		Email:          r.Email,
		Name:           r.Name,
		Reputation:     r.Reputation,
		TicketsMinted:  r.TicketsMinted,
		EventsAttended: r.EventsAttended,
		Flags:          r.Flags,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type ProfileRepository struct{ db *sqlx.DB }

func NewProfileRepository(db *sqlx.DB) *ProfileRepository { return &ProfileRepository{db: db} }

func (r *ProfileRepository) CreateIfNotExists(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO profiles (id, email, name, reputation, tickets_minted, events_attended, flags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Email, p.Name, p.Reputation, p.TicketsMinted, p.EventsAttended, p.Flags, p.CreatedAt, p.UpdatedAt); err != nil {
		return fmt.Errorf("プロフィール作成に失敗: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*profile.Profile, error) {
	var row profileRow
	query := `SELECT id, email, name, reputation, tickets_minted, events_attended, flags, created_at, updated_at FROM profiles WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, profile.ErrProfileNotFound
		}
		return nil, fmt.Errorf("プロフィール取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// AddReputation は1文の UPDATE で加算するので同時更新でも値が失われない
func (r *ProfileRepository) AddReputation(ctx context.Context, tx transaction.Tx, id string, delta int) (int, error) {
	var score int
	query := `UPDATE profiles SET reputation = GREATEST(reputation + $2, 0), updated_at = NOW() WHERE id = $1 RETURNING reputation`
	if err := sqlx.GetContext(ctx, queryer(r.db, tx), &score, query, id, delta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, profile.ErrProfileNotFound
		}
		return 0, fmt.Errorf("レピュテーション更新に失敗: %w", err)
	}
	return score, nil
}

func (r *ProfileRepository) IncrementTicketsMinted(ctx context.Context, tx transaction.Tx, id string) error {
	result, err := queryer(r.db, tx).ExecContext(ctx, `UPDATE profiles SET tickets_minted = tickets_minted + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ミント数の更新に失敗: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	} else if n == 0 {
		return profile.ErrProfileNotFound
	}
	return nil
}

var _ profile.Repository = (*ProfileRepository)(nil)
