package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/config"
)

// codeUniqueViolation は一意制約違反の SQLSTATE
const codeUniqueViolation = "23505"

// NewConnection はPostgreSQLへ接続し、設定に従って接続プールを調整する
// 0 の項目は database/sql の既定値のまま
func NewConnection(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// Ping はデータベース接続を確認する
func Ping(ctx context.Context, db *sqlx.DB) error {
	return db.PingContext(ctx)
}

// isUniqueViolation は指定した制約の一意制約違反かを返す
// constraint が空なら制約名を問わない
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pq.Error
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.Constraint == constraint
}
