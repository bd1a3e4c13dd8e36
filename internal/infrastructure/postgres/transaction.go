package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
)

// TxWrapper は sqlx.Tx を transaction.Tx として扱う
type TxWrapper struct {
	*sqlx.Tx
}

func (t *TxWrapper) Commit() error {
	return t.Tx.Commit()
}

// Rollback はコミット済みのトランザクションに対しては何もしない
func (t *TxWrapper) Rollback() error {
	if err := t.Tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// TxOption はトランザクションの開始オプションを変更する
type TxOption func(*sql.TxOptions)

// WithIsolation は分離レベルを指定する
func WithIsolation(level sql.IsolationLevel) TxOption {
	return func(o *sql.TxOptions) { o.Isolation = level }
}

// TxManager は sqlx.DB 上でトランザクションを開始する
type TxManager struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

// NewTxManager はオプション無しならドライバ既定の分離レベルで開始する
func NewTxManager(db *sqlx.DB, opts ...TxOption) *TxManager {
	m := &TxManager{db: db}
	if len(opts) > 0 {
		m.opts = &sql.TxOptions{}
		for _, opt := range opts {
			opt(m.opts)
		}
	}
	return m
}

// Begin は新しいトランザクションを開始する
func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, m.opts)
	if err != nil {
		return nil, err
	}
	return &TxWrapper{Tx: tx}, nil
}

// UnwrapTx は transaction.Tx から sqlx.Tx を取り出す
func UnwrapTx(tx transaction.Tx) *sqlx.Tx {
	if wrapper, ok := tx.(*TxWrapper); ok {
		return wrapper.Tx
	}
	return nil
}

// queryer は tx があればそれを、無ければ db を返す
func queryer(db *sqlx.DB, tx transaction.Tx) sqlx.ExtContext {
	if sqlTx := UnwrapTx(tx); sqlTx != nil {
		return sqlTx
	}
	return db
}
