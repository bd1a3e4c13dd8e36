package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
)

func TestTxManager(t *testing.T) {
	ctx := context.Background()

	t.Run("成功すればコミットする", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTxManager(db, WithIsolation(sql.LevelReadCommitted))

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := transaction.Run(ctx, tm, func(tx transaction.Tx) error {
			assert.NotNil(t, UnwrapTx(tx))
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("失敗すればロールバックする", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTxManager(db)

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := transaction.Run(ctx, tm, func(tx transaction.Tx) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("コミット後のロールバックはエラーにしない", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTxManager(db)

		mock.ExpectBegin()
		mock.ExpectCommit()

		tx, err := tm.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.NoError(t, tx.Rollback())
	})

	t.Run("開始に失敗した場合はエラーを返す", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTxManager(db)

		mock.ExpectBegin().WillReturnError(assert.AnError)

		err := transaction.Run(ctx, tm, func(tx transaction.Tx) error { return nil })
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestQueryer(t *testing.T) {
	db, _ := newMockDB(t)

	t.Run("トランザクションが無ければDBを使う", func(t *testing.T) {
		assert.Same(t, db, queryer(db, nil))
	})
}
