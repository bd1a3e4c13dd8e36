// Package memory はリポジトリのインメモリ実装を提供する
// ローカル実行と並行性のテストに使う。永続化はしない
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/reconciliation"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/resale"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/ticket"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
)

var (
	ErrTxDone    = errors.New("トランザクションは既に終了しています")
	ErrForeignTx = errors.New("別のストアのトランザクションです")
)

// Store は全リポジトリのデータを保持する
// 書き込みトランザクションは txMu で直列化し、各操作は mu で保護する
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	events   map[int64]*event.Event
	tickets  map[string]*ticket.Ticket
	profiles map[string]*profile.Profile
	listings map[string]*resale.Listing
	entries  map[string]*reconciliation.Entry
}

func NewStore() *Store {
	return &Store{
		events:   make(map[int64]*event.Event),
		tickets:  make(map[string]*ticket.Ticket),
		profiles: make(map[string]*profile.Profile),
		listings: make(map[string]*resale.Listing),
		entries:  make(map[string]*reconciliation.Entry),
	}
}

type memTx struct {
	store *Store
	undo  []func()
	done  bool
}

// Begin は新しいトランザクションを開始する
// 他のトランザクションが終わるまでブロックする
func (s *Store) Begin(ctx context.Context) (transaction.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.txMu.Lock()
	return &memTx{store: s}, nil
}

func (t *memTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.undo = nil
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.undo = nil
	t.store.txMu.Unlock()
	return nil
}

// write は fn を排他的に実行する
// tx が nil の場合は単独の書き込みとして他のトランザクションと直列化する
// fn は取り消し用の関数を返す（取り消し不要なら nil）
func (s *Store) write(tx transaction.Tx, fn func() (func(), error)) error {
	if tx == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
		s.mu.Lock()
		defer s.mu.Unlock()
		_, err := fn()
		return err
	}

	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return ErrForeignTx
	}
	if mt.done {
		return ErrTxDone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	undo, err := fn()
	if err != nil {
		return err
	}
	if undo != nil {
		mt.undo = append(mt.undo, undo)
	}
	return nil
}

// read は fn を mu の下で実行する
func (s *Store) read(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}
