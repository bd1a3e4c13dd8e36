package event

import (
	"context"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
)

// Repository はイベントリポジトリのインターフェース
// tx が nil の場合はトランザクション外で実行する
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, tx transaction.Tx, e *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id int64) (*Event, error)

	// List はイベント一覧を取得する
	List(ctx context.Context, limit, offset int) ([]*Event, error)

	// IncrementSoldIfAvailable は tickets_sold < max_tickets の場合のみ販売数を1増やす
	// 条件を満たさない場合は ErrSoldOut を返す
	IncrementSoldIfAvailable(ctx context.Context, tx transaction.Tx, id int64) error

	// DecrementSold は予約枠の補償として販売数を1減らす（0未満にはならない）
	DecrementSold(ctx context.Context, tx transaction.Tx, id int64) error

	// MarkCancelled はイベントを中止状態にする
	MarkCancelled(ctx context.Context, id int64) error
}
