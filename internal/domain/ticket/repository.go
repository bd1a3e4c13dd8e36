package ticket

import (
	"context"
	"time"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
)

// Repository はチケットリポジトリのインターフェース
type Repository interface {
	// Create はチケットを記録する（トランザクション必須）
	// (event_id, owner_id) 重複は ErrAlreadyOwned、mint_nonce 重複は ErrDuplicateNonce
	Create(ctx context.Context, tx transaction.Tx, t *Ticket) error

	// GetByID はIDからチケットを取得する
	GetByID(ctx context.Context, id string) (*Ticket, error)

	// GetByMintNonce はミントノンスからチケットを取得する
	GetByMintNonce(ctx context.Context, nonce string) (*Ticket, error)

	// GetByEventAndOwner はイベントと所有者からチケットを取得する
	GetByEventAndOwner(ctx context.Context, eventID int64, ownerID string) (*Ticket, error)

	// ListByOwner は所有者のチケット一覧を取得する
	ListByOwner(ctx context.Context, ownerID string) ([]*Ticket, error)

	// ListPenaltyCandidates は開催日時が before より前で、未出席かつ未減点のチケットを取得する
	ListPenaltyCandidates(ctx context.Context, before time.Time, limit int) ([]*Ticket, error)

	// ClaimReputationDecrease は reputation_decreased を false→true に変更する
	// 既に true の場合は false を返す
	ClaimReputationDecrease(ctx context.Context, tx transaction.Tx, id string) (bool, error)
}
