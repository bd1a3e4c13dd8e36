package reconciliation

import "context"

// Repository は照合エントリのリポジトリ
type Repository interface {
	// Create はエントリを追加する。mint_nonce 重複は ErrDuplicateNonce
	Create(ctx context.Context, e *Entry) error

	// GetByID はIDからエントリを取得する
	GetByID(ctx context.Context, id string) (*Entry, error)

	// GetByMintNonce はミントノンスからエントリを取得する
	GetByMintNonce(ctx context.Context, nonce string) (*Entry, error)

	// ListOpen は未解消（pending/manual）のエントリを古い順に取得する
	ListOpen(ctx context.Context, limit int) ([]*Entry, error)

	// ListRetryable は自動再試行の対象（pending の commit_failed）を古い順に取得する
	ListRetryable(ctx context.Context, limit int) ([]*Entry, error)

	// CountOpenByKind は未解消エントリ数を種類ごとに返す
	CountOpenByKind(ctx context.Context) (map[Kind]int, error)

	// Update は状態・試行回数・詳細を更新する
	Update(ctx context.Context, e *Entry) error
}
