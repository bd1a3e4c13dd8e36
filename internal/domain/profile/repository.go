package profile

import (
	"context"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/transaction"
)

// Repository はプロフィールリポジトリのインターフェース
// レピュテーションの更新はストア側で原子的に行い、ユーザー単位で線形化可能であること
type Repository interface {
	// CreateIfNotExists はプロフィールが無い場合のみ作成する
	CreateIfNotExists(ctx context.Context, p *Profile) error

	// GetByID はIDからプロフィールを取得する
	GetByID(ctx context.Context, id string) (*Profile, error)

	// AddReputation は delta を原子的に加算し（0で下限）、更新後のスコアを返す
	AddReputation(ctx context.Context, tx transaction.Tx, id string, delta int) (int, error)

	// IncrementTicketsMinted はミント数を1増やす
	IncrementTicketsMinted(ctx context.Context, tx transaction.Tx, id string) error
}
