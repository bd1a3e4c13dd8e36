package application

import (
	"context"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
)

// ProfileCache はプロフィールの読み取りキャッシュ
// Get はキャッシュに無い場合エラーを返す
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
	Set(ctx context.Context, p *profile.Profile) error
	Invalidate(ctx context.Context, userID string) error
}

// TokenMetadata はミントするトークンのメタデータを用意し、そのURIを返す
type TokenMetadata interface {
	TokenURI(ctx context.Context, ev *event.Event, buyerID, nonce string) (string, error)
}
