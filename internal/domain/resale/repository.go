package resale

import "context"

// Repository は再販出品リポジトリのインターフェース
type Repository interface {
	// Create は出品を作成する。有効な出品が既にある場合は ErrAlreadyListed
	Create(ctx context.Context, l *Listing) error

	// GetActive は (eventID, sellerID) の有効な出品を取得する
	GetActive(ctx context.Context, eventID int64, sellerID string) (*Listing, error)

	// ListActiveBySeller は出品者の有効な出品一覧を取得する
	ListActiveBySeller(ctx context.Context, sellerID string) ([]*Listing, error)

	// DeleteActive は (eventID, sellerID) の有効な出品を削除する。無い場合は ErrListingNotFound
	DeleteActive(ctx context.Context, eventID int64, sellerID string) error
}
