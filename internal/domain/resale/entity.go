package resale

import "time"

// Listing は再販出品を表す
// (EventID, SellerID) につき有効な（未売却の）出品は最大1件
type Listing struct {
	ID            string
	EventID       int64
	SellerID      string
	SellerAddress string
	PriceWei      int64
	IsSold        bool
	CreatedAt     time.Time
}

// NewListing は出品を作成する
// 価格は出品時点のイベント価格で固定する
func NewListing(eventID int64, sellerID, sellerAddress string, priceWei int64, now time.Time) *Listing {
	return &Listing{
		EventID:       eventID,
		SellerID:      sellerID,
		SellerAddress: sellerAddress,
		PriceWei:      priceWei,
		CreatedAt:     now,
	}
}

// IsActive は出品が有効かを返す
func (l *Listing) IsActive() bool {
	return !l.IsSold
}
