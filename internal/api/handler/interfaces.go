package handler

import (
	"context"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/application"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/chain"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/reconciliation"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/resale"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput, signer chain.Signer) (*event.Event, error)
	GetEvent(ctx context.Context, id int64) (*event.Event, error)
	ListEvents(ctx context.Context, limit, offset int) ([]*event.Event, error)
	CancelEvent(ctx context.Context, id int64, by string) (*event.Event, error)
}

// PurchaseServiceInterface はチケット購入のインターフェース
type PurchaseServiceInterface interface {
	Purchase(ctx context.Context, input application.PurchaseInput, signer chain.Signer) (*application.PurchaseResult, error)
}

// TicketServiceInterface は所有チケット参照のインターフェース
type TicketServiceInterface interface {
	MyTickets(ctx context.Context, userID string, filter application.TicketFilter) ([]*application.TicketView, error)
}

// ResaleServiceInterface は再販出品のインターフェース
type ResaleServiceInterface interface {
	List(ctx context.Context, eventID int64, sellerID string) (*resale.Listing, error)
	Cancel(ctx context.Context, eventID int64, sellerID string) error
	ActiveListings(ctx context.Context, sellerID string) ([]*resale.Listing, error)
}

// ProfileServiceInterface はプロフィール参照のインターフェース
type ProfileServiceInterface interface {
	Get(ctx context.Context, userID string) (*profile.Profile, bool, error)
}

// ReconciliationServiceInterface は照合エントリ運用のインターフェース
type ReconciliationServiceInterface interface {
	Pending(ctx context.Context, limit int) ([]*reconciliation.Entry, error)
	Resolve(ctx context.Context, id, note string) (*reconciliation.Entry, error)
	Retry(ctx context.Context, limit int) (application.RetryReport, error)
}
