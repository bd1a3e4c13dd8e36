package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api/middleware"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/application"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/chain"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/ticket"
)

type TicketHandler struct {
	purchases PurchaseServiceInterface
	tickets   TicketServiceInterface
	signer    chain.Signer
}

func NewTicketHandler(purchases PurchaseServiceInterface, tickets TicketServiceInterface, signer chain.Signer) *TicketHandler {
	return &TicketHandler{purchases: purchases, tickets: tickets, signer: signer}
}

type PurchaseRequest struct {
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=128" example:"order-2026-001"`
}

type TicketResponse struct {
	ID                  string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EventID             int64  `json:"event_id" example:"1767172800000"`
	OwnerID             string `json:"owner_id" example:"user-123"`
	OwnerAddress        string `json:"owner_address" example:"0x70997970C51812dc3A010C7d01b50e0d17dc79C8"`
	TokenURI            string `json:"token_uri" example:"default-ticket.json"`
	TxHash              string `json:"tx_hash"`
	MintNonce           string `json:"mint_nonce" example:"order-2026-001"`
	Attended            bool   `json:"attended"`
	ReputationDecreased bool   `json:"reputation_decreased"`
	CreatedAt           string `json:"created_at"`
}

type TicketViewResponse struct {
	Ticket    TicketResponse `json:"ticket"`
	Event     *EventResponse `json:"event"`
	Expired   bool           `json:"expired"`
	Missed    bool           `json:"missed"`
	OnResale  bool           `json:"on_resale"`
	CanResale bool           `json:"can_resale"`
}

func toTicketResponse(t *ticket.Ticket) TicketResponse {
	return TicketResponse{
		ID:                  t.ID,
		EventID:             t.EventID,
		OwnerID:             t.OwnerID,
		OwnerAddress:        t.OwnerAddress,
		TokenURI:            t.TokenURI,
		TxHash:              t.TxHash,
		MintNonce:           t.MintNonce,
		Attended:            t.Attended,
		ReputationDecreased: t.ReputationDecreased,
		CreatedAt:           t.CreatedAt.Format(time.RFC3339),
	}
}

// Purchase godoc
// @Summary チケットを購入
// @Description チケットをミントして記録します。同じ冪等キーの再送は発行済みのチケットを返します
// @Tags tickets
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param X-Wallet-Address header string true "受け取りウォレット"
// @Param Idempotency-Key header string false "冪等キー"
// @Param id path int true "イベントID"
// @Success 201 {object} TicketResponse
// @Success 200 {object} TicketResponse "発行済み"
// @Success 202 {object} api.PendingRecordResponse "ミント済みで記録が遅延"
// @Failure 401 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "同じ購入が処理中"
// @Failure 422 {object} api.ErrorResponse "購入条件を満たさない"
// @Failure 502 {object} api.ErrorResponse "ミント失敗"
// @Router /events/{id}/tickets [post]
func (h *TicketHandler) Purchase(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}

	var req PurchaseRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
		}
	}
	if key := c.Request().Header.Get(middleware.HeaderIdempotencyKey); key != "" {
		req.IdempotencyKey = key
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	// 購入者の特定はサービス側で検証する（期限切れや売り切れの判定が先）
	user := middleware.IdentityFrom(c)
	result, err := h.purchases.Purchase(c.Request().Context(), application.PurchaseInput{
		EventID:        eventID,
		BuyerID:        user.UserID,
		BuyerAddress:   user.WalletAddress,
		IdempotencyKey: req.IdempotencyKey,
	}, h.signer)
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	return c.JSON(status, toTicketResponse(result.Ticket))
}

// Mine godoc
// @Summary 所有チケット一覧
// @Description 開催済みで不参加のチケットには参照時にペナルティを適用します
// @Tags tickets
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param filter query string false "all, upcoming, past" default(all)
// @Success 200 {array} TicketViewResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /me/tickets [get]
func (h *TicketHandler) Mine(c echo.Context) error {
	user := middleware.IdentityFrom(c)
	if !user.Authenticated() {
		return echo.NewHTTPError(http.StatusUnauthorized, "ログインが必要です")
	}
	filter := application.TicketFilter(c.QueryParam("filter"))
	if filter == "" {
		filter = application.TicketFilterAll
	}

	views, err := h.tickets.MyTickets(c.Request().Context(), user.UserID, filter)
	if err != nil {
		return err
	}

	resp := make([]TicketViewResponse, len(views))
	for i, v := range views {
		resp[i] = TicketViewResponse{
			Ticket:    toTicketResponse(v.Ticket),
			Expired:   v.Expired,
			Missed:    v.Missed,
			OnResale:  v.OnResale,
			CanResale: v.CanResale,
		}
		if v.Event != nil {
			resp[i].Event = toEventResponse(v.Event)
		}
	}
	return c.JSON(http.StatusOK, resp)
}
