package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api/middleware"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/resale"
)

type ResaleHandler struct {
	service ResaleServiceInterface
}

func NewResaleHandler(s ResaleServiceInterface) *ResaleHandler {
	return &ResaleHandler{service: s}
}

type ListingResponse struct {
	ID            string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EventID       int64  `json:"event_id" example:"1767172800000"`
	SellerID      string `json:"seller_id" example:"user-123"`
	SellerAddress string `json:"seller_address"`
	PriceWei      int64  `json:"price_wei" example:"10000000000000000"`
	IsSold        bool   `json:"is_sold"`
	CreatedAt     string `json:"created_at"`
}

func toListingResponse(l *resale.Listing) ListingResponse {
	return ListingResponse{
		ID:            l.ID,
		EventID:       l.EventID,
		SellerID:      l.SellerID,
		SellerAddress: l.SellerAddress,
		PriceWei:      l.PriceWei,
		IsSold:        l.IsSold,
		CreatedAt:     l.CreatedAt.Format(time.RFC3339),
	}
}

// List godoc
// @Summary チケットを再販出品
// @Description 価格はイベントの販売価格で固定されます
// @Tags resale
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path int true "イベントID"
// @Success 201 {object} ListingResponse
// @Failure 404 {object} api.ErrorResponse "チケットを所有していない"
// @Failure 409 {object} api.ErrorResponse "出品済み"
// @Failure 422 {object} api.ErrorResponse "出品できない状態"
// @Router /events/{id}/resale [post]
func (h *ResaleHandler) List(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}
	l, err := h.service.List(c.Request().Context(), eventID, middleware.IdentityFrom(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toListingResponse(l))
}

// Cancel godoc
// @Summary 再販出品を取り下げ
// @Tags resale
// @Param X-User-ID header string true "ユーザーID"
// @Param id path int true "イベントID"
// @Success 204
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id}/resale [delete]
func (h *ResaleHandler) Cancel(c echo.Context) error {
	eventID, err := eventIDParam(c)
	if err != nil {
		return err
	}
	if err := h.service.Cancel(c.Request().Context(), eventID, middleware.IdentityFrom(c).UserID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Mine godoc
// @Summary 自分の出品一覧
// @Tags resale
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Success 200 {array} ListingResponse
// @Router /me/resale [get]
func (h *ResaleHandler) Mine(c echo.Context) error {
	listings, err := h.service.ActiveListings(c.Request().Context(), middleware.IdentityFrom(c).UserID)
	if err != nil {
		return err
	}
	resp := make([]ListingResponse, len(listings))
	for i, l := range listings {
		resp[i] = toListingResponse(l)
	}
	return c.JSON(http.StatusOK, resp)
}
