package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/reconciliation"
)

type ReconciliationHandler struct {
	service ReconciliationServiceInterface
}

func NewReconciliationHandler(s ReconciliationServiceInterface) *ReconciliationHandler {
	return &ReconciliationHandler{service: s}
}

type ResolveRequest struct {
	Note string `json:"note" validate:"max=500" example:"返金済み"`
}

type EntryResponse struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind" example:"oversold"`
	Status       string  `json:"status" example:"manual"`
	EventID      int64   `json:"event_id"`
	BuyerID      string  `json:"buyer_id"`
	BuyerAddress string  `json:"buyer_address"`
	TxHash       string  `json:"tx_hash"`
	MintNonce    string  `json:"mint_nonce"`
	Detail       string  `json:"detail"`
	Attempts     int     `json:"attempts"`
	CreatedAt    string  `json:"created_at"`
	ResolvedAt   *string `json:"resolved_at,omitempty"`
}

type RetryResponse struct {
	Resolved int `json:"resolved"`
	Manual   int `json:"manual"`
	Failed   int `json:"failed"`
}

func toEntryResponse(e *reconciliation.Entry) EntryResponse {
	resp := EntryResponse{
		ID:           e.ID,
		Kind:         string(e.Kind),
		Status:       string(e.Status),
		EventID:      e.EventID,
		BuyerID:      e.BuyerID,
		BuyerAddress: e.BuyerAddress,
		TxHash:       e.TxHash,
		MintNonce:    e.MintNonce,
		Detail:       e.Detail,
		Attempts:     e.Attempts,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
	if e.ResolvedAt != nil {
		at := e.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &at
	}
	return resp
}

// List godoc
// @Summary 未解消の照合エントリ一覧
// @Description ミント済みで記録できなかった購入を古い順に返します
// @Tags admin
// @Produce json
// @Param limit query int false "取得件数" default(50)
// @Success 200 {array} EntryResponse
// @Router /admin/reconciliation [get]
func (h *ReconciliationHandler) List(c echo.Context) error {
	entries, err := h.service.Pending(c.Request().Context(), intQuery(c, "limit", 50))
	if err != nil {
		return err
	}
	resp := make([]EntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = toEntryResponse(e)
	}
	return c.JSON(http.StatusOK, resp)
}

// Resolve godoc
// @Summary 照合エントリを解消
// @Description 返金などの手動対応が済んだエントリを解消済みにします
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "エントリID"
// @Param request body ResolveRequest false "対応メモ"
// @Success 200 {object} EntryResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "解消済み"
// @Router /admin/reconciliation/{id}/resolve [post]
func (h *ReconciliationHandler) Resolve(c echo.Context) error {
	var req ResolveRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
		}
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	e, err := h.service.Resolve(c.Request().Context(), c.Param("id"), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEntryResponse(e))
}

// Retry godoc
// @Summary 照合エントリを再試行
// @Description commit_failed のエントリを今すぐ再記録します
// @Tags admin
// @Produce json
// @Param limit query int false "対象件数" default(50)
// @Success 200 {object} RetryResponse
// @Router /admin/reconciliation/retry [post]
func (h *ReconciliationHandler) Retry(c echo.Context) error {
	report, err := h.service.Retry(c.Request().Context(), intQuery(c, "limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, RetryResponse{
		Resolved: report.Resolved,
		Manual:   report.Manual,
		Failed:   report.Failed,
	})
}
