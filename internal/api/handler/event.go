package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api/middleware"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/application"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/chain"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
)

type EventHandler struct {
	eventService EventServiceInterface
	signer       chain.Signer
}

func NewEventHandler(eventService EventServiceInterface, signer chain.Signer) *EventHandler {
	return &EventHandler{eventService: eventService, signer: signer}
}

type CreateEventRequest struct {
	Name               string `json:"name" validate:"required" example:"Eventure Live 2026"`
	Description        string `json:"description" example:"年末スペシャルライブ"`
	Location           string `json:"location" example:"東京ドーム"`
	Date               string `json:"date" validate:"required,rfc3339" example:"2026-12-31T18:00:00+09:00"`
	PriceWei           int64  `json:"price_wei" validate:"min=0" example:"10000000000000000"`
	MaxTickets         int    `json:"max_tickets" validate:"required,gt=0" example:"500"`
	ReputationRequired int    `json:"reputation_required" validate:"min=0" example:"0"`
}

type EventResponse struct {
	ID                 int64  `json:"id" example:"1767172800000"`
	Name               string `json:"name" example:"Eventure Live 2026"`
	Description        string `json:"description" example:"年末スペシャルライブ"`
	Location           string `json:"location" example:"東京ドーム"`
	Date               string `json:"date" example:"2026-12-31T18:00:00+09:00"`
	PriceWei           int64  `json:"price_wei" example:"10000000000000000"`
	MaxTickets         int    `json:"max_tickets" example:"500"`
	TicketsSold        int    `json:"tickets_sold" example:"42"`
	ReputationRequired int    `json:"reputation_required" example:"0"`
	IsCancelled        bool   `json:"is_cancelled" example:"false"`
	OrganizerID        string `json:"organizer_id" example:"user-123"`
	OrganizerAddress   string `json:"organizer_address" example:"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"`
	MetadataHash       string `json:"metadata_hash" example:"event-1767172800000"`
	CreatedAt          string `json:"created_at" example:"2026-10-01T10:00:00+09:00"`
}

func toEventResponse(e *event.Event) *EventResponse {
	return &EventResponse{
		ID:                 e.ID,
		Name:               e.Name,
		Description:        e.Description,
		Location:           e.Location,
		Date:               e.Date.Format(time.RFC3339),
		PriceWei:           e.PriceWei,
		MaxTickets:         e.MaxTickets,
		TicketsSold:        e.TicketsSold,
		ReputationRequired: e.ReputationRequired,
		IsCancelled:        e.IsCancelled,
		OrganizerID:        e.OrganizerID,
		OrganizerAddress:   e.OrganizerAddress,
		MetadataHash:       e.MetadataHash,
		CreatedAt:          e.CreatedAt.Format(time.RFC3339),
	}
}

// Create godoc
// @Summary イベントを作成
// @Description オンチェーンにイベントを作成してから記録し、主催者にレピュテーションを付与します
// @Tags events
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param X-Wallet-Address header string true "ウォレットアドレス"
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 502 {object} api.ErrorResponse "オンチェーン作成失敗"
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	user := middleware.IdentityFrom(c)
	if !user.Authenticated() {
		return echo.NewHTTPError(http.StatusUnauthorized, "ログインが必要です")
	}
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "開催日時の形式が不正です")
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), application.CreateEventInput{
		Name:               req.Name,
		Description:        req.Description,
		Location:           req.Location,
		Date:               date,
		PriceWei:           req.PriceWei,
		MaxTickets:         req.MaxTickets,
		ReputationRequired: req.ReputationRequired,
		OrganizerID:        user.UserID,
		OrganizerAddress:   user.WalletAddress,
	}, h.signer)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// GetByID godoc
// @Summary イベントを取得
// @Tags events
// @Produce json
// @Param id path int true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	id, err := eventIDParam(c)
	if err != nil {
		return err
	}
	e, err := h.eventService.GetEvent(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// List godoc
// @Summary イベント一覧を取得
// @Description 開催日時の昇順で返します
// @Tags events
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} EventResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	events, err := h.eventService.ListEvents(c.Request().Context(), intQuery(c, "limit", 20), intQuery(c, "offset", 0))
	if err != nil {
		return err
	}

	responses := make([]*EventResponse, len(events))
	for i, e := range events {
		responses[i] = toEventResponse(e)
	}
	return c.JSON(http.StatusOK, responses)
}

// Cancel godoc
// @Summary イベントを中止
// @Description 主催者のみ実行できます。中止は取り消せません
// @Tags events
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path int true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "中止済み"
// @Router /events/{id}/cancel [post]
func (h *EventHandler) Cancel(c echo.Context) error {
	id, err := eventIDParam(c)
	if err != nil {
		return err
	}
	user := middleware.IdentityFrom(c)
	if !user.Authenticated() {
		return echo.NewHTTPError(http.StatusUnauthorized, "ログインが必要です")
	}
	e, err := h.eventService.CancelEvent(c.Request().Context(), id, user.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}
