package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api/middleware"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
)

type ProfileHandler struct {
	service ProfileServiceInterface
}

func NewProfileHandler(s ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: s}
}

// ProfileResponse は表示用のプロフィール
// Stale が true の場合はキャッシュから返しており、最新でない可能性がある
type ProfileResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name" example:"BraveFalcon042"`
	Reputation     int    `json:"reputation" example:"5"`
	TicketsMinted  int    `json:"tickets_minted"`
	EventsAttended int    `json:"events_attended"`
	Stale          bool   `json:"stale"`
}

func toProfileResponse(p *profile.Profile, stale bool) ProfileResponse {
	return ProfileResponse{
		ID:             p.ID,
		Email:          p.Email,
		Name:           p.Name,
		Reputation:     p.Reputation,
		TicketsMinted:  p.TicketsMinted,
		EventsAttended: p.EventsAttended,
		Stale:          stale,
	}
}

// Me godoc
// @Summary 自分のプロフィール
// @Tags profile
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /me/profile [get]
func (h *ProfileHandler) Me(c echo.Context) error {
	p, stale, err := h.service.Get(c.Request().Context(), middleware.IdentityFrom(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfileResponse(p, stale))
}
