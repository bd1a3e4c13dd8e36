package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
)

// 認証基盤から渡される利用者情報のヘッダー
const (
	HeaderUserID        = "X-User-ID"
	HeaderUserEmail     = "X-User-Email"
	HeaderWalletAddress = "X-Wallet-Address"
)

const identityKey = "identity"

// Identity はリクエストの利用者
// 認証自体は前段のゲートウェイで済んでいる前提
type Identity struct {
	UserID        string
	Email         string
	WalletAddress string
}

// Authenticated は利用者を特定できているかを返す
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// IdentityFrom はコンテキストの利用者を返す。未設定なら空の Identity
func IdentityFrom(c echo.Context) Identity {
	if id, ok := c.Get(identityKey).(Identity); ok {
		return id
	}
	return Identity{}
}

// Identify はヘッダーから利用者を読み取りコンテキストに設定する
func Identify() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			c.Set(identityKey, Identity{
				UserID:        strings.TrimSpace(h.Get(HeaderUserID)),
				Email:         strings.TrimSpace(h.Get(HeaderUserEmail)),
				WalletAddress: strings.TrimSpace(h.Get(HeaderWalletAddress)),
			})
			return next(c)
		}
	}
}

// ProfileEnsurer は初回アクセス時にプロフィールを作成する
type ProfileEnsurer interface {
	Ensure(ctx context.Context, userID, email string) (*profile.Profile, error)
}

// EnsureProfile は利用者のプロフィールが無ければ作成する
// Identify の後に置く
func EnsureProfile(p ProfileEnsurer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFrom(c)
			if id.Authenticated() {
				if _, err := p.Ensure(c.Request().Context(), id.UserID, id.Email); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}
