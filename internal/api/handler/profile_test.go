package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/application"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
)

// MockProfileService はProfileServiceInterfaceのモック
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Get(ctx context.Context, userID string) (*profile.Profile, bool, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*profile.Profile), args.Bool(1), args.Error(2)
}

func TestProfileHandler_Me(t *testing.T) {
	e := NewTestEcho()

	t.Run("キャッシュから返した場合はstale", func(t *testing.T) {
		service := new(MockProfileService)
		service.On("Get", mock.Anything, "bob").Return(&profile.Profile{ID: "bob", Name: "BraveFalcon042", Reputation: 7}, true, nil)

		h := NewProfileHandler(service)
		rec := serve(e, h.Me, asUser(newRequest(http.MethodGet, "/api/v1/me/profile", ""), "bob", "0xbob"))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ProfileResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 7, resp.Reputation)
		assert.True(t, resp.Stale)
	})

	t.Run("未ログインは401", func(t *testing.T) {
		service := new(MockProfileService)
		service.On("Get", mock.Anything, "").
			Return(nil, false, &application.Error{Kind: application.KindUnauthenticated, Reason: application.ErrUnauthenticated})

		h := NewProfileHandler(service)
		rec := serve(e, h.Me, newRequest(http.MethodGet, "/api/v1/me/profile", ""))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
