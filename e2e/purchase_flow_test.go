package e2e

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api/handler"
)

var (
	organizer = &User{ID: "e2e-organizer", Email: "organizer@example.com", Address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"}
	buyer     = &User{ID: "e2e-buyer", Email: "buyer@example.com", Address: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"}
	other     = &User{ID: "e2e-other", Email: "other@example.com", Address: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"}
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func createEvent(t *testing.T, s *TestServer, by *User, maxTickets, reputationRequired int, date time.Time) handler.EventResponse {
	t.Helper()
	s.Tick()
	rec := s.Request(http.MethodPost, "/api/v1/events", map[string]any{
		"name":                "武道館ライブ 2026",
		"location":            "日本武道館",
		"date":                date.Format(time.RFC3339),
		"price_wei":           10000000000000000,
		"max_tickets":         maxTickets,
		"reputation_required": reputationRequired,
	}, by)
	requireStatus(t, http.StatusCreated, rec)
	return decode[handler.EventResponse](t, rec)
}

func purchase(s *TestServer, eventID int64, user *User, key string) *httptest.ResponseRecorder {
	body := map[string]any{}
	if key != "" {
		body["idempotency_key"] = key
	}
	return s.Request(http.MethodPost, fmt.Sprintf("/api/v1/events/%d/tickets", eventID), body, user)
}

func profileOf(t *testing.T, s *TestServer, user *User) handler.ProfileResponse {
	t.Helper()
	rec := s.Request(http.MethodGet, "/api/v1/me/profile", nil, user)
	requireStatus(t, http.StatusOK, rec)
	return decode[handler.ProfileResponse](t, rec)
}

// TestE2E_HealthCheck はヘルスチェックをテスト
func TestE2E_HealthCheck(t *testing.T) {
	s := NewTestServer(t)

	rec := s.Request(http.MethodGet, "/health", nil, nil)
	requireStatus(t, http.StatusOK, rec)

	resp := decode[handler.HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
}

// TestE2E_CompletePurchaseJourney はイベント作成から購入、参照までの流れをテスト
func TestE2E_CompletePurchaseJourney(t *testing.T) {
	s := NewTestServer(t)

	var ev handler.EventResponse
	var tk handler.TicketResponse

	t.Run("イベント作成で主催者にボーナス", func(t *testing.T) {
		ev = createEvent(t, s, organizer, 2, 0, baseTime.Add(48*time.Hour))
		assert.Equal(t, fmt.Sprintf("event-%d", ev.ID), ev.MetadataHash)
		assert.Equal(t, 0, ev.TicketsSold)

		p := profileOf(t, s, organizer)
		assert.Equal(t, 5, p.Reputation)
	})

	t.Run("チケット購入", func(t *testing.T) {
		rec := purchase(s, ev.ID, buyer, "e2e-order-001")
		requireStatus(t, http.StatusCreated, rec)

		tk = decode[handler.TicketResponse](t, rec)
		assert.Equal(t, ev.ID, tk.EventID)
		assert.Equal(t, buyer.ID, tk.OwnerID)
		assert.Equal(t, buyer.Address, tk.OwnerAddress)
		assert.Equal(t, "e2e-order-001", tk.MintNonce)
		assert.NotEmpty(t, tk.TxHash)
		assert.Equal(t, "default-ticket.json", tk.TokenURI)
	})

	t.Run("販売数と購入者の発行数が増える", func(t *testing.T) {
		rec := s.Request(http.MethodGet, fmt.Sprintf("/api/v1/events/%d", ev.ID), nil, nil)
		requireStatus(t, http.StatusOK, rec)
		assert.Equal(t, 1, decode[handler.EventResponse](t, rec).TicketsSold)

		p := profileOf(t, s, buyer)
		assert.Equal(t, 1, p.TicketsMinted)
	})

	t.Run("同じ冪等キーの再送は発行済みのチケットを返す", func(t *testing.T) {
		rec := purchase(s, ev.ID, buyer, "e2e-order-001")
		requireStatus(t, http.StatusOK, rec)
		assert.Equal(t, tk.ID, decode[handler.TicketResponse](t, rec).ID)

		rec = s.Request(http.MethodGet, fmt.Sprintf("/api/v1/events/%d", ev.ID), nil, nil)
		assert.Equal(t, 1, decode[handler.EventResponse](t, rec).TicketsSold)
	})

	t.Run("同じイベントの2枚目は購入できない", func(t *testing.T) {
		rec := purchase(s, ev.ID, buyer, "e2e-order-002")
		requireStatus(t, http.StatusUnprocessableEntity, rec)
		assert.Equal(t, "eligibility", decode[errorBody](t, rec).Kind)
	})

	t.Run("所有チケット一覧", func(t *testing.T) {
		rec := s.Request(http.MethodGet, "/api/v1/me/tickets?filter=upcoming", nil, buyer)
		requireStatus(t, http.StatusOK, rec)

		views := decode[[]handler.TicketViewResponse](t, rec)
		require.Len(t, views, 1)
		assert.Equal(t, tk.ID, views[0].Ticket.ID)
		assert.False(t, views[0].Expired)
		assert.True(t, views[0].CanResale)
		require.NotNil(t, views[0].Event)
		assert.Equal(t, ev.ID, views[0].Event.ID)
	})
}

// TestE2E_PurchaseEligibility は購入条件の判定をテスト
func TestE2E_PurchaseEligibility(t *testing.T) {
	s := NewTestServer(t)

	ev := createEvent(t, s, organizer, 1, 0, baseTime.Add(24*time.Hour))

	t.Run("主催者は自分のイベントを購入できない", func(t *testing.T) {
		rec := purchase(s, ev.ID, organizer, "")
		requireStatus(t, http.StatusUnprocessableEntity, rec)
	})

	t.Run("未ログインでは購入できない", func(t *testing.T) {
		rec := purchase(s, ev.ID, nil, "")
		requireStatus(t, http.StatusUnauthorized, rec)
	})

	t.Run("売り切れ", func(t *testing.T) {
		requireStatus(t, http.StatusCreated, purchase(s, ev.ID, buyer, ""))

		rec := purchase(s, ev.ID, other, "")
		requireStatus(t, http.StatusUnprocessableEntity, rec)
		assert.Equal(t, "eligibility", decode[errorBody](t, rec).Kind)
	})

	t.Run("存在しないイベント", func(t *testing.T) {
		rec := purchase(s, 1, buyer, "")
		requireStatus(t, http.StatusUnprocessableEntity, rec)
	})

	t.Run("開催日時を過ぎたイベント", func(t *testing.T) {
		past := createEvent(t, s, organizer, 10, 0, baseTime.Add(time.Hour))
		s.Clock.Advance(2 * time.Hour)

		rec := purchase(s, past.ID, other, "")
		requireStatus(t, http.StatusUnprocessableEntity, rec)
	})
}

// TestE2E_ReputationGate はレピュテーション条件付きのイベントをテスト
func TestE2E_ReputationGate(t *testing.T) {
	s := NewTestServer(t)

	gated := createEvent(t, s, organizer, 10, 5, baseTime.Add(24*time.Hour))

	t.Run("レピュテーション不足では購入できない", func(t *testing.T) {
		rec := purchase(s, gated.ID, buyer, "")
		requireStatus(t, http.StatusUnprocessableEntity, rec)
	})

	t.Run("イベントを作成すると条件を満たす", func(t *testing.T) {
		createEvent(t, s, buyer, 10, 0, baseTime.Add(72*time.Hour))
		assert.Equal(t, 5, profileOf(t, s, buyer).Reputation)

		rec := purchase(s, gated.ID, buyer, "")
		requireStatus(t, http.StatusCreated, rec)
	})
}

// TestE2E_MissedEventPenalty は不参加ペナルティをテスト
func TestE2E_MissedEventPenalty(t *testing.T) {
	s := NewTestServer(t)

	// 購入者自身もイベントを作成してレピュテーション5を持つ
	createEvent(t, s, buyer, 10, 0, baseTime.Add(96*time.Hour))
	ev := createEvent(t, s, organizer, 10, 0, baseTime.Add(time.Hour))
	requireStatus(t, http.StatusCreated, purchase(s, ev.ID, buyer, ""))

	s.Clock.Advance(2 * time.Hour)

	t.Run("参照時にペナルティが適用される", func(t *testing.T) {
		rec := s.Request(http.MethodGet, "/api/v1/me/tickets?filter=past", nil, buyer)
		requireStatus(t, http.StatusOK, rec)

		views := decode[[]handler.TicketViewResponse](t, rec)
		require.Len(t, views, 1)
		assert.True(t, views[0].Expired)
		assert.True(t, views[0].Missed)
		assert.True(t, views[0].Ticket.ReputationDecreased)
		assert.False(t, views[0].CanResale)

		assert.Equal(t, 3, profileOf(t, s, buyer).Reputation)
	})

	t.Run("再参照しても二重に減点されない", func(t *testing.T) {
		rec := s.Request(http.MethodGet, "/api/v1/me/tickets", nil, buyer)
		requireStatus(t, http.StatusOK, rec)

		assert.Equal(t, 3, profileOf(t, s, buyer).Reputation)
	})
}

// TestE2E_Resale は再販出品をテスト
func TestE2E_Resale(t *testing.T) {
	s := NewTestServer(t)

	ev := createEvent(t, s, organizer, 10, 0, baseTime.Add(24*time.Hour))
	requireStatus(t, http.StatusCreated, purchase(s, ev.ID, buyer, ""))
	resalePath := fmt.Sprintf("/api/v1/events/%d/resale", ev.ID)

	t.Run("出品", func(t *testing.T) {
		rec := s.Request(http.MethodPost, resalePath, nil, buyer)
		requireStatus(t, http.StatusCreated, rec)

		l := decode[handler.ListingResponse](t, rec)
		assert.Equal(t, buyer.ID, l.SellerID)
		assert.Equal(t, ev.PriceWei, l.PriceWei)
		assert.False(t, l.IsSold)
	})

	t.Run("二重出品は409", func(t *testing.T) {
		rec := s.Request(http.MethodPost, resalePath, nil, buyer)
		requireStatus(t, http.StatusConflict, rec)
	})

	t.Run("一覧に出品中として表示される", func(t *testing.T) {
		rec := s.Request(http.MethodGet, "/api/v1/me/tickets", nil, buyer)
		requireStatus(t, http.StatusOK, rec)
		views := decode[[]handler.TicketViewResponse](t, rec)
		require.Len(t, views, 1)
		assert.True(t, views[0].OnResale)

		rec = s.Request(http.MethodGet, "/api/v1/me/resale", nil, buyer)
		requireStatus(t, http.StatusOK, rec)
		assert.Len(t, decode[[]handler.ListingResponse](t, rec), 1)
	})

	t.Run("チケットを持たない利用者は出品できない", func(t *testing.T) {
		rec := s.Request(http.MethodPost, resalePath, nil, other)
		requireStatus(t, http.StatusNotFound, rec)
	})

	t.Run("出品取り消し", func(t *testing.T) {
		rec := s.Request(http.MethodDelete, resalePath, nil, buyer)
		requireStatus(t, http.StatusNoContent, rec)

		rec = s.Request(http.MethodDelete, resalePath, nil, buyer)
		requireStatus(t, http.StatusNotFound, rec)
	})
}

// TestE2E_CancelEvent はイベント中止をテスト
func TestE2E_CancelEvent(t *testing.T) {
	s := NewTestServer(t)

	ev := createEvent(t, s, organizer, 10, 0, baseTime.Add(24*time.Hour))
	cancelPath := fmt.Sprintf("/api/v1/events/%d/cancel", ev.ID)

	t.Run("主催者以外は中止できない", func(t *testing.T) {
		rec := s.Request(http.MethodPost, cancelPath, nil, buyer)
		requireStatus(t, http.StatusForbidden, rec)
	})

	t.Run("主催者が中止", func(t *testing.T) {
		rec := s.Request(http.MethodPost, cancelPath, nil, organizer)
		requireStatus(t, http.StatusOK, rec)
		assert.True(t, decode[handler.EventResponse](t, rec).IsCancelled)
	})

	t.Run("中止済みのイベントは購入できない", func(t *testing.T) {
		rec := purchase(s, ev.ID, buyer, "")
		requireStatus(t, http.StatusUnprocessableEntity, rec)
	})
}

// TestE2E_AdminReconciliation は運用APIをテスト
func TestE2E_AdminReconciliation(t *testing.T) {
	s := NewTestServer(t)

	t.Run("認証なしは401", func(t *testing.T) {
		rec := s.Request(http.MethodGet, "/api/v1/admin/reconciliation", nil, nil)
		requireStatus(t, http.StatusUnauthorized, rec)
	})

	t.Run("未解消エントリが無ければ空", func(t *testing.T) {
		rec := s.AdminRequest(http.MethodGet, "/api/v1/admin/reconciliation", nil)
		requireStatus(t, http.StatusOK, rec)
		assert.Empty(t, decode[[]handler.EntryResponse](t, rec))
	})

	t.Run("再試行", func(t *testing.T) {
		rec := s.AdminRequest(http.MethodPost, "/api/v1/admin/reconciliation/retry", nil)
		requireStatus(t, http.StatusOK, rec)
		assert.Equal(t, handler.RetryResponse{}, decode[handler.RetryResponse](t, rec))
	})

	t.Run("存在しないエントリの解消は404", func(t *testing.T) {
		rec := s.AdminRequest(http.MethodPost, "/api/v1/admin/reconciliation/unknown/resolve", nil)
		requireStatus(t, http.StatusNotFound, rec)
	})
}

// TestE2E_Metrics はメトリクスの公開をテスト
func TestE2E_Metrics(t *testing.T) {
	s := NewTestServer(t)

	createEvent(t, s, organizer, 1, 0, baseTime.Add(24*time.Hour))

	rec := s.Request(http.MethodGet, "/metrics", nil, nil)
	requireStatus(t, http.StatusOK, rec)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
