package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/api"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/application"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/chain"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
)

// MockEventService はEventServiceInterfaceのモック
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) CreateEvent(ctx context.Context, input application.CreateEventInput, signer chain.Signer) (*event.Event, error) {
	args := m.Called(ctx, input, signer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, id int64) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) ListEvents(ctx context.Context, limit, offset int) ([]*event.Event, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventService) CancelEvent(ctx context.Context, id int64, by string) (*event.Event, error) {
	args := m.Called(ctx, id, by)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func testEvent() *event.Event {
	date := time.Date(2026, 12, 31, 18, 0, 0, 0, time.UTC)
	return &event.Event{
		ID:               1767172800000,
		Name:             "Eventure Live",
		Location:         "Tokyo",
		Date:             date,
		PriceWei:         1000,
		MaxTickets:       100,
		OrganizerID:      "alice",
		OrganizerAddress: "0xalice",
		MetadataHash:     event.MetadataHashFor(1767172800000),
		CreatedAt:        date.Add(-30 * 24 * time.Hour),
	}
}

const createEventBody = `{"name":"Eventure Live","location":"Tokyo","date":"2026-12-31T18:00:00Z","price_wei":1000,"max_tickets":100}`

func TestEventHandler_Create(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常にイベントを作成できる", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("CreateEvent", mock.Anything, mock.MatchedBy(func(in application.CreateEventInput) bool {
			return in.Name == "Eventure Live" &&
				in.MaxTickets == 100 &&
				in.PriceWei == 1000 &&
				in.OrganizerID == "alice" &&
				in.OrganizerAddress == "0xalice" &&
				in.Date.Equal(time.Date(2026, 12, 31, 18, 0, 0, 0, time.UTC))
		}), relayer).Return(testEvent(), nil)

		h := NewEventHandler(mockService, relayer)
		rec := serve(e, h.Create, asUser(newRequest(http.MethodPost, "/api/v1/events", createEventBody), "alice", "0xalice"))

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp EventResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(1767172800000), resp.ID)
		assert.Equal(t, "event-1767172800000", resp.MetadataHash)
		mockService.AssertExpectations(t)
	})

	t.Run("未ログインは401", func(t *testing.T) {
		mockService := new(MockEventService)
		h := NewEventHandler(mockService, relayer)

		rec := serve(e, h.Create, newRequest(http.MethodPost, "/api/v1/events", createEventBody))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		mockService.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("バリデーションエラー", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"名前なし", `{"date":"2026-12-31T18:00:00Z","max_tickets":100}`},
			{"販売数0", `{"name":"x","date":"2026-12-31T18:00:00Z","max_tickets":0}`},
			{"負の価格", `{"name":"x","date":"2026-12-31T18:00:00Z","max_tickets":1,"price_wei":-1}`},
			{"日時の形式不正", `{"name":"x","date":"2026/12/31","max_tickets":1}`},
			{"JSON不正", `{"name":`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mockService := new(MockEventService)
				h := NewEventHandler(mockService, relayer)

				rec := serve(e, h.Create, asUser(newRequest(http.MethodPost, "/api/v1/events", tt.body), "alice", "0xalice"))

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				mockService.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("オンチェーン作成失敗は502", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("CreateEvent", mock.Anything, mock.Anything, relayer).
			Return(nil, &application.Error{Kind: application.KindMintFailed, Cause: chain.ErrReverted})

		h := NewEventHandler(mockService, relayer)
		rec := serve(e, h.Create, asUser(newRequest(http.MethodPost, "/api/v1/events", createEventBody), "alice", "0xalice"))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), `"kind":"mint_failed"`)
	})

	t.Run("記録の遅延は202", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("CreateEvent", mock.Anything, mock.Anything, relayer).
			Return(nil, &application.Error{Kind: application.KindCommitInconsistency, Reason: application.ErrCommitDeferred})

		h := NewEventHandler(mockService, relayer)
		rec := serve(e, h.Create, asUser(newRequest(http.MethodPost, "/api/v1/events", createEventBody), "alice", "0xalice"))

		require.Equal(t, http.StatusAccepted, rec.Code)
		var resp api.PendingRecordResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "pending_record", resp.Status)
		assert.Equal(t, api.PendingRecordMessage, resp.Message)
	})
}

func TestEventHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常に取得できる", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("GetEvent", mock.Anything, int64(1767172800000)).Return(testEvent(), nil)

		h := NewEventHandler(mockService, relayer)
		rec := serve(e, h.GetByID, newRequest(http.MethodGet, "/api/v1/events/1767172800000", ""), "id", "1767172800000")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"name":"Eventure Live"`)
	})

	t.Run("存在しない場合は404", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("GetEvent", mock.Anything, int64(42)).
			Return(nil, &application.Error{Kind: application.KindNotFound, Reason: event.ErrEventNotFound})

		h := NewEventHandler(mockService, relayer)
		rec := serve(e, h.GetByID, newRequest(http.MethodGet, "/api/v1/events/42", ""), "id", "42")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), event.ErrEventNotFound.Error())
	})

	t.Run("IDが数値でない場合は400", func(t *testing.T) {
		mockService := new(MockEventService)
		h := NewEventHandler(mockService, relayer)

		rec := serve(e, h.GetByID, newRequest(http.MethodGet, "/api/v1/events/abc", ""), "id", "abc")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "GetEvent", mock.Anything, mock.Anything)
	})
}

func TestEventHandler_List(t *testing.T) {
	e := NewTestEcho()

	t.Run("クエリで件数を指定できる", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("ListEvents", mock.Anything, 5, 10).Return([]*event.Event{testEvent()}, nil)

		h := NewEventHandler(mockService, relayer)
		rec := serve(e, h.List, newRequest(http.MethodGet, "/api/v1/events?limit=5&offset=10", ""))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp []EventResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 1)
	})

	t.Run("未指定はデフォルト", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("ListEvents", mock.Anything, 20, 0).Return([]*event.Event{}, nil)

		h := NewEventHandler(mockService, relayer)
		rec := serve(e, h.List, newRequest(http.MethodGet, "/api/v1/events", ""))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("内部エラーは詳細を隠す", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("ListEvents", mock.Anything, 20, 0).Return(nil, errors.New("pq: connection refused"))

		h := NewEventHandler(mockService, relayer)
		rec := serve(e, h.List, newRequest(http.MethodGet, "/api/v1/events", ""))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "pq:")
	})
}

func TestEventHandler_Cancel(t *testing.T) {
	e := NewTestEcho()

	t.Run("主催者は中止できる", func(t *testing.T) {
		cancelled := testEvent()
		cancelled.IsCancelled = true
		mockService := new(MockEventService)
		mockService.On("CancelEvent", mock.Anything, int64(1767172800000), "alice").Return(cancelled, nil)

		h := NewEventHandler(mockService, relayer)
		rec := serve(e, h.Cancel, asUser(newRequest(http.MethodPost, "/api/v1/events/1767172800000/cancel", ""), "alice", "0xalice"), "id", "1767172800000")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"is_cancelled":true`)
	})

	t.Run("主催者以外は403", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("CancelEvent", mock.Anything, int64(1767172800000), "bob").
			Return(nil, &application.Error{Kind: application.KindForbidden, Reason: event.ErrNotOrganizer})

		h := NewEventHandler(mockService, relayer)
		rec := serve(e, h.Cancel, asUser(newRequest(http.MethodPost, "/api/v1/events/1767172800000/cancel", ""), "bob", "0xbob"), "id", "1767172800000")

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("中止済みは409", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("CancelEvent", mock.Anything, int64(1767172800000), "alice").
			Return(nil, &application.Error{Kind: application.KindConflict, Reason: event.ErrEventAlreadyCancelled})

		h := NewEventHandler(mockService, relayer)
		rec := serve(e, h.Cancel, asUser(newRequest(http.MethodPost, "/api/v1/events/1767172800000/cancel", ""), "alice", "0xalice"), "id", "1767172800000")

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestToEventResponse(t *testing.T) {
	ev := testEvent()

	resp := toEventResponse(ev)

	assert.Equal(t, ev.ID, resp.ID)
	assert.Equal(t, ev.Name, resp.Name)
	assert.Equal(t, "2026-12-31T18:00:00Z", resp.Date)
	assert.Equal(t, ev.PriceWei, resp.PriceWei)
	assert.Equal(t, ev.MetadataHash, resp.MetadataHash)
	assert.False(t, resp.IsCancelled)
}
