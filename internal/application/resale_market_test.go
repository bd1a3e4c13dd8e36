package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/resale"
)

func TestResaleMarket_List(t *testing.T) {
	ctx := context.Background()

	t.Run("出品価格はイベント価格で固定される", func(t *testing.T) {
		f := newFixture(t)
		ev := f.addEvent(t, eventOpts{price: 5000})
		f.addTicket(t, ev.ID, "alice")

		l, err := f.resale.List(ctx, ev.ID, "alice")
		require.NoError(t, err)
		assert.NotEmpty(t, l.ID)
		assert.Equal(t, int64(5000), l.PriceWei)
		assert.Equal(t, "0xwallet-alice", l.SellerAddress)
		assert.True(t, l.IsActive())

		active, err := f.resale.ActiveListings(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, l.ID, active[0].ID)
	})

	t.Run("二重出品はできない", func(t *testing.T) {
		f := newFixture(t)
		ev := f.addEvent(t, eventOpts{})
		f.addTicket(t, ev.ID, "alice")

		_, err := f.resale.List(ctx, ev.ID, "alice")
		require.NoError(t, err)

		_, err = f.resale.List(ctx, ev.ID, "alice")
		require.Error(t, err)
		assert.True(t, IsKind(err, KindAlreadyListed))
		assert.ErrorIs(t, err, resale.ErrAlreadyListed)
	})

	t.Run("出品できないチケット", func(t *testing.T) {
		f := newFixture(t)
		past := f.addEvent(t, eventOpts{id: 1, date: baseTime.Add(-time.Hour)})
		cancelled := f.addEvent(t, eventOpts{id: 2, cancelled: true})
		attended := f.addEvent(t, eventOpts{id: 3})
		f.addTicket(t, past.ID, "alice")
		f.addTicket(t, cancelled.ID, "alice")
		tk := f.addTicket(t, attended.ID, "alice")
		require.NoError(t, f.tickets.MarkAttended(ctx, tk.ID))

		for _, id := range []int64{past.ID, cancelled.ID, attended.ID} {
			_, err := f.resale.List(ctx, id, "alice")
			require.Error(t, err)
			assert.True(t, IsKind(err, KindNotEligible), "event %d", id)
		}
	})

	t.Run("所有していないチケットは見つからない", func(t *testing.T) {
		f := newFixture(t)
		ev := f.addEvent(t, eventOpts{})

		_, err := f.resale.List(ctx, ev.ID, "alice")
		require.Error(t, err)
		assert.True(t, IsKind(err, KindNotFound))
	})

	t.Run("未ログインは拒否される", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.resale.List(ctx, 1, "")
		assert.True(t, IsKind(err, KindUnauthenticated))
	})
}

func TestResaleMarket_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("取り下げ後は再出品できる", func(t *testing.T) {
		f := newFixture(t)
		ev := f.addEvent(t, eventOpts{})
		f.addTicket(t, ev.ID, "alice")

		_, err := f.resale.List(ctx, ev.ID, "alice")
		require.NoError(t, err)
		require.NoError(t, f.resale.Cancel(ctx, ev.ID, "alice"))

		active, err := f.resale.ActiveListings(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, active)

		_, err = f.resale.List(ctx, ev.ID, "alice")
		require.NoError(t, err)
	})

	t.Run("出品が無ければ見つからない", func(t *testing.T) {
		f := newFixture(t)
		err := f.resale.Cancel(ctx, 1, "alice")
		require.Error(t, err)
		assert.True(t, IsKind(err, KindNotFound))
		assert.ErrorIs(t, err, resale.ErrListingNotFound)
	})
}
