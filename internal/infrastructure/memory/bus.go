package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/change"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
)

const subscriberBuffer = 256

// Bus はプロセス内の変更通知の配送
// 購読者ごとにバッファ付きチャネルを持ち、溢れた通知は捨てる
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan change.Event
	nextID int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan change.Event)}
}

// Publish は全購読者に通知を配る。ブロックしない
func (b *Bus) Publish(ctx context.Context, ev change.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.Warn("変更通知を破棄（購読者の処理が追いついていません）",
				zap.Int("subscriber", id),
				zap.String("entity", string(ev.Entity)),
				zap.String("id", ev.ID),
			)
		}
	}
	return nil
}

// Subscribe は h を購読者として登録する
// ctx の終了または返された関数の呼び出しで購読を解除する
func (b *Bus) Subscribe(ctx context.Context, h change.Handler) (func(), error) {
	ch := make(chan change.Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(done)
		})
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				unsubscribe()
				return
			case <-done:
				return
			case ev := <-ch:
				h(ctx, ev)
			}
		}
	}()
	return unsubscribe, nil
}

// Close は以降の通知を捨てる
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
