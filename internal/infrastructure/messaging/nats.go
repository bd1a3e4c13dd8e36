package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/change"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
)

// NATSFeed は NATS のサブジェクト <prefix>.<entity>.<kind> で変更通知を配送する
type NATSFeed struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSFeed は自動再接続付きで NATS に接続する
func NewNATSFeed(url, prefix string, opts ...nats.Option) (*NATSFeed, error) {
	defaults := []nats.Option{
		nats.Name("nft-ticket-issuance"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATSから切断されました", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATSに再接続しました", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("NATS接続に失敗 (%s): %w", url, err)
	}
	return &NATSFeed{conn: nc, prefix: prefix}, nil
}

func (f *NATSFeed) Publish(ctx context.Context, ev change.Event) error {
	data, err := encode(ev)
	if err != nil {
		return err
	}
	return f.conn.Publish(ev.Subject(f.prefix), data)
}

// Subscribe は <prefix>.> を購読し、届いた通知を順に h へ渡す
// 処理が追いつかない場合は通知を捨てる（キャッシュは TTL で収束する）
func (f *NATSFeed) Subscribe(ctx context.Context, h change.Handler) (func(), error) {
	ch := make(chan change.Event, 256)
	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	sub, err := f.conn.Subscribe(f.prefix+".>", func(msg *nats.Msg) {
		ev, err := decode(msg.Data)
		if err != nil {
			logger.Warn("不正な変更通知を破棄", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
			logger.Warn("変更通知のバッファが一杯のため破棄", zap.String("subject", msg.Subject))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("購読に失敗 (%s.>): %w", f.prefix, err)
	}
	if err := f.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("購読の登録に失敗: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			h(ctx, ev)
		}
	}()

	unsubscribe := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
			<-done
		})
	}
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	return unsubscribe, nil
}

func (f *NATSFeed) Close() error {
	return f.conn.Drain()
}

var (
	_ change.Publisher  = (*NATSFeed)(nil)
	_ change.Subscriber = (*NATSFeed)(nil)
)
