package messaging

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/change"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
)

// AMQPFeed は RabbitMQ の topic exchange で変更通知を配送する
// ルーティングキーは <prefix>.<entity>.<kind>
type AMQPFeed struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
	prefix   string
}

func NewAMQPFeed(url, exchange, queue, prefix string) (*AMQPFeed, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("RabbitMQ接続に失敗: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("チャネル作成に失敗: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("exchange 宣言に失敗: %w", err)
	}
	return &AMQPFeed{conn: conn, ch: ch, exchange: exchange, queue: queue, prefix: prefix}, nil
}

func (f *AMQPFeed) Publish(ctx context.Context, ev change.Event) error {
	body, err := encode(ev)
	if err != nil {
		return err
	}
	return f.ch.PublishWithContext(ctx, f.exchange, ev.Subject(f.prefix), false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   ev.At,
		Body:        body,
	})
}

// Subscribe はキューを宣言して全ての変更通知を受け取る
// ハンドラの処理後に ack する。デコードできないものは再配送しない
func (f *AMQPFeed) Subscribe(ctx context.Context, h change.Handler) (func(), error) {
	ch, err := f.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("チャネル作成に失敗: %w", err)
	}
	q, err := ch.QueueDeclare(f.queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("キュー宣言に失敗: %w", err)
	}
	if err := ch.QueueBind(q.Name, f.prefix+".#", f.exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("キューのバインドに失敗: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		cancel()
		_ = ch.Close()
		return nil, fmt.Errorf("consume に失敗: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range deliveries {
			ev, err := decode(d.Body)
			if err != nil {
				logger.Warn("不正な変更通知を破棄", zap.String("routing_key", d.RoutingKey), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			h(ctx, ev)
			_ = d.Ack(false)
		}
	}()

	return func() {
		cancel()
		_ = ch.Close()
		<-done
	}, nil
}

func (f *AMQPFeed) Close() error {
	if f.ch != nil {
		_ = f.ch.Close()
	}
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

var (
	_ change.Publisher  = (*AMQPFeed)(nil)
	_ change.Subscriber = (*AMQPFeed)(nil)
)
