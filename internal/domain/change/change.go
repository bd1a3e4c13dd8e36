// Package change はデータストアの変更通知を表す
// 配送方式（NATS/RabbitMQ/プロセス内）とは切り離して扱う
package change

import (
	"context"
	"fmt"
	"time"
)

// Entity は変更対象のテーブル
type Entity string

const (
	EntityEvent   Entity = "event"
	EntityTicket  Entity = "ticket"
	EntityProfile Entity = "profile"
	EntityListing Entity = "listing"
)

// Kind は変更種別
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Event は1件の変更通知
type Event struct {
	Entity Entity    `json:"entity"`
	Kind   Kind      `json:"kind"`
	ID     string    `json:"id"`
	At     time.Time `json:"at"`
}

// New は変更通知を作成する
func New(entity Entity, kind Kind, id string, at time.Time) Event {
	return Event{Entity: entity, Kind: kind, ID: id, At: at}
}

// Subject は配送用のトピック名を返す（例: eventure.ticket.insert）
func (e Event) Subject(prefix string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, e.Entity, e.Kind)
}

// Handler は変更通知を受け取る
type Handler func(ctx context.Context, ev Event)

// Publisher は変更通知を発行する
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Subscriber は変更通知の購読口
// 返される関数で購読を解除する
type Subscriber interface {
	Subscribe(ctx context.Context, h Handler) (func(), error)
}
