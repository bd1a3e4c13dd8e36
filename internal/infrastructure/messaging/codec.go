// Package messaging は変更通知を NATS または RabbitMQ で配送する
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/change"
)

var errMissingFields = errors.New("変更通知の entity または kind が空です")

func encode(ev change.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("変更通知のエンコードに失敗: %w", err)
	}
	return data, nil
}

func decode(data []byte) (change.Event, error) {
	var ev change.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return change.Event{}, fmt.Errorf("変更通知のデコードに失敗: %w", err)
	}
	if ev.Entity == "" || ev.Kind == "" {
		return change.Event{}, errMissingFields
	}
	return ev, nil
}
