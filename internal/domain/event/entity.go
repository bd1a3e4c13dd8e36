package event

import (
	"fmt"
	"strings"
	"time"
)

// Event はイベントエンティティを表す
// ID はオンチェーンのコントラクトと共有される外部識別子
type Event struct {
	ID                 int64
	Name               string
	Description        string
	Location           string
	Date               time.Time
	PriceWei           int64
	MaxTickets         int
	TicketsSold        int
	ReputationRequired int
	IsCancelled        bool
	OrganizerID        string
	OrganizerAddress   string
	MetadataHash       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewEvent は新しいイベントを作成する
// ID は作成時刻のミリ秒から採番する
func NewEvent(name, description, location string, date time.Time, priceWei int64, maxTickets, reputationRequired int, organizerID, organizerAddress string, now time.Time) *Event {
	id := now.UnixMilli()
	return &Event{
		ID:                 id,
		Name:               name,
		Description:        description,
		Location:           location,
		Date:               date,
		PriceWei:           priceWei,
		MaxTickets:         maxTickets,
		ReputationRequired: reputationRequired,
		OrganizerID:        organizerID,
		OrganizerAddress:   organizerAddress,
		MetadataHash:       MetadataHashFor(id),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// MetadataHashFor はオンチェーン createEvent に渡すメタデータ参照を返す
func MetadataHashFor(id int64) string {
	return fmt.Sprintf("event-%d", id)
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.Name == "" {
		return ErrEventNameRequired
	}
	if e.Date.IsZero() {
		return ErrEventDateRequired
	}
	if e.MaxTickets <= 0 {
		return ErrInvalidMaxTickets
	}
	if e.PriceWei < 0 {
		return ErrInvalidPrice
	}
	if e.ReputationRequired < 0 {
		return ErrInvalidReputationRequired
	}
	if e.OrganizerID == "" {
		return ErrOrganizerRequired
	}
	return nil
}

// IsExpired はイベント日時を過ぎているかを返す
func (e *Event) IsExpired(now time.Time) bool {
	return e.Date.Before(now)
}

// HasCapacity は販売枠が残っているかを返す
func (e *Event) HasCapacity() bool {
	return e.TicketsSold < e.MaxTickets
}

// Remaining は残りのチケット枚数を返す
func (e *Event) Remaining() int {
	if e.TicketsSold >= e.MaxTickets {
		return 0
	}
	return e.MaxTickets - e.TicketsSold
}

// IsOrganizer は userID または wallet がイベント主催者のものかを返す
func (e *Event) IsOrganizer(userID, wallet string) bool {
	if userID != "" && userID == e.OrganizerID {
		return true
	}
	return wallet != "" && e.OrganizerAddress != "" && strings.EqualFold(wallet, e.OrganizerAddress)
}

// Cancel はイベントを中止する（一方向）
func (e *Event) Cancel(by string, now time.Time) error {
	if by != e.OrganizerID {
		return ErrNotOrganizer
	}
	if e.IsCancelled {
		return ErrEventAlreadyCancelled
	}
	e.IsCancelled = true
	e.UpdatedAt = now
	return nil
}
