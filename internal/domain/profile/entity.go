package profile

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// レピュテーションの増減量
const (
	BonusEventCreated  = 5
	PenaltyMissedEvent = 2
)

// Profile はユーザーのプロフィールとレピュテーションを表す
type Profile struct {
	ID             string
	Email          string
	Name           string
	Reputation     int
	TicketsMinted  int
	EventsAttended int
	Flags          int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewProfile は初回ログイン時のプロフィールを作成する
func NewProfile(id, email string, now time.Time) *Profile {
	return &Profile{
		ID:        id,
		Email:     email,
		Name:      RandomName(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate はプロフィールの検証を行う
func (p *Profile) Validate() error {
	if p.ID == "" {
		return ErrUserIDRequired
	}
	return nil
}

// Meets はレピュテーション要件を満たすかを返す
func (p *Profile) Meets(required int) bool {
	return p.Reputation >= required
}

// ApplyDelta は delta を加算し、0未満にならないよう切り詰めた値を返す
func ApplyDelta(score, delta int) int {
	next := score + delta
	if next < 0 {
		return 0
	}
	return next
}

var (
	adjectives = []string{"Swift", "Brave", "Calm", "Lucky", "Witty", "Bold", "Quiet", "Clever"}
	animals    = []string{"Fox", "Otter", "Panda", "Falcon", "Tiger", "Koala", "Raven", "Lynx"}
)

// RandomName は AdjectiveAnimalNNN 形式の表示名を生成する
func RandomName() string {
	return fmt.Sprintf("%s%s%d",
		adjectives[rand.IntN(len(adjectives))],
		animals[rand.IntN(len(animals))],
		100+rand.IntN(900),
	)
}
