package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// ProfileCache はプロフィールの読み取りキャッシュ
// 表示用途のみで、購入可否の判定には使わない
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProfileCache は新しいProfileCacheインスタンスを作成する
func NewProfileCache(client *redis.Client, ttl time.Duration) *ProfileCache {
	return &ProfileCache{client: client, ttl: ttl}
}

type cachedProfile struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Reputation     int       `json:"reputation"`
	TicketsMinted  int       `json:"tickets_minted"`
	EventsAttended int       `json:"events_attended"`
	Flags          int       `json:"flags"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Get はキャッシュからプロフィールを取得する
func (c *ProfileCache) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	raw, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}

	var cp cachedProfile
	if err := json.Unmarshal(raw, &cp); err != nil {
		// 壊れたエントリはミス扱いにして作り直させる
		return nil, ErrCacheMiss
	}
	return &profile.Profile{
		ID:             cp.ID,
		Email:          cp.Email,
		Name:           cp.Name,
		Reputation:     cp.Reputation,
		TicketsMinted:  cp.TicketsMinted,
		EventsAttended: cp.EventsAttended,
		Flags:          cp.Flags,
		CreatedAt:      cp.CreatedAt,
		UpdatedAt:      cp.UpdatedAt,
	}, nil
}

// Set はプロフィールをキャッシュに保存する
func (c *ProfileCache) Set(ctx context.Context, p *profile.Profile) error {
	raw, err := json.Marshal(cachedProfile{
		ID:             p.ID,
		Email:          p.Email,
		Name:           p.Name,
		Reputation:     p.Reputation,
		TicketsMinted:  p.TicketsMinted,
		EventsAttended: p.EventsAttended,
		Flags:          p.Flags,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("キャッシュのエンコードに失敗: %w", err)
	}
	if err := c.client.Set(ctx, c.key(p.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はプロフィールのキャッシュを無効化する
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *ProfileCache) key(userID string) string {
	return fmt.Sprintf("profile:%s", userID)
}
