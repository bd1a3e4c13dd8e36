package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/profile"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/clock"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/pkg/logger"
)

// ProfileService はプロフィールの作成と表示用の参照を扱う
type ProfileService struct {
	profileRepo profile.Repository
	cache       ProfileCache
	clock       clock.Clock
}

func NewProfileService(pr profile.Repository, cache ProfileCache, clk clock.Clock) *ProfileService {
	return &ProfileService{profileRepo: pr, cache: cache, clock: clk}
}

// Ensure は初回アクセス時にプロフィールを作成し、現在のプロフィールを返す
func (s *ProfileService) Ensure(ctx context.Context, userID, email string) (*profile.Profile, error) {
	if userID == "" {
		return nil, unauthenticatedError()
	}
	if err := s.profileRepo.CreateIfNotExists(ctx, profile.NewProfile(userID, email, s.clock.Now())); err != nil {
		return nil, internalError(fmt.Errorf("プロフィール作成に失敗: %w", err))
	}
	p, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, internalError(fmt.Errorf("プロフィール取得に失敗: %w", err))
	}
	return p, nil
}

// Get は表示用にプロフィールを返す
// キャッシュから返した場合 stale は true で、最大でキャッシュのTTL分だけ古い可能性がある
// 購入可否などの判定にはこの値を使わないこと
func (s *ProfileService) Get(ctx context.Context, userID string) (p *profile.Profile, stale bool, err error) {
	if userID == "" {
		return nil, false, unauthenticatedError()
	}
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, userID); err == nil {
			return cached, true, nil
		}
	}

	p, err = s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			return nil, false, notFoundError(err)
		}
		return nil, false, internalError(fmt.Errorf("プロフィール取得に失敗: %w", err))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, p); err != nil {
			logger.Warn("プロフィールキャッシュの保存に失敗", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return p, false, nil
}

// Invalidate はプロフィールのキャッシュを捨てる
func (s *ProfileService) Invalidate(ctx context.Context, userID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, userID)
}
