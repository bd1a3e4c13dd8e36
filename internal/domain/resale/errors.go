package resale

import "errors"

// Resale ドメインのエラー定義
var (
	ErrListingNotFound = errors.New("出品が見つかりません")
	ErrAlreadyListed   = errors.New("このイベントのチケットは既に出品されています")
	ErrNotEligible     = errors.New("このチケットは出品できません")
)
