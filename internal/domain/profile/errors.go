package profile

import "errors"

// Profile ドメインのエラー定義
var (
	ErrProfileNotFound = errors.New("プロフィールが見つかりません")
	ErrUserIDRequired  = errors.New("ユーザーIDは必須です")
	ErrInvalidDelta    = errors.New("増減量は1以上である必要があります")
)
