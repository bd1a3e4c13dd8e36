package reconciliation

import "errors"

// Reconciliation ドメインのエラー定義
var (
	ErrEntryNotFound   = errors.New("照合エントリが見つかりません")
	ErrAlreadyResolved = errors.New("照合エントリは既に解消されています")
	ErrDuplicateNonce  = errors.New("同じミントノンスの照合エントリが既に存在します")
)
