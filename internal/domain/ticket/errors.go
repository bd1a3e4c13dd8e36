package ticket

import "errors"

// Ticket ドメインのエラー定義
var (
	ErrTicketNotFound    = errors.New("チケットが見つかりません")
	ErrAlreadyOwned      = errors.New("このイベントのチケットを既に所有しています")
	ErrDuplicateNonce    = errors.New("同じミントノンスのチケットが既に存在します")
	ErrEventIDRequired   = errors.New("イベントIDは必須です")
	ErrOwnerRequired     = errors.New("所有者は必須です")
	ErrMintNonceRequired = errors.New("ミントノンスは必須です")
)
