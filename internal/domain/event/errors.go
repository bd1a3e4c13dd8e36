package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrEventNotFound             = errors.New("イベントが見つかりません")
	ErrEventAlreadyExists        = errors.New("同じIDのイベントが既に存在します")
	ErrEventNameRequired         = errors.New("イベント名は必須です")
	ErrEventDateRequired         = errors.New("開催日時は必須です")
	ErrInvalidMaxTickets         = errors.New("最大チケット数は1以上である必要があります")
	ErrInvalidPrice              = errors.New("価格は0以上である必要があります")
	ErrInvalidReputationRequired = errors.New("必要レピュテーションは0以上である必要があります")
	ErrOrganizerRequired         = errors.New("主催者は必須です")
	ErrNotOrganizer              = errors.New("イベントの主催者ではありません")
	ErrEventAlreadyCancelled     = errors.New("イベントは既に中止されています")

	// 購入時の適格性エラー
	ErrEventUnavailable       = errors.New("イベントは利用できません")
	ErrEventExpired           = errors.New("イベントの開催日時を過ぎています")
	ErrSelfPurchaseForbidden  = errors.New("主催者は自分のイベントのチケットを購入できません")
	ErrSoldOut                = errors.New("チケットは完売しました")
	ErrInsufficientReputation = errors.New("レピュテーションが不足しています")
)
