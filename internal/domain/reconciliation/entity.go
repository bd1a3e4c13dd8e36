package reconciliation

import "time"

// Kind は照合が必要になった理由
type Kind string

const (
	// KindOversold はミント後に販売枠の競合に負けたケース（手動対応）
	KindOversold Kind = "oversold"
	// KindCommitFailed はミント後のオフチェーン記録に失敗したケース（再試行対象）
	KindCommitFailed Kind = "commit_failed"
	// KindEventCommitFailed はオンチェーンのイベント作成後に記録に失敗したケース
	KindEventCommitFailed Kind = "event_commit_failed"
	// KindReleaseFailed は予約枠の補償に失敗したケース
	KindReleaseFailed Kind = "release_failed"
	// KindDuplicateMint は同じ冪等キーの購入が並行して二重にミントされたケース（手動対応）
	KindDuplicateMint Kind = "duplicate_mint"
)

// Status は照合エントリの状態
type Status string

const (
	StatusPending  Status = "pending"
	StatusManual   Status = "manual"
	StatusResolved Status = "resolved"
)

// Entry はオンチェーンとオフチェーンの不整合を表す照合エントリ
type Entry struct {
	ID           string
	Kind         Kind
	EventID      int64
	BuyerID      string
	BuyerAddress string
	TxHash       string
	MintNonce    string
	TokenURI     string
	Detail       string
	Status       Status
	Attempts     int
	// Reserved は販売枠を確保済みのままミントしたか（reserve_first の場合 true）
	Reserved     bool
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

// NewEntry は照合エントリを作成する
// 自動再試行できるのは commit_failed だけで、それ以外は最初から manual にする
func NewEntry(kind Kind, eventID int64, buyerID, buyerAddress, txHash, mintNonce, tokenURI, detail string, now time.Time) *Entry {
	status := StatusManual
	if kind == KindCommitFailed {
		status = StatusPending
	}
	return &Entry{
		Kind:         kind,
		EventID:      eventID,
		BuyerID:      buyerID,
		BuyerAddress: buyerAddress,
		TxHash:       txHash,
		MintNonce:    mintNonce,
		TokenURI:     tokenURI,
		Detail:       detail,
		Status:       status,
		CreatedAt:    now,
	}
}

// Retryable は自動再試行の対象かを返す
func (e *Entry) Retryable() bool {
	return e.Status == StatusPending && e.Kind == KindCommitFailed
}

// Resolve はエントリを解消済みにする
func (e *Entry) Resolve(now time.Time) error {
	if e.Status == StatusResolved {
		return ErrAlreadyResolved
	}
	e.Status = StatusResolved
	e.ResolvedAt = &now
	return nil
}
