package application

import (
	"errors"
	"fmt"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/chain"
)

// Kind はアプリケーションエラーの分類
// API層はこの分類だけを見てレスポンスを決める
type Kind string

const (
	KindValidation          Kind = "validation"
	KindEligibility         Kind = "eligibility"
	KindUnauthenticated     Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
	KindMintFailed          Kind = "mint_failed"
	KindCommitInconsistency Kind = "commit_inconsistency"
	KindNotFound            Kind = "not_found"
	KindAlreadyListed       Kind = "already_listed"
	KindNotEligible         Kind = "not_eligible"
	KindConflict            Kind = "conflict"
	KindInternal            Kind = "internal"
)

// 不整合の理由
var (
	// ErrOversoldSideEffect はミント済みだが販売枠の競合に負けたことを表す
	ErrOversoldSideEffect = errors.New("ミント済みですが販売枠を確保できませんでした")
	// ErrCommitDeferred はミント済みでオフチェーン記録が照合待ちになったことを表す
	ErrCommitDeferred = errors.New("ミント済みですが記録が照合待ちです")
	// ErrMintUnconfirmed は送信済みのミントが確定を確認できないまま打ち切られたことを表す
	ErrMintUnconfirmed = errors.New("送信済みのミントの確定を確認できませんでした")
	// ErrPurchaseInProgress は同じ購入者の購入が処理中であることを表す
	ErrPurchaseInProgress = errors.New("同じイベントの購入処理が進行中です")
	// ErrUnauthenticated は利用者を特定できないことを表す
	ErrUnauthenticated = errors.New("ログインが必要です")
	// ErrInvalidDelta はレピュテーション増減量が正でないことを表す
	ErrInvalidDelta = errors.New("増減量は正の値である必要があります")
)

// Error はアプリケーション層のエラー
// Reason はドメインの番兵エラー、Cause は下位の原因（無い場合は nil）
type Error struct {
	Kind   Kind
	Reason error
	Cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != nil && e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Reason.Error(), e.Cause)
	case e.Reason != nil:
		return e.Reason.Error()
	case e.Cause != nil:
		return e.Cause.Error()
	default:
		return string(e.Kind)
	}
}

// Unwrap は errors.Is で Reason と Cause の両方を辿れるようにする
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Reason != nil {
		errs = append(errs, e.Reason)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func newError(kind Kind, reason, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

func validationError(reason error) error { return newError(KindValidation, reason, nil) }
func eligibilityError(reason error) error { return newError(KindEligibility, reason, nil) }
func notFoundError(reason error) error { return newError(KindNotFound, reason, nil) }
// mintFailedError は送信済みのトランザクションがあればそのハッシュを理由に含める
func mintFailedError(cause error) error {
	var unconfirmed *chain.UnconfirmedError
	if errors.As(cause, &unconfirmed) {
		return newError(KindMintFailed, fmt.Errorf("%w (tx=%s)", ErrMintUnconfirmed, unconfirmed.TxHash), cause)
	}
	return newError(KindMintFailed, nil, cause)
}
func internalError(cause error) error { return newError(KindInternal, nil, cause) }
func unauthenticatedError() error { return newError(KindUnauthenticated, ErrUnauthenticated, nil) }
func inconsistencyError(reason, cause error) error {
	return newError(KindCommitInconsistency, reason, cause)
}

// KindOf はエラーの分類を返す。アプリケーションエラーでなければ KindInternal
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind は err が指定した分類かを返す
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
