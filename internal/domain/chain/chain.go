// Package chain はオンチェーンのチケットコントラクトへのポートを定義する
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrReverted          = errors.New("トランザクションがリバートされました")
	ErrUnsupportedSigner = errors.New("サポートされていない署名者です")
)

// UnconfirmedError は送信済みのトランザクションの確定を確認できなかったことを表す
// トランザクションは後から確定することがある
type UnconfirmedError struct {
	TxHash string
	Err    error
}

func (e *UnconfirmedError) Error() string {
	return fmt.Sprintf("tx %s の確定を確認できません: %v", e.TxHash, e.Err)
}

func (e *UnconfirmedError) Unwrap() error { return e.Err }

// Signer は接続済みウォレットを表す
// 鍵の管理と署名の実装はこのパッケージの範囲外
type Signer interface {
	Address() string
}

// Receipt は確定したトランザクションの結果
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	TokenID     *big.Int
}

// MintRequest は mintTicket の引数
type MintRequest struct {
	To       string
	EventID  int64
	TokenURI string
	Value    *big.Int
}

// Minter はオンチェーンのチケットコントラクト
// 呼び出しは確定するまでブロックし、確定後のロールバックは無い
type Minter interface {
	CreateEvent(ctx context.Context, signer Signer, eventID int64, metadataRef string, maxTickets int) (*Receipt, error)
	MintTicket(ctx context.Context, signer Signer, req MintRequest) (*Receipt, error)
}
