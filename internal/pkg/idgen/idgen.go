// Package idgen はミントノンスなどの識別子を生成する
package idgen

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	nonceAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	nonceLength   = 21
)

// Generator は識別子の生成器
type Generator interface {
	NewNonce() (string, error)
}

// NanoID は nanoid ベースの Generator
type NanoID struct{}

// NewNonce は冪等キーが無い購入に使うミントノンスを生成する
func (NanoID) NewNonce() (string, error) {
	id, err := gonanoid.Generate(nonceAlphabet, nonceLength)
	if err != nil {
		return "", fmt.Errorf("ノンス生成に失敗: %w", err)
	}
	return "mint_" + id, nil
}
