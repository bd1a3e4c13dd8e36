// Package ethereum は EVM 互換チェーン上のチケットコントラクトを呼び出す
package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ticketABI は ERC-721 チケットコントラクトのうち呼び出す部分だけを定義する
const ticketABI = `[
	{"type":"function","name":"createEvent","stateMutability":"nonpayable","inputs":[
		{"name":"eventId","type":"uint256"},
		{"name":"metadataHash","type":"string"},
		{"name":"maxTickets","type":"uint256"}
	],"outputs":[]},
	{"type":"function","name":"mintTicket","stateMutability":"payable","inputs":[
		{"name":"to","type":"address"},
		{"name":"eventId","type":"uint256"},
		{"name":"tokenURI","type":"string"}
	],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}
	]}
]`

var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

func parseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(ticketABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("ABIの解析に失敗: %w", err)
	}
	return parsed, nil
}

// tokenIDFromReceipt はレシートの Transfer ログからミントされたトークンIDを取り出す
func tokenIDFromReceipt(contract common.Address, receipt *types.Receipt) *big.Int {
	for _, l := range receipt.Logs {
		if l.Address != contract || len(l.Topics) != 4 || l.Topics[0] != transferTopic {
			continue
		}
		// from がゼロアドレスのものがミント
		if common.BytesToAddress(l.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[3].Bytes())
	}
	return nil
}
