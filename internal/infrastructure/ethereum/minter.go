package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/chain"
)

// Backend はコントラクト呼び出しとレシート待ちに必要なクライアント
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Minter はチケットコントラクトの chain.Minter 実装
// 署名者は *KeySigner のみ受け付ける
type Minter struct {
	backend  Backend
	contract *bind.BoundContract
	address  common.Address
	chainID  *big.Int
}

// Dial はRPCエンドポイントに接続する
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("RPC接続に失敗: %w", err)
	}
	return client, nil
}

func NewMinter(backend Backend, contractAddress string, chainID int64) (*Minter, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("コントラクトアドレスが不正です: %q", contractAddress)
	}
	parsed, err := parseABI()
	if err != nil {
		return nil, err
	}
	address := common.HexToAddress(contractAddress)
	return &Minter{
		backend:  backend,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		address:  address,
		chainID:  big.NewInt(chainID),
	}, nil
}

func (m *Minter) CreateEvent(ctx context.Context, signer chain.Signer, eventID int64, metadataRef string, maxTickets int) (*chain.Receipt, error) {
	return m.transact(ctx, signer, nil, "createEvent", big.NewInt(eventID), metadataRef, big.NewInt(int64(maxTickets)))
}

func (m *Minter) MintTicket(ctx context.Context, signer chain.Signer, req chain.MintRequest) (*chain.Receipt, error) {
	if !common.IsHexAddress(req.To) {
		return nil, fmt.Errorf("購入者のアドレスが不正です: %q", req.To)
	}
	return m.transact(ctx, signer, req.Value, "mintTicket", common.HexToAddress(req.To), big.NewInt(req.EventID), req.TokenURI)
}

// transact はトランザクションを送信し、確定するまで待つ
func (m *Minter) transact(ctx context.Context, signer chain.Signer, value *big.Int, method string, args ...any) (*chain.Receipt, error) {
	ks, ok := signer.(*KeySigner)
	if !ok {
		return nil, chain.ErrUnsupportedSigner
	}
	opts, err := ks.transactOpts(ctx, m.chainID)
	if err != nil {
		return nil, err
	}
	opts.Value = value

	tx, err := m.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s の送信に失敗: %w", method, err)
	}
	receipt, err := bind.WaitMined(ctx, m.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("%s の確定待ちに失敗: %w", method, &chain.UnconfirmedError{TxHash: tx.Hash().Hex(), Err: err})
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s (tx=%s): %w", method, tx.Hash().Hex(), chain.ErrReverted)
	}

	out := &chain.Receipt{TxHash: receipt.TxHash.Hex()}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	out.TokenID = tokenIDFromReceipt(m.address, receipt)
	return out, nil
}

var _ chain.Minter = (*Minter)(nil)
