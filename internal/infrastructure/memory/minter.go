package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/chain"
)

// Minter はプロセス内で完結するチケットコントラクト
// ローカル実行用で、呼び出しはすぐに確定する
type Minter struct {
	mu      sync.Mutex
	events  map[int64]int
	minted  map[int64]int
	nextTok int64
	block   uint64
}

func NewMinter() *Minter {
	return &Minter{events: make(map[int64]int), minted: make(map[int64]int)}
}

func (m *Minter) CreateEvent(ctx context.Context, signer chain.Signer, eventID int64, metadataRef string, maxTickets int) (*chain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, chain.ErrUnsupportedSigner
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; ok {
		return nil, fmt.Errorf("イベント %d は既に存在します: %w", eventID, chain.ErrReverted)
	}
	m.events[eventID] = maxTickets
	return m.receipt("createEvent", signer.Address(), eventID, metadataRef, nil), nil
}

func (m *Minter) MintTicket(ctx context.Context, signer chain.Signer, req chain.MintRequest) (*chain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, chain.ErrUnsupportedSigner
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[req.EventID]; !ok {
		return nil, fmt.Errorf("イベント %d は存在しません: %w", req.EventID, chain.ErrReverted)
	}
	m.minted[req.EventID]++
	m.nextTok++
	return m.receipt("mintTicket", req.To, req.EventID, req.TokenURI, big.NewInt(m.nextTok)), nil
}

// Minted はイベントのミント済み枚数を返す
func (m *Minter) Minted(eventID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.minted[eventID]
}

func (m *Minter) receipt(method, from string, eventID int64, ref string, tokenID *big.Int) *chain.Receipt {
	m.block++
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s:%s:%d:%s:%d", method, from, eventID, ref, m.block)))
	return &chain.Receipt{TxHash: hash.Hex(), BlockNumber: m.block, TokenID: tokenID}
}
