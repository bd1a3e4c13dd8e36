package ticket

import "time"

// DefaultTokenURI はメタデータを個別に生成しない場合のトークンURI
const DefaultTokenURI = "default-ticket.json"

// Ticket はミント済みチケットを表す
// (EventID, OwnerID) が自然キー、MintNonce がミント単位の冪等性キー
type Ticket struct {
	ID                  string
	EventID             int64
	OwnerID             string
	OwnerAddress        string
	TokenURI            string
	TxHash              string
	MintNonce           string
	Attended            bool
	Refunded            bool
	ReputationDecreased bool
	CreatedAt           time.Time
}

// NewTicket はミント成功後に記録するチケットを作成する
func NewTicket(eventID int64, ownerID, ownerAddress, tokenURI, txHash, mintNonce string, now time.Time) *Ticket {
	return &Ticket{
		EventID:      eventID,
		OwnerID:      ownerID,
		OwnerAddress: ownerAddress,
		TokenURI:     tokenURI,
		TxHash:       txHash,
		MintNonce:    mintNonce,
		CreatedAt:    now,
	}
}

// Validate はチケットの検証を行う
func (t *Ticket) Validate() error {
	if t.EventID == 0 {
		return ErrEventIDRequired
	}
	if t.OwnerID == "" {
		return ErrOwnerRequired
	}
	if t.MintNonce == "" {
		return ErrMintNonceRequired
	}
	return nil
}
