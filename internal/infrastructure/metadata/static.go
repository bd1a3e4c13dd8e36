// Package metadata はミントするチケットのトークンメタデータを用意する
package metadata

import (
	"context"

	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/event"
	"github.com/sanosuguru/go-nft-ticket-issuance/internal/domain/ticket"
)

// Static は全チケットに同じトークンURIを返す
type Static struct {
	uri string
}

// NewStatic は固定URIのメタデータを作成する
// uri が空の場合は既定のURIを使う
func NewStatic(uri string) *Static {
	if uri == "" {
		uri = ticket.DefaultTokenURI
	}
	return &Static{uri: uri}
}

// TokenURI は固定URIを返す
func (s *Static) TokenURI(_ context.Context, _ *event.Event, _, _ string) (string, error) {
	return s.uri, nil
}
