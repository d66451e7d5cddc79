package polymarket

import (
	"encoding/json"

	"github.com/rewired-gh/polyrecon/internal/price"
)

// gammaMarket is a market record from the Gamma /markets endpoint.
// Quote fields are pointers because inactive markets omit them.
type gammaMarket struct {
	ID           string       `json:"id"`
	Question     string       `json:"question"`
	Title        string       `json:"title"`
	Active       bool         `json:"active"`
	Closed       bool         `json:"closed"`
	EndDate      string       `json:"endDate"`
	ClobTokenIDs string       `json:"clobTokenIds"` // JSON string: "[\"token1\", \"token2\"]"
	BestBid      *price.Price `json:"bestBid"`
	BestAsk      *price.Price `json:"bestAsk"`
	Events       []gammaEvent `json:"events"`
}

type gammaEvent struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Markets []gammaMarket `json:"markets"`
}

// searchResponse is the Gamma /public-search envelope. Only the
// events section is requested; tags and profiles are suppressed.
type searchResponse struct {
	Events []gammaEvent `json:"events"`
}

// SearchHit is one market found by a text search, with its owning
// event attached for context.
type SearchHit struct {
	MarketID   string
	Question   string
	EventID    string
	EventTitle string
	Active     bool
	Closed     bool
	EndDate    string
}

// dataTrade is one record from the Data-API /trades endpoint. The
// price is kept raw so a non-numeric value can be rejected per record
// downstream instead of failing the batch here.
type dataTrade struct {
	Asset     string          `json:"asset"`
	Price     json.RawMessage `json:"price"`
	Timestamp int64           `json:"timestamp"` // epoch seconds
}

// historyResponse is the CLOB /prices-history envelope. Point fields
// are pointers: a bucket missing its timestamp or price marks the
// whole payload malformed.
type historyResponse struct {
	History []historyPoint `json:"history"`
}

type historyPoint struct {
	T *int64       `json:"t"` // epoch seconds
	P *price.Price `json:"p"`
}
