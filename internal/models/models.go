// Package models defines the core domain entities: market state,
// trades, and price-history points.
package models

import (
	"errors"
	"time"

	"github.com/rewired-gh/polyrecon/internal/price"
)

// Leg identifies one side of a binary market.
type Leg int

const (
	LegYes Leg = iota
	LegNo
)

func (l Leg) String() string {
	switch l {
	case LegYes:
		return "yes"
	case LegNo:
		return "no"
	default:
		return "unknown"
	}
}

// MarketState holds a market's identity, outcome tokens, status, and
// current quotes. Quotes are pointers: nil means the feed did not
// report the field, which is distinct from a zero price.
type MarketState struct {
	MarketID   string
	Question   string
	EventID    string
	EventTitle string

	// Outcome token ids, immutable for the market's lifetime.
	// Both empty when the upstream token list was malformed.
	TokenYes string
	TokenNo  string

	// TokensMalformed records that the upstream clobTokenIds field
	// could not be decoded; token-dependent operations must refuse
	// to run rather than proceed with partial data.
	TokensMalformed bool

	Active  bool
	Closed  bool
	EndDate *time.Time // nil = unknown or unparseable

	BidYes *price.Price
	AskYes *price.Price
	BidNo  *price.Price
	AskNo  *price.Price

	LastUpdated time.Time
}

// HasTokens reports whether both outcome tokens are known.
func (m *MarketState) HasTokens() bool {
	return m.TokenYes != "" && m.TokenNo != ""
}

// Validate checks market state field constraints.
func (m *MarketState) Validate() error {
	if m.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if m.HasTokens() && m.TokenYes == m.TokenNo {
		return errors.New("outcome tokens must be distinct")
	}
	for _, q := range []*price.Price{m.BidYes, m.AskYes, m.BidNo, m.AskNo} {
		if q == nil {
			continue
		}
		if *q < 0 || *q > price.Price(price.Scale) {
			return errors.New("quote must be between 0.0 and 1.0")
		}
	}
	return nil
}

// RawTrade is a single trade record as delivered by the trade feed,
// with the price still uncoerced. Produced at the adapter boundary.
type RawTrade struct {
	Asset     string
	Price     string
	Timestamp time.Time
}

// TradePoint is one trade attributed to an outcome leg.
type TradePoint struct {
	Timestamp time.Time
	Price     price.Price
	Leg       Leg
}

// HistoryPoint is one bucketed price observation for a single token.
type HistoryPoint struct {
	Timestamp time.Time
	Price     price.Price
}

// SeriesPoint is one observation of a unified YES-denominated price
// timeline, tagged with the leg that produced it.
type SeriesPoint struct {
	Timestamp time.Time
	YesPrice  price.Price
	Source    Leg
}
