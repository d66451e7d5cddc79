package models

import "errors"

// Failure conditions shared across the adapter and reconciliation
// layers. Callers match with errors.Is.
var (
	// ErrMalformedTokenList: the metadata feed's token list could not
	// be decoded or held fewer than two entries.
	ErrMalformedTokenList = errors.New("malformed outcome token list")

	// ErrTokensUnavailable: a trade or history operation was requested
	// on a market whose outcome tokens are not both known.
	ErrTokensUnavailable = errors.New("outcome tokens unavailable")

	// ErrMalformedTrade: a single trade record could not be parsed.
	// Tolerated per record: the record is dropped, the batch survives.
	ErrMalformedTrade = errors.New("malformed trade record")

	// ErrMalformedHistoryPayload: a history response is structurally
	// broken. Fatal for that request; partial buckets are misleading.
	ErrMalformedHistoryPayload = errors.New("malformed history payload")

	// ErrUpstreamUnavailable: the transport could not complete a
	// request after retries.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
