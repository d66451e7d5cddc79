// Package recon implements the reconciliation engine: quote
// derivation, trade leg splitting, history window normalization, and
// series merging.
package recon

import "github.com/rewired-gh/polyrecon/internal/price"

// DeriveComplement computes the NO-side quotes from the YES side
// under the binary-market identity: the best NO ask is what it costs
// to bet against the best YES bid, and vice versa.
//
// A nil input yields a nil output; an absent quote is never
// zero-filled. Repeated derivation from the same inputs is exact.
func DeriveComplement(bidYes, askYes *price.Price) (bidNo, askNo *price.Price) {
	if askYes != nil {
		v := askYes.Complement()
		bidNo = &v
	}
	if bidYes != nil {
		v := bidYes.Complement()
		askNo = &v
	}
	return bidNo, askNo
}
