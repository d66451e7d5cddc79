package recon

import (
	"testing"

	"github.com/rewired-gh/polyrecon/internal/price"
)

func pp(p price.Price) *price.Price { return &p }

func TestDeriveComplement(t *testing.T) {
	tests := []struct {
		name       string
		bidYes     *price.Price
		askYes     *price.Price
		wantBidNo  *price.Price
		wantAskNo  *price.Price
	}{
		{
			name:      "both sides present",
			bidYes:    pp(620_000),
			askYes:    pp(650_000),
			wantBidNo: pp(350_000),
			wantAskNo: pp(380_000),
		},
		{
			name:      "only bid present",
			bidYes:    pp(620_000),
			wantAskNo: pp(380_000),
		},
		{
			name:      "only ask present",
			askYes:    pp(650_000),
			wantBidNo: pp(350_000),
		},
		{
			name: "nothing present",
		},
		{
			name:      "boundary values",
			bidYes:    pp(0),
			askYes:    pp(1_000_000),
			wantBidNo: pp(0),
			wantAskNo: pp(1_000_000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bidNo, askNo := DeriveComplement(tt.bidYes, tt.askYes)
			checkQuote(t, "bidNo", bidNo, tt.wantBidNo)
			checkQuote(t, "askNo", askNo, tt.wantAskNo)
		})
	}
}

func TestDeriveComplement_Idempotent(t *testing.T) {
	bidYes, askYes := pp(123_456), pp(654_321)
	bidNo1, askNo1 := DeriveComplement(bidYes, askYes)
	bidNo2, askNo2 := DeriveComplement(bidYes, askYes)
	if *bidNo1 != *bidNo2 || *askNo1 != *askNo2 {
		t.Error("repeated derivation produced different results")
	}
}

func checkQuote(t *testing.T, name string, got, want *price.Price) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("%s = %s, want absent", name, got)
	case want != nil && got == nil:
		t.Errorf("%s absent, want %s", name, want)
	case want != nil && *got != *want:
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}
