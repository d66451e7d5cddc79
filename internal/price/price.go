// Package price handles price values from prediction market APIs
// without losing precision.
package price

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Price is a probability-like price in micro-units: 1.0 == Scale.
// Six decimal places are the contract precision for derived quotes,
// so complement arithmetic is exact and idempotent.
type Price int64

var _ json.Unmarshaler = (*Price)(nil)

// Scale is the number of micro-units per whole unit.
const Scale int64 = 1_000_000

// Parse converts a decimal string such as "0.62" into a Price.
// Only an unsigned integer part with an optional fractional part is
// accepted; fractional digits beyond six are truncated.
func Parse(s string) (Price, error) {
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}

	var res int64
	i := 0
	sawDigit := false

	for i < len(s) && s[i] != '.' {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid price %q", s)
		}
		res = res*10 + int64(c-'0')*Scale
		sawDigit = true
		i++
	}

	if i < len(s) && s[i] == '.' {
		i++
		mult := Scale
		for i < len(s) {
			c := s[i]
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("invalid price %q", s)
			}
			mult /= 10
			res += int64(c-'0') * mult
			sawDigit = true
			i++
		}
	}

	if !sawDigit {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	return Price(res), nil
}

// FromFloat converts a float probability to a Price, rounding to six
// decimal places (half away from zero).
func FromFloat(f float64) Price {
	return Price(math.Round(f * float64(Scale)))
}

// UnmarshalJSON accepts both quoted decimal strings and raw JSON
// numbers; the APIs use both encodings for the same fields.
func (p *Price) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	v, err := Parse(string(data))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Complement returns 1 - p, the binary-market identity linking the
// YES and NO legs.
func (p Price) Complement() Price {
	return Price(Scale) - p
}

// Float64 returns the price as a plain float.
func (p Price) Float64() float64 {
	return float64(p) / float64(Scale)
}

// String renders the price with up to six decimal places, trailing
// zeros trimmed.
func (p Price) String() string {
	v := int64(p)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := v / Scale
	frac := v % Scale
	if frac == 0 {
		return sign + strconv.FormatInt(whole, 10)
	}
	s := fmt.Sprintf("%s%d.%06d", sign, whole, frac)
	return strings.TrimRight(s, "0")
}
