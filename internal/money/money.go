// Package money provides the fixed-point Amount used for every ledger value.
package money

import (
	"fmt"
	"math"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/khata-ledger/khata/internal/apperr"
)

// Scale is the number of fractional digits an entry amount may carry.
const Scale = 2

// maxEntry bounds a single entry so it fits NUMERIC(18,2).
var maxEntry = decimal.New(1, 15)

// Amount is an exact decimal value. The zero value is 0.00.
// Entry amounts are always positive; sums and balances may be zero or negative.
type Amount struct {
	d decimal.Decimal
}

// Zero is 0.00.
var Zero = Amount{}

// Parse validates user input for an entry amount: it must be a finite number
// strictly greater than zero with at most two fractional digits.
func Parse(text string) (Amount, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Amount{}, fmt.Errorf("%w: amount is required", apperr.ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q is not a number", apperr.ErrInvalidAmount, text)
	}
	return positive(d)
}

// FromFloat converts a float input, rejecting NaN and infinities.
func FromFloat(f float64) (Amount, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Amount{}, fmt.Errorf("%w: amount must be finite", apperr.ErrInvalidAmount)
	}
	return positive(decimal.NewFromFloat(f))
}

func positive(d decimal.Decimal) (Amount, error) {
	if !d.IsPositive() {
		return Amount{}, fmt.Errorf("%w: amount must be greater than zero", apperr.ErrInvalidAmount)
	}
	if !d.Equal(d.Round(Scale)) {
		return Amount{}, fmt.Errorf("%w: amount allows at most %d decimal places", apperr.ErrInvalidAmount, Scale)
	}
	if d.GreaterThanOrEqual(maxEntry) {
		return Amount{}, fmt.Errorf("%w: amount is too large", apperr.ErrInvalidAmount)
	}
	return Amount{d: d.Round(Scale)}, nil
}

// FromString decodes a stored value without the entry rules.
func FromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, err
	}
	return Amount{d: d}, nil
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(text string) Amount {
	a, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return a
}

// FromCents builds an amount from minor units.
func FromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -Scale)}
}

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }
func (a Amount) Neg() Amount { return Amount{d: a.d.Neg()} }
func (a Amount) Sign() int { return a.d.Sign() }
func (a Amount) IsZero() bool { return a.d.IsZero() }
func (a Amount) IsPositive() bool { return a.d.IsPositive() }
func (a Amount) IsNegative() bool { return a.d.IsNegative() }
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }
func (a Amount) Decimal() decimal.Decimal { return a.d }

// String renders the value with exactly two fractional digits, independent
// of locale: "1234.50", "-30.00".
func (a Amount) String() string {
	return a.d.StringFixed(Scale)
}

// Display renders the value with the currency's symbol and grouping, e.g.
// "₨1,234.50" for PKR. Unknown currency codes fall back to "CODE 1234.50".
func (a Amount) Display(currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	cur := gomoney.GetCurrency(code)
	if cur == nil {
		return strings.TrimSpace(code + " " + a.String())
	}
	minor := a.d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return gomoney.New(minor, code).Display()
}

// MarshalJSON encodes the amount as a two-digit string so clients never see
// binary floating point.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts a JSON string or number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	a.d = d
	return nil
}
