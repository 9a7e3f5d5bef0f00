package ledger

import (
	"strings"
	"unicode/utf8"

	"github.com/khata-ledger/khata/internal/apperr"
	"github.com/khata-ledger/khata/internal/money"
)

// MaxDescriptionLen is counted in characters after trimming.
const MaxDescriptionLen = 200

// Totals summarises a party's entries.
type Totals struct {
	TotalCredit money.Amount `json:"totalCredit"`
	TotalDebit  money.Amount `json:"totalDebit"`
	NetBalance  money.Amount `json:"netBalance"`
}

// Posting pairs an entry with the party's balance right after it.
type Posting struct {
	Entry
	BalanceAfter money.Amount `json:"balanceAfter"`
}

// Aggregate sums credits and debits. An empty slice yields zeros.
func Aggregate(entries []Entry) Totals {
	var t Totals
	for _, e := range entries {
		switch e.Kind {
		case KindCredit:
			t.TotalCredit = t.TotalCredit.Add(e.Amount)
		case KindDebit:
			t.TotalDebit = t.TotalDebit.Add(e.Amount)
		}
	}
	t.NetBalance = t.TotalCredit.Sub(t.TotalDebit)
	return t
}

// RunningBalances replays entries in the given order. The input is not
// modified; the result has one posting per entry.
func RunningBalances(entries []Entry) []Posting {
	out := make([]Posting, len(entries))
	balance := money.Zero
	for i, e := range entries {
		balance = balance.Add(e.Signed())
		out[i] = Posting{Entry: e, BalanceAfter: balance}
	}
	return out
}

// ValidateEntry checks the user-editable fields of an entry. Every violated
// field is reported in a single *apperr.ValidationError.
func ValidateEntry(kind, amount, description string) (Draft, error) {
	var (
		d    Draft
		verr apperr.ValidationError
	)

	d.Kind = Kind(kind)
	if !d.Kind.Valid() {
		verr.Add("kind", apperr.ErrInvalidKind, "must be credit or debit")
	}

	a, err := money.Parse(amount)
	if err != nil {
		verr.Add("amount", apperr.ErrInvalidAmount, amountMessage(err))
	} else {
		d.Amount = a
	}

	d.Description = strings.TrimSpace(description)
	switch n := utf8.RuneCountInString(d.Description); {
	case n == 0:
		verr.Add("description", apperr.ErrInvalidDescription, "is required")
	case n > MaxDescriptionLen:
		verr.Add("description", apperr.ErrInvalidDescription, "must be at most 200 characters")
	}

	if err := verr.OrNil(); err != nil {
		return Draft{}, err
	}
	return d, nil
}

func amountMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), apperr.ErrInvalidAmount.Error()+": ")
	if msg == "" {
		return "must be greater than zero"
	}
	return msg
}
