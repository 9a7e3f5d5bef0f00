package ledger

import (
	"context"
	"time"

	"github.com/khata-ledger/khata/internal/money"
)

// Kind is the direction of an entry.
type Kind string

const (
	// KindCredit increases the party's balance.
	KindCredit Kind = "credit"
	// KindDebit decreases the party's balance.
	KindDebit Kind = "debit"
)

// Valid reports whether k is one of the two entry kinds.
func (k Kind) Valid() bool {
	return k == KindCredit || k == KindDebit
}

// Entry is a single signed monetary record attached to a party.
type Entry struct {
	ID          string       `json:"id"`
	PartyID     string       `json:"partyId"`
	Kind        Kind         `json:"kind"`
	Amount      money.Amount `json:"amount"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	// Seq is assigned by the store and breaks ties between entries created
	// within the same millisecond.
	Seq int64 `json:"seq"`
}

// Signed returns +amount for credits and -amount for debits.
func (e Entry) Signed() money.Amount {
	if e.Kind == KindDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Draft holds the validated, user-editable fields of an entry.
type Draft struct {
	Kind        Kind
	Amount      money.Amount
	Description string
}

// Change is an in-place edit of an existing entry.
type Change struct {
	Draft
	UpdatedAt time.Time
}

// Store persists entries scoped to a party. Implementations return entries of
// a party ordered by CreatedAt ascending, then Seq ascending.
//
// Get, Update and Remove fail with apperr.ErrEntryNotFound when no entry has
// the given id, and apperr.ErrEntryNotOwned when it exists under another party.
type Store interface {
	Add(ctx context.Context, entry Entry) (Entry, error)
	Get(ctx context.Context, partyID, entryID string) (Entry, error)
	Update(ctx context.Context, partyID, entryID string, change Change) (Entry, error)
	Remove(ctx context.Context, partyID, entryID string) error
	ListByParty(ctx context.Context, partyID string) ([]Entry, error)
	RemoveByParty(ctx context.Context, partyID string) (int, error)
	// LastCreatedAt is the CreatedAt of the party's newest entry, or the zero
	// time when it has none.
	LastCreatedAt(ctx context.Context, partyID string) (time.Time, error)
}

func less(a, b Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}
