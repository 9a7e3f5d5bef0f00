package ledger

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khata-ledger/khata/internal/apperr"
	"github.com/khata-ledger/khata/internal/money"
)

func entry(kind Kind, amount string) Entry {
	return Entry{ID: NewEntryID(time.Now()), PartyID: "p1", Kind: kind, Amount: money.MustParse(amount), Description: "x"}
}

func balances(postings []Posting) []string {
	out := make([]string, len(postings))
	for i, p := range postings {
		out[i] = p.BalanceAfter.String()
	}
	return out
}

func TestAggregateEmpty(t *testing.T) {
	totals := Aggregate(nil)
	assert.True(t, totals.TotalCredit.IsZero())
	assert.True(t, totals.TotalDebit.IsZero())
	assert.True(t, totals.NetBalance.IsZero())
	assert.Empty(t, RunningBalances(nil))
}

func TestLedgerScenario(t *testing.T) {
	entries := []Entry{entry(KindCredit, "100"), entry(KindDebit, "30"), entry(KindCredit, "50")}

	totals := Aggregate(entries)
	assert.Equal(t, "150.00", totals.TotalCredit.String())
	assert.Equal(t, "30.00", totals.TotalDebit.String())
	assert.Equal(t, "120.00", totals.NetBalance.String())
	assert.Equal(t, []string{"100.00", "70.00", "120.00"}, balances(RunningBalances(entries)))
}

func TestRandomSequencesAreConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		n := rng.Intn(200)
		entries := make([]Entry, n)
		for i := range entries {
			kind := KindCredit
			if rng.Intn(2) == 0 {
				kind = KindDebit
			}
			entries[i] = Entry{Kind: kind, Amount: money.FromCents(int64(rng.Intn(1_000_000) + 1))}
		}

		totals := Aggregate(entries)
		require.True(t, totals.NetBalance.Equal(totals.TotalCredit.Sub(totals.TotalDebit)))

		postings := RunningBalances(entries)
		prev := money.Zero
		for i, p := range postings {
			require.True(t, p.BalanceAfter.Equal(prev.Add(entries[i].Signed())), "round %d index %d", round, i)
			prev = p.BalanceAfter
		}
		if n > 0 {
			assert.True(t, prev.Equal(totals.NetBalance))
		}
	}
}

func TestEngineDoesNotMutateInput(t *testing.T) {
	entries := []Entry{entry(KindCredit, "10.25"), entry(KindDebit, "3.10")}
	snapshot := append([]Entry(nil), entries...)

	first := RunningBalances(entries)
	second := RunningBalances(entries)
	assert.Equal(t, first, second)
	assert.Equal(t, Aggregate(entries), Aggregate(entries))
	assert.Equal(t, snapshot, entries)
}

func TestDeletionReplaysAsIfNeverPresent(t *testing.T) {
	a, b, c, d := entry(KindCredit, "100"), entry(KindDebit, "30"), entry(KindCredit, "50"), entry(KindDebit, "5")
	withB := []Entry{a, b, c, d}
	withoutB := []Entry{a, c, d}

	after := RunningBalances(withB)
	without := RunningBalances(withoutB)
	assert.Equal(t, []string{"100.00", "150.00", "145.00"}, balances(without))
	assert.Equal(t, "115.00", after[3].BalanceAfter.String())
	assert.Equal(t, Aggregate(withoutB).NetBalance.String(), without[2].BalanceAfter.String())
}

func TestValidateEntry(t *testing.T) {
	d, err := ValidateEntry("credit", " 10.5 ", "  milk  ")
	require.NoError(t, err)
	assert.Equal(t, KindCredit, d.Kind)
	assert.Equal(t, "10.50", d.Amount.String())
	assert.Equal(t, "milk", d.Description)

	_, err = ValidateEntry("refund", "10", "x")
	assert.ErrorIs(t, err, apperr.ErrInvalidKind)

	for _, amount := range []string{"0", "-5", "NaN", ""} {
		_, err = ValidateEntry("credit", amount, "x")
		assert.ErrorIs(t, err, apperr.ErrInvalidAmount, amount)
	}

	_, err = ValidateEntry("credit", "10", "   ")
	assert.ErrorIs(t, err, apperr.ErrInvalidDescription)
	_, err = ValidateEntry("credit", "10", strings.Repeat("a", 201))
	assert.ErrorIs(t, err, apperr.ErrInvalidDescription)
	_, err = ValidateEntry("debit", "10", strings.Repeat("ü", 200))
	assert.NoError(t, err)
}

func TestValidateEntryReportsEveryField(t *testing.T) {
	_, err := ValidateEntry("CREDIT", "-1", "")
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 3)
	assert.Equal(t, "kind", verr.Fields[0].Field)
	assert.Equal(t, "amount", verr.Fields[1].Field)
	assert.Equal(t, "description", verr.Fields[2].Field)
}
