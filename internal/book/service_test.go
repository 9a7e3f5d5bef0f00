package book

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khata-ledger/khata/internal/apperr"
	"github.com/khata-ledger/khata/internal/ledger"
	"github.com/khata-ledger/khata/internal/logging"
	"github.com/khata-ledger/khata/internal/notification"
	"github.com/khata-ledger/khata/internal/party"
)

type testNotifier struct {
	mu       sync.Mutex
	messages []notification.Event
	err      error
}

func (n *testNotifier) Send(_ context.Context, m notification.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
	return n.err
}

func (n *testNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	for i, m := range n.messages {
		out[i] = m.Kind
	}
	return out
}

type fixture struct {
	svc      *Service
	parties  *party.Service
	entries  *ledger.MemoryStore
	notifier *testNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := party.NewMemoryRepository()
	entries := ledger.NewInMemory()
	notifier := &testNotifier{}
	return fixture{
		svc:      NewService(repo, entries, notifier, logging.Discard(), time.Second),
		parties:  party.NewService(repo, logging.Discard(), time.Second),
		entries:  entries,
		notifier: notifier,
	}
}

func (f fixture) party(t *testing.T, number string) party.Party {
	t.Helper()
	p, err := f.parties.Create(context.Background(), party.Fields{Name: "Party " + number, Number: number, Address: "Main Bazar"})
	require.NoError(t, err)
	return p
}

func (f fixture) add(t *testing.T, partyID, kind, amount string) ledger.Entry {
	t.Helper()
	e, err := f.svc.AddEntry(context.Background(), partyID, EntryInput{Kind: kind, Amount: amount, Description: kind + " " + amount})
	require.NoError(t, err)
	return e
}

func balancesOf(v View) []string {
	out := make([]string, len(v.Postings))
	for i, p := range v.Postings {
		out[i] = p.BalanceAfter.String()
	}
	return out
}

func TestLedgerViewScenario(t *testing.T) {
	f := newFixture(t)
	p := f.party(t, "0300")
	f.add(t, p.ID, "credit", "100")
	f.add(t, p.ID, "debit", "30")
	f.add(t, p.ID, "credit", "50")

	view, err := f.svc.LedgerView(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, view.Party.ID)
	assert.Equal(t, "150.00", view.TotalCredit.String())
	assert.Equal(t, "30.00", view.TotalDebit.String())
	assert.Equal(t, "120.00", view.NetBalance.String())
	assert.Equal(t, []string{"100.00", "70.00", "120.00"}, balancesOf(view))
}

func TestAddEntryAppearsOnceAtTail(t *testing.T) {
	f := newFixture(t)
	p := f.party(t, "0300")
	f.add(t, p.ID, "credit", "1")
	f.add(t, p.ID, "credit", "2")
	added := f.add(t, p.ID, "debit", "3")

	listed, err := f.entries.ListByParty(context.Background(), p.ID)
	require.NoError(t, err)
	count := 0
	for _, e := range listed {
		if e.ID == added.ID {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, added.ID, listed[len(listed)-1].ID)
}

func TestAddEntryRejections(t *testing.T) {
	f := newFixture(t)
	p := f.party(t, "0300")
	ctx := context.Background()

	_, err := f.svc.AddEntry(ctx, p.ID, EntryInput{Kind: "refund", Amount: "10", Description: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidKind)

	for _, amount := range []string{"0", "-5"} {
		_, err = f.svc.AddEntry(ctx, p.ID, EntryInput{Kind: "credit", Amount: amount, Description: "x"})
		assert.ErrorIs(t, err, apperr.ErrInvalidAmount, amount)
	}

	_, err = f.svc.AddEntry(ctx, p.ID, EntryInput{Kind: "credit", Amount: "10", Description: ""})
	assert.ErrorIs(t, err, apperr.ErrInvalidDescription)
	_, err = f.svc.AddEntry(ctx, p.ID, EntryInput{Kind: "credit", Amount: "10", Description: strings.Repeat("d", 201)})
	assert.ErrorIs(t, err, apperr.ErrInvalidDescription)

	view, err := f.svc.LedgerView(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Postings)
	assert.Empty(t, f.notifier.kinds())
}

func TestValidationPrecedesExistence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddEntry(ctx, "ghost", EntryInput{Kind: "credit", Amount: "0", Description: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
	assert.NotErrorIs(t, err, apperr.ErrPartyNotFound)

	_, err = f.svc.AddEntry(ctx, "ghost", EntryInput{Kind: "credit", Amount: "5", Description: "x"})
	assert.ErrorIs(t, err, apperr.ErrPartyNotFound)

	_, err = f.svc.UpdateEntry(ctx, "ghost", "e1", EntryInput{Kind: "credit", Amount: "5", Description: "x"})
	assert.ErrorIs(t, err, apperr.ErrPartyNotFound)

	assert.ErrorIs(t, f.svc.DeleteEntry(ctx, "ghost", "e1"), apperr.ErrPartyNotFound)

	_, err = f.svc.LedgerView(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrPartyNotFound)
}

func TestCrossPartyIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.party(t, "0300")
	b := f.party(t, "0301")
	owned := f.add(t, b.ID, "credit", "40")
	f.add(t, b.ID, "debit", "15")
	before, err := f.svc.LedgerView(ctx, b.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteEntry(ctx, a.ID, owned.ID), apperr.ErrEntryNotOwned)
	_, err = f.svc.UpdateEntry(ctx, a.ID, owned.ID, EntryInput{Kind: "debit", Amount: "1", Description: "x"})
	assert.ErrorIs(t, err, apperr.ErrEntryNotOwned)
	_, err = f.svc.GetEntry(ctx, a.ID, owned.ID)
	assert.ErrorIs(t, err, apperr.ErrEntryNotOwned)

	assert.ErrorIs(t, f.svc.DeleteEntry(ctx, a.ID, "missing"), apperr.ErrEntryNotFound)

	after, err := f.svc.LedgerView(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateMiddleEntryRecomputesBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.party(t, "0300")
	f.add(t, p.ID, "credit", "100")
	middle := f.add(t, p.ID, "debit", "30")
	f.add(t, p.ID, "credit", "50")

	updated, err := f.svc.UpdateEntry(ctx, p.ID, middle.ID, EntryInput{Kind: "debit", Amount: "45.5", Description: "  corrected  "})
	require.NoError(t, err)
	assert.Equal(t, "corrected", updated.Description)
	assert.Equal(t, middle.CreatedAt, updated.CreatedAt)

	view, err := f.svc.LedgerView(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"100.00", "54.50", "104.50"}, balancesOf(view))
	assert.Equal(t, "104.50", view.NetBalance.String())

	got, err := f.svc.GetEntry(ctx, p.ID, middle.ID)
	require.NoError(t, err)
	assert.Equal(t, "45.50", got.Amount.String())
}

func TestDeleteEntryReplaysWithoutIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.party(t, "0300")
	f.add(t, p.ID, "credit", "100")
	gone := f.add(t, p.ID, "debit", "30")
	f.add(t, p.ID, "credit", "50")

	require.NoError(t, f.svc.DeleteEntry(ctx, p.ID, gone.ID))
	view, err := f.svc.LedgerView(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"100.00", "150.00"}, balancesOf(view))

	assert.ErrorIs(t, f.svc.DeleteEntry(ctx, p.ID, gone.ID), apperr.ErrEntryNotFound)
}

func TestDeletePartyCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.party(t, "0300")
	other := f.party(t, "0301")
	e := f.add(t, p.ID, "credit", "10")
	f.add(t, other.ID, "credit", "99")

	require.NoError(t, f.svc.DeleteParty(ctx, p.ID))
	assert.ErrorIs(t, f.svc.DeleteParty(ctx, p.ID), apperr.ErrNotFound)

	_, err := f.entries.Get(ctx, p.ID, e.ID)
	assert.ErrorIs(t, err, apperr.ErrEntryNotFound)
	_, err = f.svc.LedgerView(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrPartyNotFound)

	view, err := f.svc.LedgerView(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, view.Postings, 1)
	assert.Equal(t, notification.KindPartyDeleted, f.notifier.kinds()[len(f.notifier.kinds())-1])
}

func TestConcurrentMutationsOnOneParty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.party(t, "0300")

	seed := make([]ledger.Entry, 10)
	for i := range seed {
		seed[i] = f.add(t, p.ID, "credit", "10")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if _, err := f.svc.AddEntry(ctx, p.ID, EntryInput{Kind: "debit", Amount: "1", Description: fmt.Sprintf("d%d", i)}); err != nil {
				t.Errorf("add: %v", err)
			}
		}(i)
		go func(e ledger.Entry) {
			defer wg.Done()
			if err := f.svc.DeleteEntry(ctx, p.ID, e.ID); err != nil {
				t.Errorf("delete: %v", err)
			}
		}(seed[i])
	}
	wg.Wait()

	view, err := f.svc.LedgerView(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, view.Postings, 10)
	assert.Equal(t, "-10.00", view.NetBalance.String())
	assert.Zero(t, f.svc.locks.Len())
}

func TestLockWaitHonoursDeadline(t *testing.T) {
	f := newFixture(t)
	p := f.party(t, "0300")

	release, err := f.svc.locks.Acquire(context.Background(), p.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.svc.AddEntry(ctx, p.ID, EntryInput{Kind: "credit", Amount: "5", Description: "late"})
	assert.ErrorIs(t, err, apperr.ErrTimeout)

	release()
	view, err := f.svc.LedgerView(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Postings)
}

func TestEventsArePublishedAfterSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.party(t, "0300")

	e := f.add(t, p.ID, "credit", "10")
	_, err := f.svc.UpdateEntry(ctx, p.ID, e.ID, EntryInput{Kind: "credit", Amount: "12", Description: "x"})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteEntry(ctx, p.ID, e.ID))

	assert.Equal(t, []string{notification.KindEntryAdded, notification.KindEntryUpdated, notification.KindEntryDeleted}, f.notifier.kinds())

	var data map[string]any
	require.NoError(t, json.Unmarshal(f.notifier.messages[0].Data, &data))
	assert.Equal(t, e.ID, data["id"])
	assert.Equal(t, p.ID, f.notifier.messages[0].PartyID)
}

func TestNotifierFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	p := f.party(t, "0300")

	_, err := f.svc.AddEntry(context.Background(), p.ID, EntryInput{Kind: "credit", Amount: "1", Description: "x"})
	assert.NoError(t, err)
}

type slowStore struct {
	ledger.Store
}

func (s slowStore) ListByParty(ctx context.Context, partyID string) ([]ledger.Entry, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStoreDeadlineSurfacesAsTimeout(t *testing.T) {
	repo := party.NewMemoryRepository()
	parties := party.NewService(repo, logging.Discard(), 0)
	p, err := parties.Create(context.Background(), party.Fields{Name: "n", Number: "1", Address: "a"})
	require.NoError(t, err)

	svc := NewService(repo, slowStore{Store: ledger.NewInMemory()}, nil, logging.Discard(), 20*time.Millisecond)
	_, err = svc.LedgerView(context.Background(), p.ID)
	assert.ErrorIs(t, err, apperr.ErrTimeout)
	assert.Equal(t, "timeout", apperr.Kind(err))
}

func TestUpdateEntryRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.party(t, "0300")
	e := f.add(t, p.ID, "credit", "10")

	cases := []struct {
		name string
		in   EntryInput
		want error
	}{
		{"unknown kind", EntryInput{Kind: "refund", Amount: "10", Description: "x"}, apperr.ErrInvalidKind},
		{"zero amount", EntryInput{Kind: "credit", Amount: "0", Description: "x"}, apperr.ErrInvalidAmount},
		{"negative amount", EntryInput{Kind: "credit", Amount: "-5", Description: "x"}, apperr.ErrInvalidAmount},
		{"empty description", EntryInput{Kind: "credit", Amount: "10", Description: ""}, apperr.ErrInvalidDescription},
		{"long description", EntryInput{Kind: "credit", Amount: "10", Description: strings.Repeat("d", 201)}, apperr.ErrInvalidDescription},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.UpdateEntry(ctx, p.ID, e.ID, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	got, err := f.svc.GetEntry(ctx, p.ID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)
	assert.Equal(t, []string{notification.KindEntryAdded}, f.notifier.kinds())
}

func TestEntryMutationsOnMissingParty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.party(t, "0300")
	e := f.add(t, p.ID, "credit", "10")

	_, err := f.svc.UpdateEntry(ctx, "ghost", e.ID, EntryInput{Kind: "debit", Amount: "5", Description: "x"})
	assert.ErrorIs(t, err, apperr.ErrPartyNotFound)
	assert.NotErrorIs(t, err, apperr.ErrEntryNotOwned)

	err = f.svc.DeleteEntry(ctx, "ghost", e.ID)
	assert.ErrorIs(t, err, apperr.ErrPartyNotFound)
	assert.NotErrorIs(t, err, apperr.ErrEntryNotOwned)

	got, err := f.entries.Get(ctx, p.ID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

type failingDeleteRepo struct {
	party.Repository
}

func (failingDeleteRepo) Delete(context.Context, string) error {
	return errors.New("connection reset")
}

func TestFailedPartyDeleteKeepsLedger(t *testing.T) {
	repo := failingDeleteRepo{Repository: party.NewMemoryRepository()}
	entries := ledger.NewInMemory()
	svc := NewService(repo, entries, nil, logging.Discard(), time.Second)
	parties := party.NewService(repo, logging.Discard(), time.Second)
	ctx := context.Background()

	p, err := parties.Create(ctx, party.Fields{Name: "n", Number: "1", Address: "a"})
	require.NoError(t, err)
	_, err = svc.AddEntry(ctx, p.ID, EntryInput{Kind: "credit", Amount: "100", Description: "opening"})
	require.NoError(t, err)

	err = svc.DeleteParty(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)

	view, err := svc.LedgerView(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, view.Postings, 1)
	assert.Equal(t, "100.00", view.NetBalance.String())
}

func TestAddEntryStaysAtTailWhenClockStepsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.party(t, "0300")

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{t0, t0.Add(-time.Hour)}
	f.svc.now = func() time.Time {
		now := clock[0]
		if len(clock) > 1 {
			clock = clock[1:]
		}
		return now
	}

	first := f.add(t, p.ID, "credit", "10")
	second := f.add(t, p.ID, "debit", "4")
	assert.False(t, second.CreatedAt.Before(first.CreatedAt))

	view, err := f.svc.LedgerView(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, view.Postings, 2)
	assert.Equal(t, second.ID, view.Postings[1].ID)
	assert.Equal(t, "6.00", view.Postings[1].BalanceAfter.String())
}
