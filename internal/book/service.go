// Package book coordinates the party and entry stores with the ledger engine.
// Every mutation runs validate, party lock, party check, then one atomic store
// write; reads replay the party's full entry sequence.
package book

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/khata-ledger/khata/internal/apperr"
	"github.com/khata-ledger/khata/internal/keylock"
	"github.com/khata-ledger/khata/internal/ledger"
	"github.com/khata-ledger/khata/internal/notification"
	"github.com/khata-ledger/khata/internal/party"
)

const (
	notifyTimeout = 2 * time.Second
	sweepTimeout  = 5 * time.Second
)

// EntryInput is the raw, unvalidated form of an entry.
type EntryInput struct {
	Kind        string
	Amount      string
	Description string
}

// View is a party with its postings and totals.
type View struct {
	Party    party.Party      `json:"party"`
	Postings []ledger.Posting `json:"entries"`
	ledger.Totals
}

// Service manages ledger entries for parties.
type Service struct {
	parties  party.Repository
	entries  ledger.Store
	notifier notification.Notifier
	logger   *slog.Logger
	timeout  time.Duration
	locks    *keylock.Locks
	now      func() time.Time
}

// NewService constructs a ledger book. notifier may be nil; a zero timeout
// leaves the caller's deadline in charge.
func NewService(parties party.Repository, entries ledger.Store, notifier notification.Notifier, logger *slog.Logger, timeout time.Duration) *Service {
	return &Service{
		parties:  parties,
		entries:  entries,
		notifier: notifier,
		logger:   logger,
		timeout:  timeout,
		locks:    keylock.New(),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// AddEntry appends a validated entry to the party's ledger.
func (s *Service) AddEntry(ctx context.Context, partyID string, in EntryInput) (ledger.Entry, error) {
	draft, err := ledger.ValidateEntry(in.Kind, in.Amount, in.Description)
	if err != nil {
		return ledger.Entry{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	release, err := s.locks.Acquire(ctx, partyID)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer release()

	if err := s.requireParty(ctx, partyID); err != nil {
		return ledger.Entry{}, err
	}

	now, err := s.entryTime(ctx, partyID)
	if err != nil {
		return ledger.Entry{}, err
	}
	entry, err := s.entries.Add(ctx, ledger.Entry{
		ID:          ledger.NewEntryID(now),
		PartyID:     partyID,
		Kind:        draft.Kind,
		Amount:      draft.Amount,
		Description: draft.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return ledger.Entry{}, apperr.FromStore(err)
	}

	s.logger.Info("entry added", "party_id", partyID, "entry_id", entry.ID, "kind", string(entry.Kind))
	s.publish(ctx, notification.KindEntryAdded, partyID, entry)
	return entry, nil
}

// UpdateEntry rewrites kind, amount and description of an entry the party
// owns. Its position in the ledger does not change.
func (s *Service) UpdateEntry(ctx context.Context, partyID, entryID string, in EntryInput) (ledger.Entry, error) {
	draft, err := ledger.ValidateEntry(in.Kind, in.Amount, in.Description)
	if err != nil {
		return ledger.Entry{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	release, err := s.locks.Acquire(ctx, partyID)
	if err != nil {
		return ledger.Entry{}, err
	}
	defer release()

	if err := s.requireParty(ctx, partyID); err != nil {
		return ledger.Entry{}, err
	}

	entry, err := s.entries.Update(ctx, partyID, entryID, ledger.Change{Draft: draft, UpdatedAt: s.now()})
	if err != nil {
		return ledger.Entry{}, apperr.FromStore(err)
	}

	s.logger.Info("entry updated", "party_id", partyID, "entry_id", entryID)
	s.publish(ctx, notification.KindEntryUpdated, partyID, entry)
	return entry, nil
}

// DeleteEntry removes an entry the party owns.
func (s *Service) DeleteEntry(ctx context.Context, partyID, entryID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	release, err := s.locks.Acquire(ctx, partyID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.requireParty(ctx, partyID); err != nil {
		return err
	}
	if err := s.entries.Remove(ctx, partyID, entryID); err != nil {
		return apperr.FromStore(err)
	}

	s.logger.Info("entry deleted", "party_id", partyID, "entry_id", entryID)
	s.publish(ctx, notification.KindEntryDeleted, partyID, map[string]string{"id": entryID, "partyId": partyID})
	return nil
}

// GetEntry returns one entry of the party.
func (s *Service) GetEntry(ctx context.Context, partyID, entryID string) (ledger.Entry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.requireParty(ctx, partyID); err != nil {
		return ledger.Entry{}, err
	}
	entry, err := s.entries.Get(ctx, partyID, entryID)
	if err != nil {
		return ledger.Entry{}, apperr.FromStore(err)
	}
	return entry, nil
}

// LedgerView loads the party and replays its entries into running balances
// and totals.
func (s *Service) LedgerView(ctx context.Context, partyID string) (View, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.parties.Get(ctx, partyID)
	if err != nil {
		return View{}, partyErr(err)
	}
	entries, err := s.entries.ListByParty(ctx, partyID)
	if err != nil {
		return View{}, apperr.FromStore(err)
	}
	return View{
		Party:    p,
		Postings: ledger.RunningBalances(entries),
		Totals:   ledger.Aggregate(entries),
	}, nil
}

// DeleteParty removes the party and all of its entries. It holds the party
// lock so no entry can be added while the cascade runs. Deleting the party row
// is the commit point: if it fails nothing has changed. SQL stores drop the
// entries with the row; the sweep afterwards clears stores that do not cascade.
func (s *Service) DeleteParty(ctx context.Context, partyID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	release, err := s.locks.Acquire(ctx, partyID)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.parties.Get(ctx, partyID); err != nil {
		return apperr.FromStore(err)
	}
	entries, err := s.entries.ListByParty(ctx, partyID)
	if err != nil {
		return apperr.FromStore(err)
	}
	if err := s.parties.Delete(ctx, partyID); err != nil {
		return apperr.FromStore(err)
	}

	// The party is gone; leftovers are unreachable, so the sweep is detached
	// from the caller's deadline and its failure is only logged.
	sweepCtx, sweepCancel := context.WithTimeout(context.WithoutCancel(ctx), sweepTimeout)
	defer sweepCancel()
	if _, err := s.entries.RemoveByParty(sweepCtx, partyID); err != nil {
		s.logger.Error("sweep entries of deleted party", "party_id", partyID, "error", err)
	}

	s.logger.Info("party deleted", "party_id", partyID, "entries_removed", len(entries))
	s.publish(ctx, notification.KindPartyDeleted, partyID, map[string]any{"id": partyID, "entriesRemoved": len(entries)})
	return nil
}

// entryTime is the creation time for a new entry: the clock, but never
// earlier than the party's newest entry, so a new entry always lands at the
// tail even if the clock steps back. Callers hold the party lock.
func (s *Service) entryTime(ctx context.Context, partyID string) (time.Time, error) {
	now := s.now()
	last, err := s.entries.LastCreatedAt(ctx, partyID)
	if err != nil {
		return time.Time{}, apperr.FromStore(err)
	}
	if now.Before(last) {
		return last, nil
	}
	return now, nil
}

func (s *Service) requireParty(ctx context.Context, partyID string) error {
	if _, err := s.parties.Get(ctx, partyID); err != nil {
		return partyErr(err)
	}
	return nil
}

// partyErr reports a missing party as ErrPartyNotFound for entry operations.
func partyErr(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.ErrPartyNotFound
	}
	return apperr.FromStore(err)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// publish never fails the mutation; delivery errors are only logged.
func (s *Service) publish(ctx context.Context, kind, partyID string, payload any) {
	if s.notifier == nil {
		return
	}
	event, err := notification.NewEvent(kind, partyID, payload, s.now())
	if err != nil {
		s.logger.Warn("encode ledger event", "kind", kind, "error", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.Send(sendCtx, event); err != nil {
		s.logger.Warn("deliver ledger event", "kind", kind, "party_id", partyID, "error", err)
	}
}
