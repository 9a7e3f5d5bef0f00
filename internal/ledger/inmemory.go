package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/khata-ledger/khata/internal/apperr"
)

// MemoryStore is a concurrency-safe in-memory entry store. Readers get copies,
// so a list never observes a half-applied write.
type MemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	entries map[string]Entry
	// byParty holds entry ids per party in ledger order.
	byParty map[string][]string
}

// NewInMemory creates an empty store, useful for tests and the memory driver.
func NewInMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		byParty: make(map[string][]string),
	}
}

func (s *MemoryStore) Add(ctx context.Context, entry Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.ID]; exists {
		return Entry{}, fmt.Errorf("entry %s already exists", entry.ID)
	}

	s.seq++
	entry.Seq = s.seq
	s.entries[entry.ID] = entry

	ids := s.byParty[entry.PartyID]
	i := sort.Search(len(ids), func(i int) bool { return less(entry, s.entries[ids[i]]) })
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = entry.ID
	s.byParty[entry.PartyID] = ids

	return entry, nil
}

func (s *MemoryStore) Get(ctx context.Context, partyID, entryID string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owned(partyID, entryID)
}

func (s *MemoryStore) Update(ctx context.Context, partyID, entryID string, change Change) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.owned(partyID, entryID)
	if err != nil {
		return Entry{}, err
	}
	entry.Kind = change.Kind
	entry.Amount = change.Amount
	entry.Description = change.Description
	entry.UpdatedAt = change.UpdatedAt
	s.entries[entryID] = entry
	return entry, nil
}

func (s *MemoryStore) Remove(ctx context.Context, partyID, entryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.owned(partyID, entryID); err != nil {
		return err
	}
	delete(s.entries, entryID)

	ids := s.byParty[partyID]
	for i, id := range ids {
		if id == entryID {
			s.byParty[partyID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) ListByParty(ctx context.Context, partyID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byParty[partyID]
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.entries[id])
	}
	return out, nil
}

func (s *MemoryStore) RemoveByParty(ctx context.Context, partyID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byParty[partyID]
	for _, id := range ids {
		delete(s.entries, id)
	}
	delete(s.byParty, partyID)
	return len(ids), nil
}

func (s *MemoryStore) LastCreatedAt(ctx context.Context, partyID string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byParty[partyID]
	if len(ids) == 0 {
		return time.Time{}, nil
	}
	return s.entries[ids[len(ids)-1]].CreatedAt, nil
}

// owned must be called with s.mu held.
func (s *MemoryStore) owned(partyID, entryID string) (Entry, error) {
	entry, ok := s.entries[entryID]
	if !ok {
		return Entry{}, apperr.ErrEntryNotFound
	}
	if entry.PartyID != partyID {
		return Entry{}, apperr.ErrEntryNotOwned
	}
	return entry, nil
}
