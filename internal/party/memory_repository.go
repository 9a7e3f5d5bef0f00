package party

import (
	"context"
	"sort"
	"sync"

	"github.com/khata-ledger/khata/internal/apperr"
)

type memoryRepository struct {
	mu       sync.RWMutex
	parties  map[string]Party
	byNumber map[string]string
}

// NewMemoryRepository builds an in-memory party store. The number index is
// checked and updated under the same lock as the write.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		parties:  make(map[string]Party),
		byNumber: make(map[string]string),
	}
}

func (r *memoryRepository) Create(ctx context.Context, p Party) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byNumber[p.Number]; taken {
		return apperr.ErrDuplicateContact
	}
	r.parties[p.ID] = p
	r.byNumber[p.Number] = p.ID
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, id string) (Party, error) {
	if err := ctx.Err(); err != nil {
		return Party{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parties[id]
	if !ok {
		return Party{}, apperr.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepository) Update(ctx context.Context, p Party) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.parties[p.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if owner, taken := r.byNumber[p.Number]; taken && owner != p.ID {
		return apperr.ErrDuplicateContact
	}
	delete(r.byNumber, current.Number)
	p.CreatedAt = current.CreatedAt
	r.parties[p.ID] = p
	r.byNumber[p.Number] = p.ID
	return nil
}

func (r *memoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parties[id]
	if !ok {
		return apperr.ErrNotFound
	}
	delete(r.parties, id)
	delete(r.byNumber, p.Number)
	return nil
}

func (r *memoryRepository) List(ctx context.Context) ([]Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Party, 0, len(r.parties))
	for _, p := range r.parties {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
