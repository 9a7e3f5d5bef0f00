package party

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/khata-ledger/khata/internal/apperr"
	"github.com/khata-ledger/khata/internal/keylock"
)

// Service manages party records.
type Service struct {
	repo    Repository
	logger  *slog.Logger
	timeout time.Duration
	locks   *keylock.Locks
	now     func() time.Time
}

// NewService creates a party service. A zero timeout leaves the caller's
// deadline in charge.
func NewService(repo Repository, logger *slog.Logger, timeout time.Duration) *Service {
	return &Service{
		repo:    repo,
		logger:  logger,
		timeout: timeout,
		locks:   keylock.New(),
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Create validates the fields and stores a new party.
func (s *Service) Create(ctx context.Context, f Fields) (Party, error) {
	f, err := validate(f)
	if err != nil {
		return Party{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	p := Party{
		ID:        uuid.NewString(),
		Name:      f.Name,
		Number:    f.Number,
		Address:   f.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Party{}, apperr.FromStore(err)
	}
	s.logger.Info("party created", "party_id", p.ID)
	return p, nil
}

// Get returns a party or apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Party, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Party{}, apperr.FromStore(err)
	}
	return p, nil
}

// Update applies patch to the party's name, number and address. The fields
// the patch sets are validated before the store is touched, and concurrent
// patches of one party are applied one after the other.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (Party, error) {
	if err := validatePatch(patch); err != nil {
		return Party{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	release, err := s.locks.Acquire(ctx, id)
	if err != nil {
		return Party{}, err
	}
	defer release()

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Party{}, apperr.FromStore(err)
	}

	f := Fields{Name: p.Name, Number: p.Number, Address: p.Address}
	if patch.Name != nil {
		f.Name = *patch.Name
	}
	if patch.Number != nil {
		f.Number = *patch.Number
	}
	if patch.Address != nil {
		f.Address = *patch.Address
	}
	if f, err = validate(f); err != nil {
		return Party{}, err
	}

	p.Name, p.Number, p.Address = f.Name, f.Number, f.Address
	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return Party{}, apperr.FromStore(err)
	}
	s.logger.Info("party updated", "party_id", p.ID)
	return p, nil
}

// List returns every party whose name, number or address contains query,
// ignoring case. An empty query returns all parties.
func (s *Service) List(ctx context.Context, query string) ([]Party, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	return Filter(all, query), nil
}

// Filter is the post-fetch search used by List.
func Filter(parties []Party, query string) []Party {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Party, 0, len(parties))
	for _, p := range parties {
		if q == "" ||
			strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Number), q) ||
			strings.Contains(strings.ToLower(p.Address), q) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func validate(f Fields) (Fields, error) {
	var verr apperr.ValidationError
	f.Name = checkName(&verr, f.Name)
	f.Number = checkRequired(&verr, "number", f.Number)
	f.Address = checkRequired(&verr, "address", f.Address)
	return f, verr.OrNil()
}

// validatePatch checks only the fields the patch sets.
func validatePatch(p Patch) error {
	var verr apperr.ValidationError
	if p.Name != nil {
		checkName(&verr, *p.Name)
	}
	if p.Number != nil {
		checkRequired(&verr, "number", *p.Number)
	}
	if p.Address != nil {
		checkRequired(&verr, "address", *p.Address)
	}
	return verr.OrNil()
}

func checkName(verr *apperr.ValidationError, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		verr.Add("name", apperr.ErrInvalidField, "is required")
	case utf8.RuneCountInString(name) > MaxNameLen:
		verr.Add("name", apperr.ErrInvalidField, "must be at most 60 characters")
	}
	return name
}

func checkRequired(verr *apperr.ValidationError, field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		verr.Add(field, apperr.ErrInvalidField, "is required")
	}
	return value
}
