// Package report filters, orders, pages and exports a party's postings. All
// functions work on already computed running balances, so a filtered view
// still shows each entry's true historical balance.
package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/khata-ledger/khata/internal/apperr"
	"github.com/khata-ledger/khata/internal/ledger"
)

// Order of postings by creation time.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

const (
	DefaultSize = 50
	MaxSize     = 500
)

// Query selects a window of a ledger view. Zero values mean "no constraint";
// Page is 1-based and Size 0 disables paging.
type Query struct {
	Search string
	Kind   ledger.Kind
	From   time.Time
	// To is exclusive.
	To    time.Time
	Order Order
	Page  int
	Size  int
}

// Page is a filtered, ordered slice of postings.
type Page struct {
	Postings []ledger.Posting `json:"entries"`
	Matched  int              `json:"matched"`
	Page     int              `json:"page"`
	Size     int              `json:"size"`
}

// Apply runs Filter, Sort and Paginate in that order.
func Apply(postings []ledger.Posting, q Query) Page {
	matched := Sort(Filter(postings, q), q.Order)
	return Page{
		Postings: Paginate(matched, q.Page, q.Size),
		Matched:  len(matched),
		Page:     q.Page,
		Size:     q.Size,
	}
}

// Filter keeps postings matching every set constraint of q. Search matches the
// description case-insensitively.
func Filter(postings []ledger.Posting, q Query) []ledger.Posting {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]ledger.Posting, 0, len(postings))
	for _, p := range postings {
		if search != "" && !strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if q.Kind != "" && p.Kind != q.Kind {
			continue
		}
		if !q.From.IsZero() && p.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !p.CreatedAt.Before(q.To) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Sort returns postings in the requested order. Input is expected in ledger
// order, so Desc is its exact reverse.
func Sort(postings []ledger.Posting, order Order) []ledger.Posting {
	out := make([]ledger.Posting, len(postings))
	if order != Desc {
		copy(out, postings)
		return out
	}
	for i, p := range postings {
		out[len(postings)-1-i] = p
	}
	return out
}

// Paginate returns page (1-based) of the given size. Size <= 0 returns all.
func Paginate(postings []ledger.Posting, page, size int) []ledger.Posting {
	if size <= 0 {
		return postings
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(postings) {
		return []ledger.Posting{}
	}
	end := start + size
	if end > len(postings) {
		end = len(postings)
	}
	return postings[start:end]
}

// ParseQuery reads q, kind, from, to, sort, page and size through get.
// Dates accept RFC 3339 or YYYY-MM-DD; a bare "to" date includes that whole day.
func ParseQuery(get func(key string) string) (Query, error) {
	var (
		q    = Query{Search: get("q"), Order: Asc, Page: 1, Size: DefaultSize}
		verr apperr.ValidationError
		err  error
	)

	switch kind := strings.ToLower(strings.TrimSpace(get("kind"))); kind {
	case "", "all":
	case string(ledger.KindCredit), string(ledger.KindDebit):
		q.Kind = ledger.Kind(kind)
	default:
		verr.Add("kind", apperr.ErrInvalidKind, "must be all, credit or debit")
	}

	if v := get("from"); v != "" {
		if q.From, _, err = parseTime(v); err != nil {
			verr.Add("from", apperr.ErrInvalidField, "must be a date")
		}
	}
	if v := get("to"); v != "" {
		to, dateOnly, err := parseTime(v)
		if err != nil {
			verr.Add("to", apperr.ErrInvalidField, "must be a date")
		} else if dateOnly {
			to = to.AddDate(0, 0, 1)
		}
		q.To = to
	}

	switch order := Order(strings.ToLower(get("sort"))); order {
	case "":
	case Asc, Desc:
		q.Order = order
	default:
		verr.Add("sort", apperr.ErrInvalidField, "must be asc or desc")
	}

	if v := get("page"); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil || q.Page < 1 {
			verr.Add("page", apperr.ErrInvalidField, "must be a positive integer")
		}
	}
	if v := get("size"); v != "" {
		if q.Size, err = strconv.Atoi(v); err != nil || q.Size < 1 || q.Size > MaxSize {
			verr.Add("size", apperr.ErrInvalidField, "must be between 1 and 500")
		}
	}

	if err := verr.OrNil(); err != nil {
		return Query{}, err
	}
	return q, nil
}

func parseTime(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
	return t, true, err
}
