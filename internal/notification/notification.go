// Package notification publishes ledger change events to downstream systems.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	KindEntryAdded   = "entry.added"
	KindEntryUpdated = "entry.updated"
	KindEntryDeleted = "entry.deleted"
	KindPartyDeleted = "party.deleted"
)

// Event is one committed ledger change. Events of a party are published in
// commit order because mutations of a party are serialised.
type Event struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	PartyID    string          `json:"partyId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// NewEvent encodes data as the event payload.
func NewEvent(kind, partyID string, data any, at time.Time) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Event{ID: uuid.NewString(), Kind: kind, PartyID: partyID, OccurredAt: at, Data: raw}, nil
}

// Notifier delivers events.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// LoggerNotifier writes events to the structured logger. It is the fallback
// when no broker is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

func (n *LoggerNotifier) Send(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("ledger event",
		slog.String("event_id", event.ID),
		slog.String("kind", event.Kind),
		slog.String("party_id", event.PartyID),
		slog.String("data", string(event.Data)),
	)
	return nil
}
