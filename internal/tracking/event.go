package tracking

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/nutrid/internal/nutrition"
)

// EventType names a store mutation.
type EventType string

const (
	EventInitialized EventType = "initialized"
	EventFoodAdded   EventType = "food_added"
)

// Event describes a completed store mutation.
//
// Events are published after the store lock is released, so events for the
// same day can reach subscribers out of order. Revision is the record's
// revision after the mutation; consumers keep the highest one seen per
// (user_id, date) and drop older events.
type Event struct {
	Type           EventType           `json:"type"`
	UserID         string              `json:"user_id"`
	Date           string              `json:"date"`
	Entry          *FoodEntry          `json:"entry,omitempty"`
	PredictedNeeds *nutrition.Targets  `json:"predicted_needs,omitempty"`
	Totals         nutrition.Nutrients `json:"totals"`
	Revision       uint64              `json:"revision"`
	At             time.Time           `json:"at"`
}

// Publisher delivers events outside the process. kind is the event type and
// selects the destination; v is the payload.
type Publisher interface {
	Publish(ctx context.Context, kind string, v any) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
