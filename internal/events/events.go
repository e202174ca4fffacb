// Package events carries order events from the outbox table to a broker.
// Events are written in the same storage transaction as the change they
// describe and published later by Poller.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kennethcatiis/ecommerce-platform/internal/models"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

// Event is one outbox row.
type Event struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type orderCreatedPayload struct {
	TransactionID string             `json:"transactionId"`
	UserID        int64              `json:"userId"`
	Items         []models.OrderItem `json:"items"`
	TotalAmount   models.Money       `json:"totalAmount"`
	PaymentMethod string             `json:"paymentMethod"`
	CreatedAt     time.Time          `json:"createdAt"`
}

type statusChangedPayload struct {
	TransactionID string    `json:"transactionId"`
	UserID        int64     `json:"userId"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Notes         string    `json:"notes,omitempty"`
	ChangedAt     time.Time `json:"changedAt"`
}

func OrderCreated(t *models.Transaction) (Event, error) {
	return newEvent(TypeOrderCreated, t.TransactionID, t.CreatedAt, orderCreatedPayload{
		TransactionID: t.TransactionID,
		UserID:        t.UserID,
		Items:         t.Items,
		TotalAmount:   t.TotalAmount,
		PaymentMethod: string(t.PaymentMethod),
		CreatedAt:     t.CreatedAt,
	})
}

func StatusChanged(from models.Status, t *models.Transaction) (Event, error) {
	return newEvent(TypeOrderStatusChanged, t.TransactionID, t.UpdatedAt, statusChangedPayload{
		TransactionID: t.TransactionID,
		UserID:        t.UserID,
		From:          string(from),
		To:            string(t.Status),
		Notes:         t.Notes,
		ChangedAt:     t.UpdatedAt,
	})
}

func newEvent(typ, aggregateID string, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Event{Type: typ, AggregateID: aggregateID, Payload: data, CreatedAt: at}, nil
}

// Store is the outbox side of the storage layer.
type Store interface {
	PendingEvents(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, id int64) error
}

// Publisher delivers one event to the outside world.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
