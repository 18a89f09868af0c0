package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventPaymentProcessed = "PaymentProcessed"
)

// Envelope is the wire format shared by all domain events. The payload shape
// is discriminated by EventType; consumers decode Payload once they have
// matched the tag and treat unknown tags as a no-op.
type Envelope struct {
	EventType string          `json:"event_type"`
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type PaymentProcessedPayload struct {
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
}

// NewEnvelope wraps a payload with a fresh event id and the current time.
func NewEnvelope(eventType string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventType: eventType,
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Payload:   body,
	}, nil
}

// RoutingKey derives the topic routing label from an event type,
// e.g. "OrderCreated" -> "order.created".
func RoutingKey(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return "order.created"
	case EventPaymentProcessed:
		return "payment.processed"
	default:
		return "event.unknown"
	}
}

func NewOrderCreated(o *Order) (Envelope, error) {
	return NewEnvelope(EventOrderCreated, OrderCreatedPayload{
		OrderID:     o.OrderID,
		CustomerID:  o.CustomerID,
		Items:       o.Items,
		TotalAmount: o.TotalAmount,
	})
}
