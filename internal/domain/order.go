package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusFailed     Status = "FAILED"
)

// Order is the aggregate root. Items are owned by the order: they are written
// and deleted together with it and have no lifecycle of their own.
type Order struct {
	OrderID         string          `json:"order_id"`
	CustomerID      string          `json:"customer_id"`
	ShippingAddress string          `json:"shipping_address"`
	Status          Status          `json:"status"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

// Total sums quantity × unit price over all items. It is computed once at
// creation; status updates never recompute it.
func Total(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// StatusForPayment maps a payment outcome onto the order state machine:
// SUCCESS moves a pending order to PROCESSING, anything else to FAILED.
func StatusForPayment(paymentStatus string) Status {
	if paymentStatus == "SUCCESS" {
		return StatusProcessing
	}
	return StatusFailed
}

// CanTransition reports whether an order in from may move to to. Transitions
// are one-shot: PROCESSING and FAILED are terminal, and a late or duplicate
// payment event must never resurrect PENDING.
func CanTransition(from, to Status) bool {
	if from != StatusPending {
		return false
	}
	return to == StatusProcessing || to == StatusFailed
}

// ParseID validates an order identifier. A malformed id is ErrInvalidID,
// which callers map to 400 rather than the 404 of a well-formed unknown id.
func ParseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidID
	}
	return u.String(), nil
}
