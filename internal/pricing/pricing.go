package pricing

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider resolves the unit price of a catalog product at order-creation
// time. Prices are never taken from the request body; they always come from
// this lookup so a client cannot tamper with them.
type Provider interface {
	ResolvePrice(ctx context.Context, productID string) (decimal.Decimal, error)
}

// Static is a fixed-price provider standing in for the catalog service.
type Static struct {
	price decimal.Decimal
}

func NewStatic(price decimal.Decimal) *Static {
	return &Static{price: price}
}

// DefaultStatic prices every product at 50.00.
func DefaultStatic() *Static {
	return NewStatic(decimal.RequireFromString("50.00"))
}

func (s *Static) ResolvePrice(_ context.Context, _ string) (decimal.Decimal, error) {
	return s.price, nil
}
