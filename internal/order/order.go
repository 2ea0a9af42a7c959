package order

import (
	"time"

	"github.com/songzhibin97/tradeflux/internal/exchange"
)

// Order is the mutable lifecycle record for one exchange order. Once
// submitted it is owned exclusively by the Manager; callers get copies.
type Order struct {
	ID            string             `json:"id"`
	ClientOrderID string             `json:"client_order_id"`
	Symbol        string             `json:"symbol"`
	Side          exchange.Side      `json:"side"`
	Type          exchange.OrderType `json:"type"`
	Quantity      float64            `json:"quantity"`
	Price         float64            `json:"price"` // zero for market orders
	Status        exchange.Status    `json:"status"`
	Filled        float64            `json:"filled"`
	Remaining     float64            `json:"remaining"`
	Metadata      map[string]string  `json:"metadata,omitempty"` // caller-supplied, opaque to the manager
	CreatedAt     time.Time          `json:"created_at"`
	LastUpdate    time.Time          `json:"last_update"`
	CompletedAt   time.Time          `json:"completed_at,omitempty"`
}

// Terminal reports whether the order has reached a final status.
func (o *Order) Terminal() bool {
	return o.Status.Terminal()
}

// applyResult refreshes fill progress and status from an exchange poll.
func (o *Order) applyResult(res *exchange.OrderResult) {
	o.Status = res.Status
	o.Filled = res.Filled
	o.Remaining = res.Remaining
	if res.Price > 0 {
		o.Price = res.Price
	}
	o.LastUpdate = time.Now()
}

// clone returns a copy safe to hand outside the manager's lock. The
// metadata map is shared intentionally; the manager never mutates it.
func (o *Order) clone() *Order {
	cp := *o
	return &cp
}

func fromResult(res *exchange.OrderResult, metadata map[string]string) *Order {
	now := time.Now()
	return &Order{
		ID:            res.OrderID,
		ClientOrderID: res.ClientOrderID,
		Symbol:        res.Symbol,
		Side:          res.Side,
		Type:          res.Type,
		Quantity:      res.Quantity,
		Price:         res.Price,
		Status:        res.Status,
		Filled:        res.Filled,
		Remaining:     res.Remaining,
		Metadata:      metadata,
		CreatedAt:     now,
		LastUpdate:    now,
	}
}
