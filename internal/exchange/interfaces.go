package exchange

import (
	"context"
)

// Connector defines the normalized surface the rest of the system needs
// from an exchange. Implementations are stateless aside from the session
// handle: every call is independent and may be issued concurrently.
type Connector interface {
	// Initialize establishes the exchange session and loads tradable-market
	// metadata. The caller decides whether to retry or abort on failure.
	Initialize(ctx context.Context) error

	// GetBalance retrieves the balance for one asset. An error means the
	// balance is unknown, not zero.
	GetBalance(ctx context.Context, asset string) (Balance, error)

	// GetTicker retrieves the latest quote for a symbol.
	GetTicker(ctx context.Context, symbol string) (Ticker, error)

	// GetOrderBook retrieves up to limit levels per side.
	GetOrderBook(ctx context.Context, symbol string, limit int) (OrderBook, error)

	// GetOHLCV retrieves up to limit candles for the given interval.
	GetOHLCV(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	// CreateMarketOrder submits a market order.
	CreateMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (*OrderResult, error)

	// CreateLimitOrder submits a GTC limit order.
	CreateLimitOrder(ctx context.Context, symbol string, side Side, quantity, price float64) (*OrderResult, error)

	// CancelOrder cancels an order by exchange id.
	CancelOrder(ctx context.Context, orderID, symbol string) error

	// GetOrderStatus retrieves the current state of an order.
	GetOrderStatus(ctx context.Context, orderID, symbol string) (*OrderResult, error)

	// GetOpenOrders lists open orders, optionally filtered by symbol.
	GetOpenOrders(ctx context.Context, symbol string) ([]OrderResult, error)

	// Close releases the session. Idempotent.
	Close() error
}
