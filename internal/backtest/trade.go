package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/songzhibin97/tradeflux/internal/exchange"
)

// ExitReason records why a trade was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitSignal     ExitReason = "signal"
	ExitEndOfData  ExitReason = "end_of_data"
)

// Trade is a simulated position opened by an accepted strategy signal.
// It has no relationship to the live order lifecycle; prices and P&L use
// decimals so repeated backtests do not accumulate float drift.
type Trade struct {
	Symbol     string          `json:"symbol"`
	Side       exchange.Side   `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   time.Time       `json:"exit_time"`
	PnL        decimal.Decimal `json:"pnl"`
	Open       bool            `json:"open"`
	ExitReason ExitReason      `json:"exit_reason,omitempty"`
}

// UnrealizedPnL values the trade against price without closing it.
func (t *Trade) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	if !t.Open {
		return t.PnL
	}
	diff := price.Sub(t.EntryPrice)
	if t.Side == exchange.SideSell {
		diff = diff.Neg()
	}
	return diff.Mul(t.Quantity)
}

// close settles the trade at price and stamps the exit.
func (t *Trade) close(price decimal.Decimal, at time.Time, reason ExitReason) {
	t.ExitPrice = price
	t.ExitTime = at
	t.ExitReason = reason
	t.Open = false

	diff := price.Sub(t.EntryPrice)
	if t.Side == exchange.SideSell {
		diff = diff.Neg()
	}
	t.PnL = diff.Mul(t.Quantity)
}
