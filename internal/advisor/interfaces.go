package advisor

import (
	"context"

	"github.com/songzhibin97/tradeflux/internal/models"
	"github.com/songzhibin97/tradeflux/internal/strategy"
)

// Advisor scores a strategy signal against the current market snapshot.
type Advisor interface {
	// ScoreSignal returns a score in [-1, 1]: positive means the signal is
	// supported by market conditions, negative means it should be skipped.
	ScoreSignal(ctx context.Context, signal strategy.Signal, snapshot models.MarketData) (float64, error)
}

// Func adapts a plain function to the Advisor interface.
type Func func(ctx context.Context, signal strategy.Signal, snapshot models.MarketData) (float64, error)

func (f Func) ScoreSignal(ctx context.Context, signal strategy.Signal, snapshot models.MarketData) (float64, error) {
	return f(ctx, signal, snapshot)
}

// PassThrough approves every signal with full confidence. Used when no
// advisor is configured.
func PassThrough() Advisor {
	return Func(func(ctx context.Context, signal strategy.Signal, snapshot models.MarketData) (float64, error) {
		return 1, nil
	})
}
