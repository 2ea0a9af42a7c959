package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/songzhibin97/tradeflux/internal/exchange"
	"github.com/songzhibin97/tradeflux/internal/strategy"
)

// Config 回测参数
type Config struct {
	Symbol        string  `json:"symbol" yaml:"symbol"`
	Quantity      float64 `json:"quantity" yaml:"quantity"`               // 每笔交易数量
	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`     // 止损比例, e.g. 0.02
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct"` // 止盈比例, e.g. 0.04
}

// Result aggregates one backtest run.
type Result struct {
	Trades  []Trade         `json:"trades"`
	Wins    int             `json:"wins"`
	Losses  int             `json:"losses"`
	NetPnL  decimal.Decimal `json:"net_pnl"`
	WinRate float64         `json:"win_rate"`
}

// Backtester replays candles through a strategy, opening a long trade on
// each accepted buy signal and closing on stop-loss, take-profit, a sell
// signal, or the end of the data.
type Backtester struct {
	cfg   Config
	strat strategy.Strategy
}

// New creates a Backtester.
func New(cfg Config, strat strategy.Strategy) (*Backtester, error) {
	if cfg.Quantity <= 0 {
		return nil, fmt.Errorf("backtest quantity must be positive")
	}
	if cfg.StopLossPct < 0 || cfg.TakeProfitPct < 0 {
		return nil, fmt.Errorf("stop-loss and take-profit percentages cannot be negative")
	}
	return &Backtester{cfg: cfg, strat: strat}, nil
}

// Run replays the candles and returns the aggregated result. The strategy
// is reset first so a Backtester can be reused.
func (b *Backtester) Run(candles []exchange.Candle) (*Result, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles to replay")
	}

	b.strat.Reset()

	result := &Result{NetPnL: decimal.Zero}
	qty := decimal.NewFromFloat(b.cfg.Quantity)

	var open *Trade

	for _, candle := range candles {
		// Exits are evaluated against the candle's range before the
		// strategy sees its close, mirroring intrabar SL/TP triggers.
		if open != nil {
			if reason, price, hit := b.checkExit(open, candle); hit {
				open.close(price, candle.OpenTime, reason)
				result.Trades = append(result.Trades, *open)
				open = nil
			}
		}

		signal := b.strat.OnCandle(candle)

		switch signal.Action {
		case strategy.ActionBuy:
			if open != nil {
				continue
			}
			entry := decimal.NewFromFloat(candle.Close)
			trade := &Trade{
				Symbol:     b.cfg.Symbol,
				Side:       exchange.SideBuy,
				Quantity:   qty,
				EntryPrice: entry,
				EntryTime:  candle.OpenTime,
				Open:       true,
			}
			if b.cfg.StopLossPct > 0 {
				trade.StopLoss = entry.Mul(decimal.NewFromFloat(1 - b.cfg.StopLossPct))
			}
			if b.cfg.TakeProfitPct > 0 {
				trade.TakeProfit = entry.Mul(decimal.NewFromFloat(1 + b.cfg.TakeProfitPct))
			}
			open = trade

		case strategy.ActionSell:
			if open == nil {
				continue
			}
			open.close(decimal.NewFromFloat(candle.Close), candle.OpenTime, ExitSignal)
			result.Trades = append(result.Trades, *open)
			open = nil
		}
	}

	// Whatever is still open settles at the last close.
	if open != nil {
		last := candles[len(candles)-1]
		open.close(decimal.NewFromFloat(last.Close), last.OpenTime, ExitEndOfData)
		result.Trades = append(result.Trades, *open)
	}

	for _, trade := range result.Trades {
		result.NetPnL = result.NetPnL.Add(trade.PnL)
		if trade.PnL.IsPositive() {
			result.Wins++
		} else if trade.PnL.IsNegative() {
			result.Losses++
		}
	}
	if len(result.Trades) > 0 {
		result.WinRate = float64(result.Wins) / float64(len(result.Trades))
	}

	return result, nil
}

// checkExit reports whether the candle's range triggers the trade's
// stop-loss or take-profit. Stop-loss wins when a candle spans both.
func (b *Backtester) checkExit(trade *Trade, candle exchange.Candle) (ExitReason, decimal.Decimal, bool) {
	low := decimal.NewFromFloat(candle.Low)
	high := decimal.NewFromFloat(candle.High)

	if !trade.StopLoss.IsZero() && low.LessThanOrEqual(trade.StopLoss) {
		return ExitStopLoss, trade.StopLoss, true
	}
	if !trade.TakeProfit.IsZero() && high.GreaterThanOrEqual(trade.TakeProfit) {
		return ExitTakeProfit, trade.TakeProfit, true
	}
	return "", decimal.Zero, false
}
