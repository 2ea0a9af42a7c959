package strategy

import (
	"fmt"
	"time"

	"github.com/songzhibin97/tradeflux/internal/exchange"
)

// Action is the trading intent a strategy emits.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Signal 策略信号
type Signal struct {
	Symbol string    `json:"symbol"`
	Action Action    `json:"action"`
	Price  float64   `json:"price"`
	Reason string    `json:"reason"`
	Time   time.Time `json:"time"`
}

// Strategy consumes candles one at a time and emits a signal per candle.
// Implementations are stateful and not safe for concurrent use.
type Strategy interface {
	Name() string
	OnCandle(candle exchange.Candle) Signal
	Reset()
}

// SMARSIConfig 均线交叉+RSI过滤策略参数
type SMARSIConfig struct {
	ShortPeriod   int     `json:"short_period" yaml:"short_period"`
	LongPeriod    int     `json:"long_period" yaml:"long_period"`
	RSIPeriod     int     `json:"rsi_period" yaml:"rsi_period"`
	RSIOverbought float64 `json:"rsi_overbought" yaml:"rsi_overbought"`
	RSIOversold   float64 `json:"rsi_oversold" yaml:"rsi_oversold"`
}

// DefaultSMARSIConfig returns the parameters the original signal rules used.
func DefaultSMARSIConfig() SMARSIConfig {
	return SMARSIConfig{
		ShortPeriod:   9,
		LongPeriod:    21,
		RSIPeriod:     14,
		RSIOverbought: 70,
		RSIOversold:   30,
	}
}

// SMARSIStrategy signals on SMA crossovers, filtered by RSI so it does not
// buy into overbought or sell into oversold conditions.
type SMARSIStrategy struct {
	symbol string
	cfg    SMARSIConfig

	closes       []float64
	prevShortSMA float64
	prevLongSMA  float64
}

// NewSMARSIStrategy creates the strategy for one symbol.
func NewSMARSIStrategy(symbol string, cfg SMARSIConfig) (*SMARSIStrategy, error) {
	if cfg.ShortPeriod <= 0 || cfg.LongPeriod <= 0 || cfg.RSIPeriod <= 0 {
		return nil, fmt.Errorf("strategy periods must be positive")
	}
	if cfg.ShortPeriod >= cfg.LongPeriod {
		return nil, fmt.Errorf("short period %d must be less than long period %d", cfg.ShortPeriod, cfg.LongPeriod)
	}

	return &SMARSIStrategy{
		symbol: symbol,
		cfg:    cfg,
	}, nil
}

func (s *SMARSIStrategy) Name() string {
	return "sma_rsi"
}

// OnCandle implements Strategy.
func (s *SMARSIStrategy) OnCandle(candle exchange.Candle) Signal {
	signal := Signal{
		Symbol: s.symbol,
		Action: ActionHold,
		Price:  candle.Close,
		Time:   candle.OpenTime,
	}

	s.closes = append(s.closes, candle.Close)

	// Keep the window bounded; RSI needs one extra sample.
	maxWindow := s.cfg.LongPeriod
	if s.cfg.RSIPeriod+1 > maxWindow {
		maxWindow = s.cfg.RSIPeriod + 1
	}
	if len(s.closes) > maxWindow {
		s.closes = s.closes[len(s.closes)-maxWindow:]
	}

	if len(s.closes) < s.cfg.LongPeriod {
		return signal
	}

	shortSMA := SMA(s.closes, s.cfg.ShortPeriod)
	longSMA := SMA(s.closes, s.cfg.LongPeriod)
	rsi := RSI(s.closes, s.cfg.RSIPeriod)

	defer func() {
		s.prevShortSMA = shortSMA
		s.prevLongSMA = longSMA
	}()

	if s.prevShortSMA == 0 || s.prevLongSMA == 0 {
		return signal
	}

	// Golden cross: short SMA moves above long SMA.
	if s.prevShortSMA <= s.prevLongSMA && shortSMA > longSMA {
		if rsi >= s.cfg.RSIOverbought {
			signal.Reason = fmt.Sprintf("golden cross suppressed, RSI %.1f overbought", rsi)
			return signal
		}
		signal.Action = ActionBuy
		signal.Reason = fmt.Sprintf("golden cross (SMA%d %.2f > SMA%d %.2f), RSI %.1f",
			s.cfg.ShortPeriod, shortSMA, s.cfg.LongPeriod, longSMA, rsi)
		return signal
	}

	// Dead cross: short SMA moves below long SMA.
	if s.prevShortSMA >= s.prevLongSMA && shortSMA < longSMA {
		if rsi <= s.cfg.RSIOversold {
			signal.Reason = fmt.Sprintf("dead cross suppressed, RSI %.1f oversold", rsi)
			return signal
		}
		signal.Action = ActionSell
		signal.Reason = fmt.Sprintf("dead cross (SMA%d %.2f < SMA%d %.2f), RSI %.1f",
			s.cfg.ShortPeriod, shortSMA, s.cfg.LongPeriod, longSMA, rsi)
		return signal
	}

	return signal
}

// Reset implements Strategy.
func (s *SMARSIStrategy) Reset() {
	s.closes = nil
	s.prevShortSMA = 0
	s.prevLongSMA = 0
}
