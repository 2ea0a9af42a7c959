package risk

import (
	"context"
	"time"

	"github.com/songzhibin97/tradeflux/internal/exchange"
)

// Manager defines methods for pre-trade risk control
type Manager interface {
	// CheckOrderRisk evaluates the risk of a potential order before it is
	// sent to the exchange
	CheckOrderRisk(ctx context.Context, intent *Intent) (*Assessment, error)

	// SetParameters sets risk management parameters
	SetParameters(ctx context.Context, params *Parameters) error

	// MonitorPositions monitors open positions for risk
	MonitorPositions(ctx context.Context) (<-chan Alert, error)

	// RecordFill feeds a completed order back into the daily statistics
	RecordFill(symbol string, notional, realizedPnL float64)
}

// Intent is a not-yet-submitted order under evaluation.
type Intent struct {
	Symbol   string             `json:"symbol"`
	Side     exchange.Side      `json:"side"`
	Type     exchange.OrderType `json:"type"`
	Quantity float64            `json:"quantity"`
	Price    float64            `json:"price"`
}

// Notional returns the order value in quote currency.
func (i *Intent) Notional() float64 {
	return i.Quantity * i.Price
}

// Parameters 风险参数配置
type Parameters struct {
	MaxPositionSize float64 `json:"max_position_size" yaml:"max_position_size"` // 单笔名义价值上限
	MaxLossPerTrade float64 `json:"max_loss_per_trade" yaml:"max_loss_per_trade"`
	MaxDailyLoss    float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxDailyVolume  float64 `json:"max_daily_volume" yaml:"max_daily_volume"`
	RiskPerTrade    float64 `json:"risk_per_trade" yaml:"risk_per_trade"` // 账户权益风险比例, e.g. 0.01
	MaxTradesPerDay int     `json:"max_trades_per_day" yaml:"max_trades_per_day"`
}

// Assessment 风险评估结果
type Assessment struct {
	IsAcceptable    bool     `json:"is_acceptable"`
	RiskLevel       float64  `json:"risk_level"`
	RiskFactors     []string `json:"risk_factors"`
	Recommendations []string `json:"recommendations"`
}

// Alert 风险预警信息
type Alert struct {
	Symbol      string    `json:"symbol"`
	AlertType   string    `json:"alert_type"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// Position represents a current holding the monitor watches.
type Position struct {
	Symbol        string
	Quantity      float64
	EntryPrice    float64
	UnrealizedPnL float64
}

// PositionSource supplies current positions to the monitor loop.
type PositionSource func(ctx context.Context) ([]Position, error)
