package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/songzhibin97/tradeflux/internal/exchange"
)

// BasicManager is a threshold-based Manager implementation.
type BasicManager struct {
	mu     sync.RWMutex
	params Parameters

	dailyStats struct {
		totalLoss     float64
		tradingVolume float64
		tradeCount    int
	}
	statsReset time.Time

	positions PositionSource
}

// NewBasicManager creates a BasicManager with the given initial parameters.
// positions may be nil, in which case the monitor loop only manages the
// daily statistics reset.
func NewBasicManager(initialParams Parameters, positions PositionSource) *BasicManager {
	return &BasicManager{
		params:     initialParams,
		statsReset: time.Now(),
		positions:  positions,
	}
}

// CheckOrderRisk implements Manager.
func (rm *BasicManager) CheckOrderRisk(ctx context.Context, intent *Intent) (*Assessment, error) {
	rm.mu.RLock()
	params := rm.params
	daily := rm.dailyStats
	rm.mu.RUnlock()

	assessment := &Assessment{
		IsAcceptable:    true,
		RiskLevel:       0,
		RiskFactors:     make([]string, 0),
		Recommendations: make([]string, 0),
	}

	notional := intent.Notional()

	// 检查仓位大小 - 这是最主要的风险检查
	if notional > params.MaxPositionSize {
		assessment.IsAcceptable = false
		assessment.RiskLevel += 0.3
		assessment.RiskFactors = append(assessment.RiskFactors,
			"Position size exceeds maximum allowed")
		assessment.Recommendations = append(assessment.Recommendations,
			fmt.Sprintf("Reduce position size below %.2f", params.MaxPositionSize))
	} else {
		// 只有在仓位没有超过限制的情况下，才检查潜在亏损
		potentialLoss := notional * 0.1
		if intent.Side == exchange.SideBuy && potentialLoss > params.MaxLossPerTrade {
			assessment.IsAcceptable = false
			assessment.RiskLevel += 0.25
			assessment.RiskFactors = append(assessment.RiskFactors,
				"Potential loss exceeds maximum allowed per trade")
			assessment.Recommendations = append(assessment.Recommendations,
				fmt.Sprintf("Reduce position size to limit potential loss below %.2f", params.MaxLossPerTrade))
		}
	}

	// 检查当日总亏损限制
	if daily.totalLoss+notional*0.1 > params.MaxDailyLoss {
		assessment.IsAcceptable = false
		assessment.RiskLevel += 0.25
		assessment.RiskFactors = append(assessment.RiskFactors,
			"Trade could exceed maximum daily loss limit")
		assessment.Recommendations = append(assessment.Recommendations,
			"Wait for daily loss limit to reset or reduce position size")
	}

	// 检查市价单风险
	if intent.Type == exchange.TypeMarket {
		assessment.RiskLevel += 0.1
		assessment.RiskFactors = append(assessment.RiskFactors,
			"Market order may result in slippage")
		assessment.Recommendations = append(assessment.Recommendations,
			"Consider using limit order for better price control")
	}

	// 检查当日交易量限制
	maxVolume := params.MaxDailyVolume
	if maxVolume <= 0 {
		maxVolume = params.MaxPositionSize * 5
	}
	if daily.tradingVolume+notional > maxVolume {
		assessment.IsAcceptable = false
		assessment.RiskLevel += 0.2
		assessment.RiskFactors = append(assessment.RiskFactors,
			"Daily trading volume would exceed safe limits")
		assessment.Recommendations = append(assessment.Recommendations,
			"Reduce trading volume or wait for daily reset")
	}

	// 检查交易频率
	maxTrades := params.MaxTradesPerDay
	if maxTrades <= 0 {
		maxTrades = 100
	}
	if daily.tradeCount > maxTrades {
		assessment.RiskLevel += 0.15
		assessment.RiskFactors = append(assessment.RiskFactors,
			"High trading frequency detected")
		assessment.Recommendations = append(assessment.Recommendations,
			"Consider reducing trading frequency")
	}

	return assessment, nil
}

// SetParameters implements Manager.
func (rm *BasicManager) SetParameters(ctx context.Context, params *Parameters) error {
	if params.MaxPositionSize <= 0 || params.MaxLossPerTrade <= 0 || params.MaxDailyLoss <= 0 {
		return fmt.Errorf("invalid risk parameters: limits must be positive")
	}
	if params.RiskPerTrade < 0 || params.RiskPerTrade > 1 {
		return fmt.Errorf("invalid risk parameters: risk_per_trade must be in [0, 1]")
	}

	rm.mu.Lock()
	rm.params = *params
	rm.mu.Unlock()

	return nil
}

// RecordFill implements Manager.
func (rm *BasicManager) RecordFill(symbol string, notional, realizedPnL float64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.dailyStats.tradingVolume += notional
	rm.dailyStats.tradeCount++
	if realizedPnL < 0 {
		rm.dailyStats.totalLoss += -realizedPnL
	}
}

// MonitorPositions implements Manager.
func (rm *BasicManager) MonitorPositions(ctx context.Context) (<-chan Alert, error) {
	alerts := make(chan Alert, 100)

	go func() {
		defer close(alerts)

		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		dayReset := time.NewTicker(24 * time.Hour)
		defer dayReset.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-dayReset.C:
				rm.mu.Lock()
				rm.dailyStats.totalLoss = 0
				rm.dailyStats.tradingVolume = 0
				rm.dailyStats.tradeCount = 0
				rm.statsReset = time.Now()
				rm.mu.Unlock()

			case <-ticker.C:
				if rm.positions == nil {
					continue
				}
				positions, err := rm.positions(ctx)
				if err != nil {
					continue
				}

				rm.mu.RLock()
				maxLoss := rm.params.MaxLossPerTrade
				rm.mu.RUnlock()

				for _, pos := range positions {
					if pos.UnrealizedPnL >= -maxLoss {
						continue
					}
					alert := Alert{
						Symbol:      pos.Symbol,
						AlertType:   "Position Loss",
						Severity:    getSeverityLevel(pos.UnrealizedPnL),
						Description: fmt.Sprintf("Position loss exceeded threshold for %s", pos.Symbol),
						Timestamp:   time.Now(),
					}

					select {
					case alerts <- alert:
					default:
						// Channel full, could log this situation
					}
				}
			}
		}
	}()

	return alerts, nil
}

// PositionSize returns the order quantity that risks params.RiskPerTrade of
// equity between entry and stop. A zero result means the inputs cannot be
// sized safely.
func (rm *BasicManager) PositionSize(equity, entryPrice, stopPrice float64) float64 {
	rm.mu.RLock()
	riskPerTrade := rm.params.RiskPerTrade
	maxPosition := rm.params.MaxPositionSize
	rm.mu.RUnlock()

	if equity <= 0 || entryPrice <= 0 || riskPerTrade <= 0 {
		return 0
	}

	stopDistance := entryPrice - stopPrice
	if stopDistance < 0 {
		stopDistance = -stopDistance
	}
	if stopDistance == 0 {
		return 0
	}

	qty := equity * riskPerTrade / stopDistance

	// Clamp by notional limit.
	if maxPosition > 0 && qty*entryPrice > maxPosition {
		qty = maxPosition / entryPrice
	}
	return qty
}

func getSeverityLevel(pnl float64) string {
	switch {
	case pnl < -10000:
		return "HIGH"
	case pnl < -5000:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
