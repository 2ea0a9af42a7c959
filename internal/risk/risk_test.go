package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/tradeflux/internal/exchange"
)

func TestBasicManager_CheckOrderRisk(t *testing.T) {
	// 设置基础风险参数
	params := Parameters{
		MaxPositionSize: 10000.0, // 最大仓位
		MaxLossPerTrade: 1000.0,  // 单笔最大亏损
		MaxDailyLoss:    3000.0,  // 每日最大亏损
		RiskPerTrade:    0.01,
	}

	tests := []struct {
		name           string
		intent         Intent
		wantAcceptable bool
		wantRiskLevel  float64
		wantFactors    int
	}{
		{
			name: "safe order",
			intent: Intent{
				Symbol:   "BTCUSDT",
				Side:     exchange.SideBuy,
				Type:     exchange.TypeLimit,
				Quantity: 1.0,
				Price:    1000.0,
			},
			wantAcceptable: true,
			wantRiskLevel:  0,
			wantFactors:    0,
		},
		{
			name: "excessive position size",
			intent: Intent{
				Symbol:   "BTCUSDT",
				Side:     exchange.SideBuy,
				Type:     exchange.TypeLimit,
				Quantity: 20.0,
				Price:    1000.0,
			},
			wantAcceptable: false,
			wantRiskLevel:  0.3,
			wantFactors:    1,
		},
		{
			name: "market order risk",
			intent: Intent{
				Symbol:   "BTCUSDT",
				Side:     exchange.SideBuy,
				Type:     exchange.TypeMarket,
				Quantity: 1.0,
				Price:    1000.0,
			},
			wantAcceptable: true,
			wantRiskLevel:  0.1,
			wantFactors:    1,
		},
		{
			name: "multiple risk factors",
			intent: Intent{
				Symbol:   "BTCUSDT",
				Side:     exchange.SideBuy,
				Type:     exchange.TypeMarket,
				Quantity: 15.0,
				Price:    1000.0,
			},
			wantAcceptable: false,
			wantRiskLevel:  0.4, // 0.3 (size) + 0.1 (market)
			wantFactors:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := NewBasicManager(params, nil)
			ctx := context.Background()

			assessment, err := rm.CheckOrderRisk(ctx, &tt.intent)
			require.NoError(t, err)
			require.NotNil(t, assessment)

			assert.Equal(t, tt.wantAcceptable, assessment.IsAcceptable)
			assert.Equal(t, tt.wantRiskLevel, assessment.RiskLevel)
			assert.Len(t, assessment.RiskFactors, tt.wantFactors)

			if len(assessment.RiskFactors) > 0 {
				t.Logf("Risk Factors: %v", assessment.RiskFactors)
				t.Logf("Recommendations: %v", assessment.Recommendations)
			}
		})
	}
}

func TestBasicManager_DailyLimits(t *testing.T) {
	params := Parameters{
		MaxPositionSize: 10000.0,
		MaxLossPerTrade: 1000.0,
		MaxDailyLoss:    3000.0,
		MaxDailyVolume:  15000.0,
	}

	rm := NewBasicManager(params, nil)
	ctx := context.Background()

	// Burn most of the daily loss budget.
	rm.RecordFill("BTCUSDT", 5000, -2900)

	intent := &Intent{
		Symbol:   "BTCUSDT",
		Side:     exchange.SideBuy,
		Type:     exchange.TypeLimit,
		Quantity: 5.0,
		Price:    1000.0,
	}

	assessment, err := rm.CheckOrderRisk(ctx, intent)
	require.NoError(t, err)
	assert.False(t, assessment.IsAcceptable)
	assert.Contains(t, assessment.RiskFactors, "Trade could exceed maximum daily loss limit")
}

func TestBasicManager_SetParameters(t *testing.T) {
	rm := NewBasicManager(Parameters{}, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		params  Parameters
		wantErr bool
	}{
		{
			name: "valid parameters",
			params: Parameters{
				MaxPositionSize: 10000.0,
				MaxLossPerTrade: 1000.0,
				MaxDailyLoss:    3000.0,
				RiskPerTrade:    0.02,
			},
			wantErr: false,
		},
		{
			name: "invalid position size",
			params: Parameters{
				MaxPositionSize: -1000.0,
				MaxLossPerTrade: 1000.0,
				MaxDailyLoss:    3000.0,
			},
			wantErr: true,
		},
		{
			name:    "zero values",
			params:  Parameters{},
			wantErr: true,
		},
		{
			name: "risk per trade over one",
			params: Parameters{
				MaxPositionSize: 10000.0,
				MaxLossPerTrade: 1000.0,
				MaxDailyLoss:    3000.0,
				RiskPerTrade:    1.5,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rm.SetParameters(ctx, &tt.params)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBasicManager_PositionSize(t *testing.T) {
	rm := NewBasicManager(Parameters{
		MaxPositionSize: 10000.0,
		MaxLossPerTrade: 1000.0,
		MaxDailyLoss:    3000.0,
		RiskPerTrade:    0.01,
	}, nil)

	// Risking 1% of 100k equity with a 100 USDT stop distance => 10 units,
	// clamped to the notional cap 10000/1000 = 10.
	qty := rm.PositionSize(100000, 1000, 900)
	assert.InDelta(t, 10.0, qty, 1e-9)

	// Tighter stop sizes bigger, then the notional clamp kicks in.
	qty = rm.PositionSize(100000, 1000, 990)
	assert.InDelta(t, 10.0, qty, 1e-9, "clamped by MaxPositionSize")

	// Degenerate inputs.
	assert.Zero(t, rm.PositionSize(0, 1000, 900))
	assert.Zero(t, rm.PositionSize(100000, 1000, 1000))
}

func TestBasicManager_MonitorPositions(t *testing.T) {
	params := Parameters{
		MaxPositionSize: 10000.0,
		MaxLossPerTrade: 1000.0,
		MaxDailyLoss:    3000.0,
	}

	rm := NewBasicManager(params, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	alerts, err := rm.MonitorPositions(ctx)
	require.NoError(t, err)
	require.NotNil(t, alerts)

	// 等待 context 取消
	<-ctx.Done()

	// 确保 channel 被关闭
	_, ok := <-alerts
	assert.False(t, ok, "alerts channel should be closed")
}

func TestGetSeverityLevel(t *testing.T) {
	tests := []struct {
		name string
		pnl  float64
		want string
	}{
		{
			name: "high severity",
			pnl:  -15000,
			want: "HIGH",
		},
		{
			name: "medium severity",
			pnl:  -7500,
			want: "MEDIUM",
		},
		{
			name: "low severity",
			pnl:  -1000,
			want: "LOW",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := getSeverityLevel(tt.pnl)
			assert.Equal(t, tt.want, got)
		})
	}
}
