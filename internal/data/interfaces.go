package data

import (
	"context"
	"time"

	"github.com/songzhibin97/tradeflux/internal/exchange"
	"github.com/songzhibin97/tradeflux/internal/models"
	"github.com/songzhibin97/tradeflux/internal/order"
)

// MarketCollector 负责从各种源采集行情数据
type MarketCollector interface {
	// CollectMarketData retrieves a real-time snapshot for one symbol
	CollectMarketData(ctx context.Context, symbol string) (*models.MarketData, error)

	// CollectCandles retrieves recent OHLCV bars for one symbol
	CollectCandles(ctx context.Context, symbol, interval string, limit int) ([]exchange.Candle, error)

	// Subscribe returns a channel of periodic market updates
	Subscribe(ctx context.Context, symbols []string, refreshInterval time.Duration) (<-chan models.MarketData, error)
}

// Storage 处理行情与订单历史的持久化
type Storage interface {
	// SaveMarketData stores a market snapshot
	SaveMarketData(ctx context.Context, data *models.MarketData) error

	// GetHistoricalData retrieves stored market data for a time range
	GetHistoricalData(ctx context.Context, symbol string, start, end time.Time) ([]models.MarketData, error)

	// SaveOrder archives a completed order
	SaveOrder(ctx context.Context, o *order.Order) error

	// GetOrderHistory retrieves archived orders for a time range
	GetOrderHistory(ctx context.Context, symbol string, start, end time.Time) ([]order.Order, error)
}
