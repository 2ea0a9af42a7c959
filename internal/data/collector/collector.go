package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/songzhibin97/tradeflux/internal/exchange"
	"github.com/songzhibin97/tradeflux/internal/models"
)

// MultiSourceCollector implements data.MarketCollector by trying a list of
// sources in order and falling back on failure.
type MultiSourceCollector struct {
	sources []MarketSource
	logger  Logger
}

type Logger interface {
	Error(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
}

// MarketSource is a single upstream market-data provider.
type MarketSource interface {
	Name() string
	CollectMarketData(ctx context.Context, symbol string) (*models.MarketData, error)
	CollectCandles(ctx context.Context, symbol, interval string, limit int) ([]exchange.Candle, error)
}

func NewMultiSourceCollector(sources []MarketSource, logger Logger) *MultiSourceCollector {
	return &MultiSourceCollector{
		sources: sources,
		logger:  logger,
	}
}

// CollectMarketData implements data.MarketCollector
func (c *MultiSourceCollector) CollectMarketData(ctx context.Context, symbol string) (*models.MarketData, error) {
	for _, source := range c.sources {
		result, err := source.CollectMarketData(ctx, symbol)
		if err == nil && result != nil {
			return result, nil
		}
		c.logger.Error("failed to collect market data", "source", source.Name(), "symbol", symbol, "error", err)
	}

	return nil, fmt.Errorf("failed to collect market data from all sources")
}

// CollectCandles implements data.MarketCollector
func (c *MultiSourceCollector) CollectCandles(ctx context.Context, symbol, interval string, limit int) ([]exchange.Candle, error) {
	for _, source := range c.sources {
		candles, err := source.CollectCandles(ctx, symbol, interval, limit)
		if err == nil && len(candles) > 0 {
			return candles, nil
		}
		c.logger.Error("failed to collect candles", "source", source.Name(), "symbol", symbol, "error", err)
	}

	return nil, fmt.Errorf("failed to collect candles from all sources")
}

// Subscribe implements data.MarketCollector
func (c *MultiSourceCollector) Subscribe(ctx context.Context, symbols []string, refreshInterval time.Duration) (<-chan models.MarketData, error) {
	if len(c.sources) == 0 {
		return nil, fmt.Errorf("no market data sources configured")
	}

	out := make(chan models.MarketData, 100)
	var wg sync.WaitGroup

	// 每个周期只从首个可用源取数, 避免重复推送同一交易对
	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, symbol := range symbols {
					data, err := c.CollectMarketData(ctx, symbol)
					if err != nil {
						continue
					}

					select {
					case out <- *data:
					default:
						c.logger.Error("channel full, dropping market data", "symbol", symbol)
					}
				}
			}
		}
	}()

	// 等待goroutine结束后关闭channel
	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}
