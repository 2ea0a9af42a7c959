package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/songzhibin97/tradeflux/internal/exchange"
	"github.com/songzhibin97/tradeflux/internal/models"
	"github.com/songzhibin97/tradeflux/internal/utils/request"
)

type BinanceSource struct {
	baseURL    string
	httpClient *resty.Client
}

func NewBinanceSource() *BinanceSource {
	return &BinanceSource{
		baseURL:    "https://api.binance.com",
		httpClient: request.Request,
	}
}

func (b *BinanceSource) Name() string {
	return "binance"
}

func (b *BinanceSource) CollectMarketData(ctx context.Context, symbol string) (*models.MarketData, error) {
	// Use 24hr ticker price change statistics endpoint
	url := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", b.baseURL, symbol)

	resp, err := b.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var ticker struct {
		LastPrice          string `json:"lastPrice"`
		BidPrice           string `json:"bidPrice"`
		AskPrice           string `json:"askPrice"`
		Volume             string `json:"volume"`
		PriceChangePercent string `json:"priceChangePercent"`
	}

	if err := json.Unmarshal(resp.Body(), &ticker); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.LastPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}

	bid, _ := strconv.ParseFloat(ticker.BidPrice, 64)
	ask, _ := strconv.ParseFloat(ticker.AskPrice, 64)

	volume, err := strconv.ParseFloat(ticker.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse volume: %w", err)
	}

	priceChange, err := strconv.ParseFloat(ticker.PriceChangePercent, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price change: %w", err)
	}

	return &models.MarketData{
		Symbol:         symbol,
		Price:          price,
		Bid:            bid,
		Ask:            ask,
		Volume24h:      volume,
		PriceChange24h: priceChange,
		Timestamp:      time.Now(),
	}, nil
}

func (b *BinanceSource) CollectCandles(ctx context.Context, symbol, interval string, limit int) ([]exchange.Candle, error) {
	if limit <= 0 {
		limit = 100
	}

	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d", b.baseURL, symbol, interval, limit)

	resp, err := b.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	// Klines come back as arrays of mixed numbers and strings:
	// [openTime, "open", "high", "low", "close", "volume", closeTime, ...]
	var raw [][]interface{}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	candles := make([]exchange.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		candle, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("failed to parse kline: %w", err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

func parseKline(k []interface{}) (exchange.Candle, error) {
	openTime, ok := k[0].(float64)
	if !ok {
		return exchange.Candle{}, fmt.Errorf("unexpected open time type %T", k[0])
	}

	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		s, ok := k[i+1].(string)
		if !ok {
			return exchange.Candle{}, fmt.Errorf("unexpected field type %T", k[i+1])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return exchange.Candle{}, err
		}
		fields[i] = v
	}

	return exchange.Candle{
		OpenTime: time.UnixMilli(int64(openTime)),
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}
