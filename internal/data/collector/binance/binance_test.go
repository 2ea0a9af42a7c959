package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T, path string, response interface{}) (*httptest.Server, *BinanceSource) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, path, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(response)
		require.NoError(t, err)
	}))

	src := NewBinanceSource()
	src.baseURL = server.URL
	src.httpClient = resty.NewWithClient(server.Client())

	return server, src
}

func TestBinanceSource_Name(t *testing.T) {
	src := NewBinanceSource()
	assert.Equal(t, "binance", src.Name())
}

func TestBinanceSource_CollectMarketData(t *testing.T) {
	type tickerResponse struct {
		LastPrice          string `json:"lastPrice"`
		BidPrice           string `json:"bidPrice"`
		AskPrice           string `json:"askPrice"`
		Volume             string `json:"volume"`
		PriceChangePercent string `json:"priceChangePercent"`
	}

	tests := []struct {
		name        string
		symbol      string
		response    tickerResponse
		expectError bool
		wantPrice   float64
		wantBid     float64
		wantAsk     float64
	}{
		{
			name:   "valid response",
			symbol: "BTCUSDT",
			response: tickerResponse{
				LastPrice:          "50000.00",
				BidPrice:           "49999.50",
				AskPrice:           "50000.50",
				Volume:             "1000.50",
				PriceChangePercent: "2.5",
			},
			wantPrice: 50000.00,
			wantBid:   49999.50,
			wantAsk:   50000.50,
		},
		{
			name:   "invalid number format",
			symbol: "BTCUSDT",
			response: tickerResponse{
				LastPrice:          "invalid",
				Volume:             "1000.50",
				PriceChangePercent: "2.5",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, src := setupTestServer(t, "/api/v3/ticker/24hr", tt.response)
			defer server.Close()

			ctx := context.Background()
			data, err := src.CollectMarketData(ctx, tt.symbol)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, data)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.symbol, data.Symbol)
			assert.Equal(t, tt.wantPrice, data.Price)
			assert.Equal(t, tt.wantBid, data.Bid)
			assert.Equal(t, tt.wantAsk, data.Ask)
			assert.WithinDuration(t, time.Now(), data.Timestamp, 2*time.Second)
		})
	}
}

func TestBinanceSource_CollectCandles(t *testing.T) {
	response := [][]interface{}{
		{1700000000000.0, "100.0", "110.0", "95.0", "105.0", "42.5", 1700000059999.0},
		{1700000060000.0, "105.0", "112.0", "104.0", "111.0", "17.1", 1700000119999.0},
	}

	server, src := setupTestServer(t, "/api/v3/klines", response)
	defer server.Close()

	candles, err := src.CollectCandles(context.Background(), "BTCUSDT", "1m", 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, time.UnixMilli(1700000000000), candles[0].OpenTime)
	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 110.0, candles[0].High)
	assert.Equal(t, 95.0, candles[0].Low)
	assert.Equal(t, 105.0, candles[0].Close)
	assert.Equal(t, 42.5, candles[0].Volume)
	assert.Equal(t, 111.0, candles[1].Close)
}

func TestBinanceSource_CollectCandlesMalformed(t *testing.T) {
	response := [][]interface{}{
		{1700000000000.0, "not-a-number", "110.0", "95.0", "105.0", "42.5"},
	}

	server, src := setupTestServer(t, "/api/v3/klines", response)
	defer server.Close()

	_, err := src.CollectCandles(context.Background(), "BTCUSDT", "1m", 1)
	assert.Error(t, err)
}

func TestBinanceSource_ErrorHandling(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
	}{
		{
			name:       "http 404 error",
			statusCode: http.StatusNotFound,
		},
		{
			name:       "http 429 rate limit",
			statusCode: http.StatusTooManyRequests,
		},
		{
			name:       "invalid json response",
			statusCode: http.StatusOK,
			body:       "invalid json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				if tt.body != "" {
					_, err := w.Write([]byte(tt.body))
					require.NoError(t, err)
				}
			}))
			defer server.Close()

			src := NewBinanceSource()
			src.baseURL = server.URL
			src.httpClient = resty.NewWithClient(server.Client())

			_, err := src.CollectMarketData(context.Background(), "BTCUSDT")
			assert.Error(t, err)
		})
	}
}

func TestBinanceIntegration(t *testing.T) {
	// 如果设置了 -short 标志,跳过集成测试
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	src := NewBinanceSource()
	ctx := context.Background()

	t.Run("collect market data", func(t *testing.T) {
		data, err := src.CollectMarketData(ctx, "BTCUSDT")
		require.NoError(t, err)
		require.NotNil(t, data)

		assert.Equal(t, "BTCUSDT", data.Symbol)
		assert.Greater(t, data.Price, 0.0)
		assert.Greater(t, data.Volume24h, 0.0)
		assert.NotZero(t, data.Timestamp)
	})

	t.Run("collect candles", func(t *testing.T) {
		candles, err := src.CollectCandles(ctx, "BTCUSDT", "1m", 10)
		require.NoError(t, err)
		require.Len(t, candles, 10)
		for _, c := range candles {
			assert.GreaterOrEqual(t, c.High, c.Low)
		}
	})

	t.Run("invalid symbol", func(t *testing.T) {
		data, err := src.CollectMarketData(ctx, "INVALIDTOKEN")
		assert.Error(t, err)
		assert.Nil(t, data)
	})
}
