package binance

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/tradeflux/internal/exchange"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		in   binance.OrderStatusType
		want exchange.Status
	}{
		{binance.OrderStatusTypeNew, exchange.StatusOpen},
		{binance.OrderStatusTypePartiallyFilled, exchange.StatusPartiallyFilled},
		{binance.OrderStatusTypeFilled, exchange.StatusFilled},
		{binance.OrderStatusTypeCanceled, exchange.StatusCancelled},
		{binance.OrderStatusTypeExpired, exchange.StatusCancelled},
		{binance.OrderStatusTypePendingCancel, exchange.StatusOpen},
		{binance.OrderStatusTypeRejected, exchange.StatusFailed},
		{binance.OrderStatusType("SOMETHING_NEW"), exchange.StatusOpen},
	}

	for _, tc := range cases {
		t.Run(string(tc.in), func(t *testing.T) {
			require.Equal(t, tc.want, NormalizeStatus(tc.in))
		})
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want exchange.ErrorKind
	}{
		{"bad api key", &common.APIError{Code: -2014, Message: "API-key format invalid"}, exchange.KindAuth},
		{"bad signature", &common.APIError{Code: -1022, Message: "Signature for this request is not valid"}, exchange.KindAuth},
		{"order missing", &common.APIError{Code: -2013, Message: "Order does not exist"}, exchange.KindNotFound},
		{"filter failure", &common.APIError{Code: -1013, Message: "Filter failure: LOT_SIZE"}, exchange.KindValidation},
		{"new order rejected", &common.APIError{Code: -2010, Message: "Account has insufficient balance"}, exchange.KindRejected},
		{"plain network error", errors.New("connection refused"), exchange.KindConnectivity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify("create_order", tc.err)
			require.Equal(t, tc.want, err.Kind)
			require.Equal(t, "create_order", err.Op)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestValidateQuantity(t *testing.T) {
	c := NewConnector("", "")
	c.markets["BTCUSDT"] = exchange.Market{
		Symbol:      "BTCUSDT",
		MinQuantity: 0.0001,
		StepSize:    0.0001,
	}

	require.NoError(t, c.validateQuantity("BTCUSDT", 0.5))

	err := c.validateQuantity("BTCUSDT", 0.00001)
	require.Error(t, err)
	require.True(t, exchange.IsKind(err, exchange.KindValidation))

	err = c.validateQuantity("BTCUSDT", -1)
	require.Error(t, err)
	require.True(t, exchange.IsKind(err, exchange.KindValidation))

	// Unknown symbol: the exchange has the final say.
	require.NoError(t, c.validateQuantity("UNKNOWN", 0.5))
}

func TestCreateLimitOrderRequiresPrice(t *testing.T) {
	c := NewConnector("", "")

	_, err := c.CreateLimitOrder(context.Background(), "BTCUSDT", exchange.SideBuy, 1, 0)
	require.Error(t, err)
	require.True(t, exchange.IsKind(err, exchange.KindValidation))
}

func TestToBinanceSide(t *testing.T) {
	side, err := toBinanceSide(exchange.SideBuy)
	require.NoError(t, err)
	require.Equal(t, binance.SideTypeBuy, side)

	side, err = toBinanceSide(exchange.SideSell)
	require.NoError(t, err)
	require.Equal(t, binance.SideTypeSell, side)

	_, err = toBinanceSide(exchange.Side("hold"))
	require.Error(t, err)
	require.True(t, exchange.IsKind(err, exchange.KindValidation))
}

func TestConnector_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	const symbol = "BTCUSDT"

	apiKey := os.Getenv("BINANCE_API_KEY")
	secretKey := os.Getenv("BINANCE_SECRET_KEY")

	c := NewConnector(apiKey, secretKey, true)
	ctx := context.Background()

	require.NoError(t, c.Initialize(ctx))

	t.Run("Market Metadata", func(t *testing.T) {
		m, ok := c.Market(symbol)
		require.True(t, ok)
		require.Equal(t, "BTC", m.BaseAsset)
		require.Equal(t, "USDT", m.QuoteAsset)
		require.Greater(t, m.StepSize, 0.0)
	})

	t.Run("Ticker", func(t *testing.T) {
		ticker, err := c.GetTicker(ctx, symbol)
		require.NoError(t, err)
		require.Greater(t, ticker.Last, 0.0)
	})

	t.Run("Order Book", func(t *testing.T) {
		book, err := c.GetOrderBook(ctx, symbol, 5)
		require.NoError(t, err)
		require.NotEmpty(t, book.Bids)
		require.NotEmpty(t, book.Asks)
		require.GreaterOrEqual(t, book.Asks[0].Price, book.Bids[0].Price)
	})

	t.Run("OHLCV", func(t *testing.T) {
		candles, err := c.GetOHLCV(ctx, symbol, "1m", 10)
		require.NoError(t, err)
		require.Len(t, candles, 10)
		for _, candle := range candles {
			require.GreaterOrEqual(t, candle.High, candle.Low)
		}
	})

	t.Run("Place and Cancel Limit Order", func(t *testing.T) {
		if apiKey == "" {
			t.Skip("BINANCE_API_KEY not set")
		}

		ticker, err := c.GetTicker(ctx, symbol)
		require.NoError(t, err)

		m, ok := c.Market(symbol)
		require.True(t, ok)

		// Far below market so it rests on the book.
		price := adjustToTick(ticker.Last*0.8, m.TickSize)
		qty := m.MinQuantity

		res, err := c.CreateLimitOrder(ctx, symbol, exchange.SideBuy, qty, price)
		require.NoError(t, err)
		require.NotEmpty(t, res.OrderID)
		require.NotEmpty(t, res.ClientOrderID)
		require.Equal(t, exchange.StatusOpen, res.Status)

		require.NoError(t, c.CancelOrder(ctx, res.OrderID, symbol))

		status, err := c.GetOrderStatus(ctx, res.OrderID, symbol)
		require.NoError(t, err)
		require.Equal(t, exchange.StatusCancelled, status.Status)
	})

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "Close must be idempotent")
}

func adjustToTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	ticks := float64(int64(price / tickSize))
	return ticks * tickSize
}
