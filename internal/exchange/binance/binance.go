package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"

	"github.com/songzhibin97/tradeflux/internal/exchange"
)

// Connector implements exchange.Connector for Binance spot markets.
type Connector struct {
	client    *binance.Client
	apiKey    string
	secretKey string

	mu      sync.RWMutex
	markets map[string]exchange.Market
	ready   bool
}

// NewConnector creates a Binance connector. Pass debug=true to route all
// calls to the spot testnet.
func NewConnector(apiKey, secretKey string, debug ...bool) *Connector {
	debug = append(debug, false)
	if debug[0] {
		binance.UseTestnet = true
	}

	client := binance.NewClient(apiKey, secretKey)

	return &Connector{
		client:    client,
		apiKey:    apiKey,
		secretKey: secretKey,
		markets:   make(map[string]exchange.Market),
	}
}

// Initialize implements exchange.Connector. It verifies connectivity and
// credentials, then loads tradable-market metadata used for local order
// validation.
func (c *Connector) Initialize(ctx context.Context) error {
	if err := c.client.NewPingService().Do(ctx); err != nil {
		return classify("initialize", err)
	}

	// A signed call proves the key pair works before any order is risked.
	if c.apiKey != "" {
		if _, err := c.client.NewGetAccountService().Do(ctx); err != nil {
			return classify("initialize", err)
		}
	}

	info, err := c.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return classify("initialize", err)
	}

	markets := make(map[string]exchange.Market, len(info.Symbols))
	for _, s := range info.Symbols {
		m := exchange.Market{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
		}
		for _, filter := range s.Filters {
			switch filter["filterType"].(string) {
			case "LOT_SIZE":
				m.MinQuantity = parseFilterFloat(filter, "minQty")
				m.StepSize = parseFilterFloat(filter, "stepSize")
			case "PRICE_FILTER":
				m.MinPrice = parseFilterFloat(filter, "minPrice")
				m.TickSize = parseFilterFloat(filter, "tickSize")
			}
		}
		markets[s.Symbol] = m
	}

	c.mu.Lock()
	c.markets = markets
	c.ready = true
	c.mu.Unlock()

	return nil
}

// Market returns the metadata loaded at Initialize for one symbol.
func (c *Connector) Market(symbol string) (exchange.Market, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.markets[symbol]
	return m, ok
}

// GetBalance implements exchange.Connector.
func (c *Connector) GetBalance(ctx context.Context, asset string) (exchange.Balance, error) {
	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return exchange.Balance{}, classify("get_balance", err)
	}

	for _, b := range account.Balances {
		if b.Asset != asset {
			continue
		}
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			return exchange.Balance{}, exchange.Errorf(exchange.KindValidation, "get_balance", "parse free balance: %v", err)
		}
		locked, err := strconv.ParseFloat(b.Locked, 64)
		if err != nil {
			return exchange.Balance{}, exchange.Errorf(exchange.KindValidation, "get_balance", "parse locked balance: %v", err)
		}
		return exchange.Balance{
			Asset: asset,
			Free:  free,
			Used:  locked,
			Total: free + locked,
		}, nil
	}

	return exchange.Balance{}, exchange.Errorf(exchange.KindNotFound, "get_balance", "no balance for asset %s", asset)
}

// GetTicker implements exchange.Connector.
func (c *Connector) GetTicker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	stats, err := c.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return exchange.Ticker{}, classify("get_ticker", err)
	}
	if len(stats) == 0 {
		return exchange.Ticker{}, exchange.Errorf(exchange.KindNotFound, "get_ticker", "no ticker for symbol %s", symbol)
	}

	s := stats[0]
	bid, _ := strconv.ParseFloat(s.BidPrice, 64)
	ask, _ := strconv.ParseFloat(s.AskPrice, 64)
	last, _ := strconv.ParseFloat(s.LastPrice, 64)
	volume, _ := strconv.ParseFloat(s.Volume, 64)

	return exchange.Ticker{
		Symbol: s.Symbol,
		Bid:    bid,
		Ask:    ask,
		Last:   last,
		Volume: volume,
		Time:   time.UnixMilli(s.CloseTime),
	}, nil
}

// GetOrderBook implements exchange.Connector.
func (c *Connector) GetOrderBook(ctx context.Context, symbol string, limit int) (exchange.OrderBook, error) {
	if limit <= 0 {
		limit = 20
	}

	depth, err := c.client.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
	if err != nil {
		return exchange.OrderBook{}, classify("get_orderbook", err)
	}

	book := exchange.OrderBook{
		Symbol: symbol,
		Bids:   make([]exchange.Level, 0, len(depth.Bids)),
		Asks:   make([]exchange.Level, 0, len(depth.Asks)),
		Time:   time.Now(),
	}
	for _, b := range depth.Bids {
		price, _ := strconv.ParseFloat(b.Price, 64)
		qty, _ := strconv.ParseFloat(b.Quantity, 64)
		book.Bids = append(book.Bids, exchange.Level{Price: price, Quantity: qty})
	}
	for _, a := range depth.Asks {
		price, _ := strconv.ParseFloat(a.Price, 64)
		qty, _ := strconv.ParseFloat(a.Quantity, 64)
		book.Asks = append(book.Asks, exchange.Level{Price: price, Quantity: qty})
	}

	return book, nil
}

// GetOHLCV implements exchange.Connector.
func (c *Connector) GetOHLCV(ctx context.Context, symbol, interval string, limit int) ([]exchange.Candle, error) {
	if limit <= 0 {
		limit = 100
	}

	klines, err := c.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, classify("get_ohlcv", err)
	}

	candles := make([]exchange.Candle, 0, len(klines))
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)
		candles = append(candles, exchange.Candle{
			OpenTime: time.UnixMilli(k.OpenTime),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			Volume:   volume,
		})
	}

	return candles, nil
}

// CreateMarketOrder implements exchange.Connector.
func (c *Connector) CreateMarketOrder(ctx context.Context, symbol string, side exchange.Side, quantity float64) (*exchange.OrderResult, error) {
	return c.createOrder(ctx, symbol, side, exchange.TypeMarket, quantity, 0)
}

// CreateLimitOrder implements exchange.Connector.
func (c *Connector) CreateLimitOrder(ctx context.Context, symbol string, side exchange.Side, quantity, price float64) (*exchange.OrderResult, error) {
	if price <= 0 {
		return nil, exchange.Errorf(exchange.KindValidation, "create_order", "limit order requires a positive price, got %f", price)
	}
	return c.createOrder(ctx, symbol, side, exchange.TypeLimit, quantity, price)
}

func (c *Connector) createOrder(ctx context.Context, symbol string, side exchange.Side, orderType exchange.OrderType, quantity, price float64) (*exchange.OrderResult, error) {
	binanceSide, err := toBinanceSide(side)
	if err != nil {
		return nil, err
	}

	if err := c.validateQuantity(symbol, quantity); err != nil {
		return nil, err
	}

	clientOrderID := uuid.NewString()

	service := c.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binanceSide).
		NewClientOrderID(clientOrderID)

	qty := strconv.FormatFloat(quantity, 'f', -1, 64)
	service.Quantity(qty)

	switch orderType {
	case exchange.TypeMarket:
		service.Type(binance.OrderTypeMarket)
	case exchange.TypeLimit:
		service.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(strconv.FormatFloat(price, 'f', -1, 64))
	default:
		return nil, exchange.Errorf(exchange.KindValidation, "create_order", "unsupported order type: %s", orderType)
	}

	result, err := service.Do(ctx)
	if err != nil {
		return nil, classify("create_order", err)
	}

	filled, _ := strconv.ParseFloat(result.ExecutedQuantity, 64)
	origQty, _ := strconv.ParseFloat(result.OrigQuantity, 64)
	resultPrice, _ := strconv.ParseFloat(result.Price, 64)
	if resultPrice == 0 {
		resultPrice = price
	}

	return &exchange.OrderResult{
		OrderID:       strconv.FormatInt(result.OrderID, 10),
		ClientOrderID: result.ClientOrderID,
		Symbol:        result.Symbol,
		Side:          side,
		Type:          orderType,
		Status:        NormalizeStatus(result.Status),
		Price:         resultPrice,
		Quantity:      origQty,
		Filled:        filled,
		Remaining:     origQty - filled,
		Time:          time.UnixMilli(result.TransactTime),
	}, nil
}

// CancelOrder implements exchange.Connector.
func (c *Connector) CancelOrder(ctx context.Context, orderID, symbol string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return exchange.Errorf(exchange.KindValidation, "cancel_order", "invalid order id %q: %v", orderID, err)
	}

	_, err = c.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return classify("cancel_order", err)
	}

	return nil
}

// GetOrderStatus implements exchange.Connector.
func (c *Connector) GetOrderStatus(ctx context.Context, orderID, symbol string) (*exchange.OrderResult, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, exchange.Errorf(exchange.KindValidation, "get_order_status", "invalid order id %q: %v", orderID, err)
	}

	result, err := c.client.NewGetOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return nil, classify("get_order_status", err)
	}

	return fromBinanceOrder(result), nil
}

// GetOpenOrders implements exchange.Connector.
func (c *Connector) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderResult, error) {
	service := c.client.NewListOpenOrdersService()
	if symbol != "" {
		service.Symbol(symbol)
	}

	orders, err := service.Do(ctx)
	if err != nil {
		return nil, classify("get_open_orders", err)
	}

	results := make([]exchange.OrderResult, 0, len(orders))
	for _, o := range orders {
		results = append(results, *fromBinanceOrder(o))
	}

	return results, nil
}

// Close implements exchange.Connector. The REST client holds no persistent
// connection, so this only flips the ready flag.
func (c *Connector) Close() error {
	c.mu.Lock()
	c.ready = false
	c.mu.Unlock()
	return nil
}

func (c *Connector) validateQuantity(symbol string, quantity float64) error {
	if quantity <= 0 {
		return exchange.Errorf(exchange.KindValidation, "create_order", "quantity must be positive, got %f", quantity)
	}

	c.mu.RLock()
	m, ok := c.markets[symbol]
	c.mu.RUnlock()

	// Markets are only known after Initialize; without metadata the
	// exchange has the final say.
	if !ok {
		return nil
	}
	if m.MinQuantity > 0 && quantity < m.MinQuantity {
		return exchange.Errorf(exchange.KindValidation, "create_order", "quantity %f below minimum %f for %s", quantity, m.MinQuantity, symbol)
	}
	return nil
}

func fromBinanceOrder(o *binance.Order) *exchange.OrderResult {
	price, _ := strconv.ParseFloat(o.Price, 64)
	origQty, _ := strconv.ParseFloat(o.OrigQuantity, 64)
	filled, _ := strconv.ParseFloat(o.ExecutedQuantity, 64)

	return &exchange.OrderResult{
		OrderID:       strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          exchange.Side(normalizeSide(o.Side)),
		Type:          normalizeType(o.Type),
		Status:        NormalizeStatus(o.Status),
		Price:         price,
		Quantity:      origQty,
		Filled:        filled,
		Remaining:     origQty - filled,
		Time:          time.UnixMilli(o.Time),
	}
}

func toBinanceSide(side exchange.Side) (binance.SideType, error) {
	switch side {
	case exchange.SideBuy:
		return binance.SideTypeBuy, nil
	case exchange.SideSell:
		return binance.SideTypeSell, nil
	default:
		return "", exchange.Errorf(exchange.KindValidation, "create_order", "invalid side: %s", side)
	}
}

func normalizeSide(side binance.SideType) string {
	switch side {
	case binance.SideTypeBuy:
		return string(exchange.SideBuy)
	case binance.SideTypeSell:
		return string(exchange.SideSell)
	default:
		return string(side)
	}
}

func normalizeType(t binance.OrderType) exchange.OrderType {
	switch t {
	case binance.OrderTypeMarket:
		return exchange.TypeMarket
	case binance.OrderTypeLimit:
		return exchange.TypeLimit
	default:
		return exchange.OrderType(t)
	}
}

// NormalizeStatus maps Binance order statuses onto the simplified view the
// rest of the system uses. Unknown statuses are treated as open so the
// monitor keeps watching instead of dropping the order.
func NormalizeStatus(status binance.OrderStatusType) exchange.Status {
	switch status {
	case binance.OrderStatusTypeNew:
		return exchange.StatusOpen
	case binance.OrderStatusTypePartiallyFilled:
		return exchange.StatusPartiallyFilled
	case binance.OrderStatusTypeFilled:
		return exchange.StatusFilled
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		return exchange.StatusCancelled
	case binance.OrderStatusTypePendingCancel:
		return exchange.StatusOpen
	case binance.OrderStatusTypeRejected:
		return exchange.StatusFailed
	default:
		return exchange.StatusOpen
	}
}

func parseFilterFloat(filter map[string]interface{}, key string) float64 {
	s, ok := filter[key].(string)
	if !ok {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// classify maps go-binance errors onto exchange error kinds. Binance API
// error codes: -1022 bad signature, -2014/-2015 bad key, -2010 order
// rejected, -2011 cancel rejected, -2013 order does not exist, -1013
// filter failure.
func classify(op string, err error) *exchange.Error {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return exchange.NewError(exchange.KindConnectivity, op, err)
	}

	switch apiErr.Code {
	case -1022, -2014, -2015:
		return exchange.NewError(exchange.KindAuth, op, err)
	case -2013:
		return exchange.NewError(exchange.KindNotFound, op, err)
	case -1013, -1100, -1111, -1121:
		return exchange.NewError(exchange.KindValidation, op, fmt.Errorf("exchange refused request: %w", err))
	case -2010, -2011:
		return exchange.NewError(exchange.KindRejected, op, err)
	default:
		return exchange.NewError(exchange.KindRejected, op, err)
	}
}
