package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/songzhibin97/tradeflux/internal/advisor"
	advisorDeepSeek "github.com/songzhibin97/tradeflux/internal/advisor/deepseek"
	advisorOpenAI "github.com/songzhibin97/tradeflux/internal/advisor/openai"
	"github.com/songzhibin97/tradeflux/internal/backtest"
	"github.com/songzhibin97/tradeflux/internal/configs"
	"github.com/songzhibin97/tradeflux/internal/data"
	collectorData "github.com/songzhibin97/tradeflux/internal/data/collector"
	collectorBinance "github.com/songzhibin97/tradeflux/internal/data/collector/binance"
	"github.com/songzhibin97/tradeflux/internal/data/storage"
	"github.com/songzhibin97/tradeflux/internal/exchange"
	"github.com/songzhibin97/tradeflux/internal/exchange/binance"
	"github.com/songzhibin97/tradeflux/internal/models"
	"github.com/songzhibin97/tradeflux/internal/order"
	"github.com/songzhibin97/tradeflux/internal/risk"
	"github.com/songzhibin97/tradeflux/internal/strategy"
)

type TradingSystem struct {
	config      *configs.Config
	collector   data.MarketCollector
	storage     data.Storage
	orders      *order.Manager
	riskManager *risk.BasicManager
	advisor     advisor.Advisor
	strategies  map[string]strategy.Strategy
}

func NewTradingSystem(
	config *configs.Config,
	collector data.MarketCollector,
	storager data.Storage,
	orders *order.Manager,
	riskMgr *risk.BasicManager,
	adv advisor.Advisor,
) (*TradingSystem, error) {
	strategies := make(map[string]strategy.Strategy, len(config.Symbols))
	for _, symbol := range config.Symbols {
		strat, err := strategy.NewSMARSIStrategy(symbol, config.Strategy)
		if err != nil {
			return nil, fmt.Errorf("strategy for %s: %w", symbol, err)
		}
		strategies[symbol] = strat
	}

	return &TradingSystem{
		config:      config,
		collector:   collector,
		storage:     storager,
		orders:      orders,
		riskManager: riskMgr,
		advisor:     adv,
		strategies:  strategies,
	}, nil
}

// Run 运行交易系统
func (s *TradingSystem) Run(ctx context.Context) error {
	// 设置风险参数
	if err := s.riskManager.SetParameters(ctx, &s.config.RiskParams); err != nil {
		return err
	}
	log.Debug("set risk parameters ok!")

	refreshInterval, err := time.ParseDuration(s.config.RefreshInterval)
	if err != nil {
		refreshInterval = time.Second * 10
	}

	// 订阅市场数据
	marketDataCh, err := s.collector.Subscribe(ctx, s.config.Symbols, refreshInterval)
	if err != nil {
		return err
	}

	log.Debug("subscribe to market data ok!")

	// 监控风险预警
	riskAlertCh, err := s.riskManager.MonitorPositions(ctx)
	if err != nil {
		return err
	}

	log.Debug("monitor positions ok!")

	// 对账循环兜底被放弃的订单
	s.orders.StartReconciliation(ctx)

	// 主循环
	for {
		select {
		case <-ctx.Done():
			s.orders.Wait()
			return ctx.Err()

		case marketData := <-marketDataCh:
			log.Debug("Received market data", "market", marketData)

			if err := s.handleMarketData(ctx, marketData); err != nil {
				log.Error("Error handling market data", "err", err)
			}

		case alert := <-riskAlertCh:
			log.Debug("Received risk alert", "alert", alert)

			if err := s.handleRiskAlert(ctx, alert); err != nil {
				log.Error("Error handling risk alert", "err", err)
			}
		}
	}
}

// handleMarketData 处理市场数据
func (s *TradingSystem) handleMarketData(ctx context.Context, md models.MarketData) error {
	// 1. 保存市场数据
	if err := s.storage.SaveMarketData(ctx, &md); err != nil {
		return err
	}

	strat, ok := s.strategies[md.Symbol]
	if !ok {
		return nil
	}

	// 2. 取最近一根K线喂给策略
	candles, err := s.collector.CollectCandles(ctx, md.Symbol, "1m", 1)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return nil
	}

	signal := strat.OnCandle(candles[len(candles)-1])
	if signal.Action == strategy.ActionHold {
		return nil
	}

	log.Debug("strategy signal", "symbol", signal.Symbol, "action", signal.Action, "reason", signal.Reason)

	// 3. AI顾问复核信号
	score, err := s.advisor.ScoreSignal(ctx, signal, md)
	if err != nil {
		return err
	}
	if score < s.config.Advisor.MinScore {
		log.Debug("signal skipped by advisor", "symbol", signal.Symbol, "score", score)
		return nil
	}

	// 4. 仓位计算
	quantity := s.orderQuantity(md.Price)
	if quantity <= 0 {
		return nil
	}

	intent := &risk.Intent{
		Symbol:   md.Symbol,
		Side:     toSide(signal.Action),
		Type:     exchange.OrderType(s.config.TradingConfig.OrderType),
		Quantity: quantity,
		Price:    md.Price,
	}

	// 5. 风险评估
	assessment, err := s.riskManager.CheckOrderRisk(ctx, intent)
	if err != nil {
		return err
	}
	if !assessment.IsAcceptable {
		log.Warn("order rejected by risk check", "symbol", md.Symbol, "risk_level", assessment.RiskLevel, "risk_factors", assessment.RiskFactors)
		return nil
	}

	// 6. 下单并交给订单管理器跟踪
	metadata := map[string]string{
		"signal_reason": signal.Reason,
		"advisor_score": fmt.Sprintf("%.2f", score),
	}

	var placed *order.Order
	if intent.Type == exchange.TypeLimit {
		placed, err = s.orders.PlaceLimitOrder(ctx, md.Symbol, intent.Side, quantity, md.Price, metadata)
	} else {
		placed, err = s.orders.PlaceMarketOrder(ctx, md.Symbol, intent.Side, quantity, metadata)
	}
	if err != nil {
		return err
	}

	s.riskManager.RecordFill(md.Symbol, intent.Notional(), 0)

	log.Info("order placed", "order_id", placed.ID, "symbol", placed.Symbol, "side", placed.Side, "quantity", placed.Quantity)
	return nil
}

// handleRiskAlert 处理风险预警
func (s *TradingSystem) handleRiskAlert(ctx context.Context, alert risk.Alert) error {
	switch alert.Severity {
	case "high":
		// 撤掉该交易对全部在途订单
		return s.cancelActiveOrders(ctx, alert.Symbol, false)
	case "medium":
		// 只撤限价单, 市价单让其自然终结
		return s.cancelActiveOrders(ctx, alert.Symbol, true)
	default:
		log.Warn("risk alert", "symbol", alert.Symbol, "description", alert.Description)
		return nil
	}
}

func (s *TradingSystem) cancelActiveOrders(ctx context.Context, symbol string, limitOnly bool) error {
	var firstErr error
	for _, o := range s.orders.ActiveOrders() {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		if limitOnly && o.Type != exchange.TypeLimit {
			continue
		}
		if _, err := s.orders.CancelOrder(ctx, o.ID, o.Symbol); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// orderQuantity sizes the order from account equity and the configured
// stop distance, clamped to the per-order bounds.
func (s *TradingSystem) orderQuantity(price float64) float64 {
	trading := s.config.TradingConfig

	quantity := trading.MaxOrderAmount
	if trading.StopLossPct > 0 && trading.Equity > 0 {
		stopPrice := price * (1 - trading.StopLossPct)
		quantity = s.riskManager.PositionSize(trading.Equity, price, stopPrice)
	}

	if trading.MaxOrderAmount > 0 && quantity > trading.MaxOrderAmount {
		quantity = trading.MaxOrderAmount
	}
	if quantity < trading.MinOrderAmount {
		quantity = trading.MinOrderAmount
	}
	return quantity
}

func toSide(action strategy.Action) exchange.Side {
	if action == strategy.ActionSell {
		return exchange.SideSell
	}
	return exchange.SideBuy
}

// positionsFromOrders exposes partially and fully filled active orders to
// the risk monitor as open positions.
func positionsFromOrders(orders *order.Manager) risk.PositionSource {
	return func(ctx context.Context) ([]risk.Position, error) {
		active := orders.ActiveOrders()
		positions := make([]risk.Position, 0, len(active))
		for _, o := range active {
			if o.Filled <= 0 {
				continue
			}
			positions = append(positions, risk.Position{
				Symbol:     o.Symbol,
				Quantity:   o.Filled,
				EntryPrice: o.Price,
			})
		}
		return positions, nil
	}
}

func runBacktest(config *configs.Config, collector data.MarketCollector) error {
	ctx := context.Background()

	symbol := config.Backtest.Symbol
	if symbol == "" && len(config.Symbols) > 0 {
		symbol = config.Symbols[0]
	}

	strat, err := strategy.NewSMARSIStrategy(symbol, config.Strategy)
	if err != nil {
		return err
	}

	cfg := config.Backtest
	cfg.Symbol = symbol
	bt, err := backtest.New(cfg, strat)
	if err != nil {
		return err
	}

	candles, err := collector.CollectCandles(ctx, symbol, "1h", 500)
	if err != nil {
		return err
	}

	result, err := bt.Run(candles)
	if err != nil {
		return err
	}

	log.Info("backtest finished",
		"symbol", symbol,
		"trades", len(result.Trades),
		"wins", result.Wins,
		"losses", result.Losses,
		"win_rate", result.WinRate,
		"net_pnl", result.NetPnL.String(),
	)
	return nil
}

var (
	flagconf     string
	flagbacktest bool

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.BoolVar(&flagbacktest, "backtest", false, "replay historical candles instead of live trading")
}

func main() {
	flag.Parse()

	// .env 中的密钥优先于配置文件
	_ = godotenv.Load()

	config, err := configs.Load(flagconf)
	if err != nil {
		log.Error("Error loading config file", "err", err)
		return
	}

	if key := os.Getenv("BINANCE_API_KEY"); key != "" {
		config.ExchangeConfig.APIKey = key
	}
	if key := os.Getenv("BINANCE_SECRET_KEY"); key != "" {
		config.ExchangeConfig.SecretKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && config.Advisor.Provider != "deepseek" {
		config.Advisor.APIKey = key
	}
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" && config.Advisor.Provider == "deepseek" {
		config.Advisor.APIKey = key
	}

	log.Debug("Loaded config", "symbols", config.Symbols)

	if config.Proxy != "" {
		_ = os.Setenv("HTTP_PROXY", config.Proxy)
		_ = os.Setenv("HTTPS_PROXY", config.Proxy)
		log.Debug("set proxy ok", "proxy", config.Proxy)
	}

	// 初始化各个组件
	collector := collectorData.NewMultiSourceCollector([]collectorData.MarketSource{
		collectorBinance.NewBinanceSource(),
	}, log)

	log.Debug("init collector")

	if flagbacktest {
		if err := runBacktest(config, collector); err != nil {
			log.Error("Backtest error", "err", err)
		}
		return
	}

	storager, err := storage.NewPostgresStorage(config.Database.ConnStr)
	if err != nil {
		log.Error("Error creating storage", "err", err)
		return
	}
	defer storager.Close()

	log.Debug("init storager")

	connector := binance.NewConnector(config.ExchangeConfig.APIKey, config.ExchangeConfig.SecretKey, config.ExchangeConfig.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := connector.Initialize(ctx); err != nil {
		log.Error("Error initializing exchange connector", "err", err)
		return
	}
	defer connector.Close()

	log.Debug("init connector")

	orders := order.NewManager(connector, config.OrderManager, log)
	orders.SetArchiver(storager)

	log.Debug("init order manager")

	riskManager := risk.NewBasicManager(config.RiskParams, positionsFromOrders(orders))

	log.Debug("init riskManager")

	adv := advisor.PassThrough()
	if config.Advisor.Enabled {
		switch config.Advisor.Provider {
		case "deepseek":
			adv = advisorDeepSeek.NewDeepSeekAdvisor(config.Advisor.APIKey, config.Advisor.ModelType)
		default:
			adv = advisorOpenAI.NewOpenAIAdvisor(config.Advisor.APIKey, config.Advisor.ModelType)
		}
	}

	log.Debug("init advisor")

	system, err := NewTradingSystem(
		config,
		collector,
		storager,
		orders,
		riskManager,
		adv,
	)
	if err != nil {
		log.Error("Error building trading system", "err", err)
		return
	}

	// 运行系统
	if err := system.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("System error", "err", err)
	}
}
