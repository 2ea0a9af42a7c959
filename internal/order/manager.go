package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/songzhibin97/tradeflux/internal/exchange"
)

// Logger is the narrow logging surface the manager needs. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Archiver persists orders after they reach a terminal state. A nil
// archiver means history is kept in memory only.
type Archiver interface {
	ArchiveOrder(ctx context.Context, o *Order) error
}

// Config 订单管理器参数
type Config struct {
	MaxChecks         int           `json:"max_checks" yaml:"max_checks"`                 // 有界监控轮询次数上限
	PollInterval      time.Duration `json:"poll_interval" yaml:"poll_interval"`           // 首次轮询间隔
	MaxPollInterval   time.Duration `json:"max_poll_interval" yaml:"max_poll_interval"`   // 退避间隔上限
	ReconcileInterval time.Duration `json:"reconcile_interval" yaml:"reconcile_interval"` // 对账循环间隔
}

// DefaultConfig returns the polling budget used when the caller does not
// override it.
func DefaultConfig() Config {
	return Config{
		MaxChecks:         10,
		PollInterval:      2 * time.Second,
		MaxPollInterval:   16 * time.Second,
		ReconcileInterval: 10 * time.Second,
	}
}

func (c *Config) normalize() {
	if c.MaxChecks <= 0 {
		c.MaxChecks = 10
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxPollInterval < c.PollInterval {
		c.MaxPollInterval = c.PollInterval
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = 10 * time.Second
	}
}

// Stats summarizes the manager's lifetime order flow. SuccessRate is
// filled orders over everything ever placed, not a rolling window.
type Stats struct {
	Total       int     `json:"total"`
	Active      int     `json:"active"`
	Completed   int     `json:"completed"`
	Filled      int     `json:"filled"`
	Cancelled   int     `json:"cancelled"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Manager tracks every order placed through the connector and advances it
// toward a terminal state. An order placed successfully lives in exactly
// one of two collections at any time: the active map or the append-only
// history. A failed placement creates no record at all.
type Manager struct {
	connector exchange.Connector
	cfg       Config
	log       Logger

	mu         sync.Mutex
	active     map[string]*Order
	history    []*Order
	monitoring map[string]bool // ids with a live bounded monitor; reconciliation skips these

	archiver Archiver
	wg       sync.WaitGroup
}

// NewManager creates a Manager on top of a connector.
func NewManager(connector exchange.Connector, cfg Config, logger Logger) *Manager {
	cfg.normalize()
	return &Manager{
		connector:  connector,
		cfg:        cfg,
		log:        logger,
		active:     make(map[string]*Order),
		monitoring: make(map[string]bool),
	}
}

// SetArchiver installs a persistence hook invoked whenever an order moves
// to history.
func (m *Manager) SetArchiver(a Archiver) {
	m.mu.Lock()
	m.archiver = a
	m.mu.Unlock()
}

// PlaceMarketOrder submits a market order and begins monitoring it. On
// connector failure no record is created and the error is returned with
// its kind intact.
func (m *Manager) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.Side, quantity float64, metadata map[string]string) (*Order, error) {
	res, err := m.connector.CreateMarketOrder(ctx, symbol, side, quantity)
	if err != nil {
		m.log.Warn("market order rejected", "symbol", symbol, "side", side, "quantity", quantity, "err", err)
		return nil, fmt.Errorf("place market order: %w", err)
	}
	return m.register(ctx, res, metadata), nil
}

// PlaceLimitOrder submits a GTC limit order and begins monitoring it.
func (m *Manager) PlaceLimitOrder(ctx context.Context, symbol string, side exchange.Side, quantity, price float64, metadata map[string]string) (*Order, error) {
	res, err := m.connector.CreateLimitOrder(ctx, symbol, side, quantity, price)
	if err != nil {
		m.log.Warn("limit order rejected", "symbol", symbol, "side", side, "quantity", quantity, "price", price, "err", err)
		return nil, fmt.Errorf("place limit order: %w", err)
	}
	return m.register(ctx, res, metadata), nil
}

// register puts a freshly accepted order into the active set and spawns
// its bounded monitor. Orders the exchange already reports terminal go
// straight to history.
func (m *Manager) register(ctx context.Context, res *exchange.OrderResult, metadata map[string]string) *Order {
	ord := fromResult(res, metadata)
	if ord.Status == "" {
		ord.Status = exchange.StatusSubmitted
	}

	m.mu.Lock()
	m.active[ord.ID] = ord
	snapshot := ord.clone()
	if ord.Terminal() {
		m.mu.Unlock()
		m.MoveToHistory(ord.ID)
		m.log.Info("order terminal at submission", "id", ord.ID, "symbol", ord.Symbol, "status", ord.Status)
		return snapshot
	}
	m.monitoring[ord.ID] = true
	m.mu.Unlock()

	m.log.Info("order placed", "id", ord.ID, "symbol", ord.Symbol, "side", ord.Side, "type", ord.Type, "quantity", ord.Quantity)

	m.wg.Add(1)
	go func(id, symbol string) {
		defer m.wg.Done()
		if err := m.MonitorOrder(ctx, id, symbol, m.cfg.MaxChecks); err != nil {
			m.log.Warn("bounded monitor aborted", "id", id, "err", err)
		}
	}(ord.ID, ord.Symbol)

	return snapshot
}

// MonitorOrder polls the order's status until it turns terminal, the
// check budget runs out, or ctx is cancelled. Polls are spaced by the
// configured interval, doubling up to the cap. A polling error aborts the
// monitor and leaves the order active for the reconciliation loop.
func (m *Manager) MonitorOrder(ctx context.Context, orderID, symbol string, maxChecks int) error {
	defer func() {
		m.mu.Lock()
		delete(m.monitoring, orderID)
		m.mu.Unlock()
	}()

	if maxChecks <= 0 {
		maxChecks = m.cfg.MaxChecks
	}

	delay := m.cfg.PollInterval
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for check := 0; check < maxChecks; check++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		res, err := m.connector.GetOrderStatus(ctx, orderID, symbol)
		if err != nil {
			return fmt.Errorf("poll order %s: %w", orderID, err)
		}

		done, terminal := m.applyPoll(orderID, res)
		if done {
			// Removed elsewhere (e.g. a concurrent cancel); nothing left to watch.
			return nil
		}
		if terminal {
			m.MoveToHistory(orderID)
			m.log.Info("order completed", "id", orderID, "status", res.Status, "filled", res.Filled)
			return nil
		}

		delay *= 2
		if delay > m.cfg.MaxPollInterval {
			delay = m.cfg.MaxPollInterval
		}
		timer.Reset(delay)
	}

	m.log.Debug("monitor budget exhausted", "id", orderID, "checks", maxChecks)
	return nil
}

// applyPoll folds a poll result into the active record. done means the
// order is no longer active; terminal means it just reached a final state.
func (m *Manager) applyPoll(orderID string, res *exchange.OrderResult) (done, terminal bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ord, ok := m.active[orderID]
	if !ok {
		return true, false
	}
	ord.applyResult(res)
	return false, ord.Terminal()
}

// CancelOrder asks the exchange to cancel an active order. An id the
// manager does not know is a graceful no-op. On connector failure the
// order stays active.
func (m *Manager) CancelOrder(ctx context.Context, orderID, symbol string) (bool, error) {
	m.mu.Lock()
	_, ok := m.active[orderID]
	m.mu.Unlock()
	if !ok {
		m.log.Debug("cancel of unknown order ignored", "id", orderID)
		return false, nil
	}

	if err := m.connector.CancelOrder(ctx, orderID, symbol); err != nil {
		m.log.Warn("cancel failed, order stays active", "id", orderID, "err", err)
		return false, fmt.Errorf("cancel order %s: %w", orderID, err)
	}

	m.mu.Lock()
	if ord, ok := m.active[orderID]; ok {
		ord.Status = exchange.StatusCancelled
		ord.LastUpdate = time.Now()
	}
	m.mu.Unlock()

	m.MoveToHistory(orderID)
	m.log.Info("order cancelled", "id", orderID, "symbol", symbol)
	return true, nil
}

// StartReconciliation runs the safety-net loop that revisits every active
// order whose bounded monitor is not running, so orders whose monitor
// aborted on a transient error cannot fall off the tracked set. It
// returns after spawning the loop; the loop stops when ctx is cancelled.
func (m *Manager) StartReconciliation(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.cfg.ReconcileInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.reconcile(ctx)
			}
		}
	}()
}

func (m *Manager) reconcile(ctx context.Context) {
	type target struct{ id, symbol string }

	m.mu.Lock()
	targets := make([]target, 0, len(m.active))
	for id, ord := range m.active {
		if m.monitoring[id] {
			continue
		}
		targets = append(targets, target{id: id, symbol: ord.Symbol})
	}
	m.mu.Unlock()

	for _, t := range targets {
		res, err := m.connector.GetOrderStatus(ctx, t.id, t.symbol)
		if err != nil {
			m.log.Warn("reconcile poll failed", "id", t.id, "err", err)
			continue
		}

		done, terminal := m.applyPoll(t.id, res)
		if done {
			continue
		}
		if terminal {
			m.MoveToHistory(t.id)
			m.log.Info("order completed by reconciliation", "id", t.id, "status", res.Status)
		}
	}
}

// MoveToHistory pops an order from the active set, stamps its completion
// time and appends it to history. This is the single mutation point for
// the active/history invariant; calling it twice for the same id is a
// no-op. It reports whether a move happened.
func (m *Manager) MoveToHistory(orderID string) bool {
	m.mu.Lock()
	ord, ok := m.active[orderID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.active, orderID)
	now := time.Now()
	ord.CompletedAt = now
	ord.LastUpdate = now
	m.history = append(m.history, ord)
	archiver := m.archiver
	snapshot := ord.clone()
	m.mu.Unlock()

	if archiver != nil {
		if err := archiver.ArchiveOrder(context.Background(), snapshot); err != nil {
			m.log.Error("archive order failed", "id", orderID, "err", err)
		}
	}
	return true
}

// ActiveOrders returns copies of every order still being tracked.
func (m *Manager) ActiveOrders() []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := make([]*Order, 0, len(m.active))
	for _, ord := range m.active {
		orders = append(orders, ord.clone())
	}
	return orders
}

// Get returns a copy of one tracked order, active or historical.
func (m *Manager) Get(orderID string) (*Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ord, ok := m.active[orderID]; ok {
		return ord.clone(), true
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ID == orderID {
			return m.history[i].clone(), true
		}
	}
	return nil, false
}

// History returns copies of the most recent limit completed orders,
// oldest first. limit <= 0 returns everything.
func (m *Manager) History(limit int) []*Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if limit > 0 && len(m.history) > limit {
		start = len(m.history) - limit
	}

	orders := make([]*Order, 0, len(m.history)-start)
	for _, ord := range m.history[start:] {
		orders = append(orders, ord.clone())
	}
	return orders
}

// Stats derives lifetime counters from the two collections.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		Active:    len(m.active),
		Completed: len(m.history),
		Total:     len(m.active) + len(m.history),
	}
	for _, ord := range m.history {
		switch ord.Status {
		case exchange.StatusFilled:
			stats.Filled++
		case exchange.StatusCancelled:
			stats.Cancelled++
		case exchange.StatusFailed:
			stats.Failed++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Filled) / float64(stats.Total)
	}
	return stats
}

// Wait blocks until every monitor goroutine has exited. Intended for
// shutdown after the contexts driving them are cancelled.
func (m *Manager) Wait() {
	m.wg.Wait()
}
