package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/songzhibin97/tradeflux/internal/exchange"
	"github.com/songzhibin97/tradeflux/internal/models"
	"github.com/songzhibin97/tradeflux/internal/order"

	_ "github.com/lib/pq"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(connStr string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStorage{db: db}

	err = s.initTables()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return s, nil
}

// SaveMarketData implements data.Storage
func (s *PostgresStorage) SaveMarketData(ctx context.Context, data *models.MarketData) error {
	query := `
        INSERT INTO market_data (
            symbol, price, bid, ask, volume_24h, price_change_24h, timestamp
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7
        )
    `

	_, err := s.db.ExecContext(ctx, query,
		data.Symbol,
		data.Price,
		data.Bid,
		data.Ask,
		data.Volume24h,
		data.PriceChange24h,
		data.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to save market data: %w", err)
	}

	return nil
}

// GetHistoricalData implements data.Storage
func (s *PostgresStorage) GetHistoricalData(ctx context.Context, symbol string, start, end time.Time) ([]models.MarketData, error) {
	query := `
        SELECT symbol, price, bid, ask, volume_24h, price_change_24h, timestamp
        FROM market_data
        WHERE symbol = $1 AND timestamp BETWEEN $2 AND $3
        ORDER BY timestamp ASC
    `

	rows, err := s.db.QueryContext(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query historical data: %w", err)
	}
	defer rows.Close()

	var result []models.MarketData
	for rows.Next() {
		var data models.MarketData
		err := rows.Scan(
			&data.Symbol,
			&data.Price,
			&data.Bid,
			&data.Ask,
			&data.Volume24h,
			&data.PriceChange24h,
			&data.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market data: %w", err)
		}
		result = append(result, data)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating market data rows: %w", err)
	}

	return result, nil
}

// SaveOrder implements data.Storage. Re-archiving the same order id
// overwrites the previous row, so the hook stays idempotent.
func (s *PostgresStorage) SaveOrder(ctx context.Context, o *order.Order) error {
	metadata, err := json.Marshal(o.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode order metadata: %w", err)
	}

	query := `
        INSERT INTO order_history (
            order_id, client_order_id, symbol, side, order_type, status,
            quantity, price, filled, remaining, metadata,
            created_at, completed_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
        )
        ON CONFLICT (order_id) DO UPDATE SET
            status = EXCLUDED.status,
            filled = EXCLUDED.filled,
            remaining = EXCLUDED.remaining,
            completed_at = EXCLUDED.completed_at
    `

	_, err = s.db.ExecContext(ctx, query,
		o.ID,
		o.ClientOrderID,
		o.Symbol,
		string(o.Side),
		string(o.Type),
		string(o.Status),
		o.Quantity,
		o.Price,
		o.Filled,
		o.Remaining,
		string(metadata),
		o.CreatedAt,
		o.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	return nil
}

// ArchiveOrder lets the storage double as the order manager's archiver hook.
func (s *PostgresStorage) ArchiveOrder(ctx context.Context, o *order.Order) error {
	return s.SaveOrder(ctx, o)
}

// GetOrderHistory implements data.Storage
func (s *PostgresStorage) GetOrderHistory(ctx context.Context, symbol string, start, end time.Time) ([]order.Order, error) {
	query := `
        SELECT order_id, client_order_id, symbol, side, order_type, status,
               quantity, price, filled, remaining, metadata,
               created_at, completed_at
        FROM order_history
        WHERE symbol = $1 AND completed_at BETWEEN $2 AND $3
        ORDER BY completed_at ASC
    `

	rows, err := s.db.QueryContext(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query order history: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		var o order.Order
		var side, orderType, status, metadata string
		err := rows.Scan(
			&o.ID,
			&o.ClientOrderID,
			&o.Symbol,
			&side,
			&orderType,
			&status,
			&o.Quantity,
			&o.Price,
			&o.Filled,
			&o.Remaining,
			&metadata,
			&o.CreatedAt,
			&o.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		o.Side = exchange.Side(side)
		o.Type = exchange.OrderType(orderType)
		o.Status = exchange.Status(status)
		if metadata != "" && metadata != "null" {
			if err := json.Unmarshal([]byte(metadata), &o.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode order metadata: %w", err)
			}
		}
		result = append(result, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	return result, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS market_data (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(50) NOT NULL,
			price NUMERIC(18, 8),
			bid NUMERIC(18, 8),
			ask NUMERIC(18, 8),
			volume_24h NUMERIC(18, 8),
			price_change_24h NUMERIC(10, 4),
			timestamp TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS order_history (
			id SERIAL PRIMARY KEY,
			order_id VARCHAR(64) UNIQUE NOT NULL,
			client_order_id VARCHAR(64),
			symbol VARCHAR(50) NOT NULL,
			side VARCHAR(10) NOT NULL,
			order_type VARCHAR(10) NOT NULL,
			status VARCHAR(20) NOT NULL,
			quantity NUMERIC(18, 8),
			price NUMERIC(18, 8),
			filled NUMERIC(18, 8),
			remaining NUMERIC(18, 8),
			metadata TEXT,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)`,
	}

	for _, query := range queries {
		_, err := s.db.Exec(query)
		if err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}
