// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ygagnon/farewatch/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the API and tracking
// layers use. Prepared statements eliminate parse overhead on every sweep.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Destinations
		"active_destinations": `
			SELECT id, origin, destination, departure_date, return_date,
			       max_price, is_active, created_at, updated_at
			FROM destinations
			WHERE is_active
			ORDER BY created_at, id`,
		"destination_by_id": `
			SELECT id, origin, destination, departure_date, return_date,
			       max_price, is_active, created_at, updated_at
			FROM destinations
			WHERE id = $1`,
		"destinations_overview": `
			SELECT d.id, d.origin, d.destination, d.departure_date, d.return_date,
			       d.max_price, d.is_active, d.created_at, d.updated_at,
			       (SELECT p.price FROM prices p WHERE p.destination_id = d.id
			        ORDER BY p.checked_at DESC LIMIT 1),
			       (SELECT COUNT(*) FROM prices p WHERE p.destination_id = d.id)
			FROM destinations d
			ORDER BY d.created_at DESC`,
		"insert_destination": `
			INSERT INTO destinations (origin, destination, departure_date, return_date, max_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, origin, destination, departure_date, return_date,
			          max_price, is_active, created_at, updated_at`,
		"delete_destination": "DELETE FROM destinations WHERE id = $1",

		// Price observations
		"insert_price": `
			INSERT INTO prices (destination_id, price, currency, airline)
			VALUES ($1, $2, $3, $4)
			RETURNING id, destination_id, price, currency, airline, checked_at`,
		"prices_since": `
			SELECT id, destination_id, price, currency, airline, checked_at
			FROM prices
			WHERE destination_id = $1 AND checked_at >= $2
			ORDER BY checked_at DESC`,
		"latest_price": `
			SELECT id, destination_id, price, currency, airline, checked_at
			FROM prices
			WHERE destination_id = $1
			ORDER BY checked_at DESC
			LIMIT 1`,

		// Alerts
		"insert_alert": `
			INSERT INTO alerts (destination_id, alert_type, message)
			VALUES ($1, $2, $3)`,
		"alerts_for_destination": `
			SELECT id, destination_id, alert_type, message, sent_at
			FROM alerts
			WHERE destination_id = $1
			ORDER BY sent_at DESC
			LIMIT $2`,
		"recent_alerts": `
			SELECT a.id, a.destination_id, a.alert_type, a.message, a.sent_at
			FROM alerts a
			ORDER BY a.sent_at DESC
			LIMIT $1`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
