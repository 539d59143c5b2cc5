// Package store is the Postgres repository for destinations, price
// observations, and alerts. All access goes through prepared statements
// registered in internal/db.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested destination does not exist.
var ErrNotFound = errors.New("destination not found")

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Destination is a tracked origin/destination/date/budget watch.
type Destination struct {
	ID            int64      `json:"id"`
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	DepartureDate time.Time  `json:"departure_date"`
	ReturnDate    *time.Time `json:"return_date,omitempty"`
	MaxPrice      *float64   `json:"max_price,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Route returns the "YUL → CUN" display form.
func (d *Destination) Route() string {
	return d.Origin + " → " + d.Destination
}

// PriceObservation is one timestamped fare reading for a destination.
// Immutable once written.
type PriceObservation struct {
	ID            int64     `json:"id"`
	DestinationID int64     `json:"destination_id"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	Airline       string    `json:"airline"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Alert kinds.
const (
	AlertOptimalPrice    = "optimal_price"
	AlertPriceDrop       = "price_drop"
	AlertMaxPriceReached = "max_price_reached"
)

// Alert is a record of a notification event. Append-only.
type Alert struct {
	ID            int64     `json:"id"`
	DestinationID int64     `json:"destination_id"`
	AlertType     string    `json:"alert_type"`
	Message       string    `json:"message"`
	SentAt        time.Time `json:"sent_at"`
}

// DestinationOverview is a destination with its latest observation summary,
// used by the list endpoint.
type DestinationOverview struct {
	Destination
	LatestPrice *float64 `json:"latest_price,omitempty"`
	PriceCount  int      `json:"price_count"`
}

// NewDestination carries the fields required to create a watch.
type NewDestination struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	MaxPrice      *float64
}

// DestinationUpdate carries optional field updates; nil fields are untouched.
type DestinationUpdate struct {
	Origin        *string
	Destination   *string
	DepartureDate *time.Time
	ReturnDate    *time.Time
	MaxPrice      *float64
	IsActive      *bool
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store executes repository operations against a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over an established pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanDestination(row pgx.Row) (*Destination, error) {
	var d Destination
	err := row.Scan(
		&d.ID, &d.Origin, &d.Destination, &d.DepartureDate, &d.ReturnDate,
		&d.MaxPrice, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListActiveDestinations returns active watches in stable creation order.
// This order defines the processing order within a sweep.
func (s *Store) ListActiveDestinations(ctx context.Context) ([]Destination, error) {
	rows, err := s.pool.Query(ctx, "active_destinations")
	if err != nil {
		return nil, fmt.Errorf("list active destinations: %w", err)
	}
	defer rows.Close()

	var dests []Destination
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, fmt.Errorf("scan destination: %w", err)
		}
		dests = append(dests, *d)
	}
	return dests, rows.Err()
}

// GetDestination returns a single watch, or ErrNotFound.
func (s *Store) GetDestination(ctx context.Context, id int64) (*Destination, error) {
	d, err := scanDestination(s.pool.QueryRow(ctx, "destination_by_id", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get destination %d: %w", id, err)
	}
	return d, nil
}

// ListDestinations returns all watches with latest price and observation count.
func (s *Store) ListDestinations(ctx context.Context) ([]DestinationOverview, error) {
	rows, err := s.pool.Query(ctx, "destinations_overview")
	if err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}
	defer rows.Close()

	var out []DestinationOverview
	for rows.Next() {
		var o DestinationOverview
		err := rows.Scan(
			&o.ID, &o.Origin, &o.Destination, &o.DepartureDate, &o.ReturnDate,
			&o.MaxPrice, &o.IsActive, &o.CreatedAt, &o.UpdatedAt,
			&o.LatestPrice, &o.PriceCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan destination overview: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateDestination inserts a new watch and returns the stored row.
func (s *Store) CreateDestination(ctx context.Context, n NewDestination) (*Destination, error) {
	d, err := scanDestination(s.pool.QueryRow(ctx, "insert_destination",
		n.Origin, n.Destination, n.DepartureDate, n.ReturnDate, n.MaxPrice))
	if err != nil {
		return nil, fmt.Errorf("insert destination: %w", err)
	}
	return d, nil
}

// UpdateDestination applies the non-nil fields of u and returns the updated
// row. Returns ErrNotFound if the id does not exist.
func (s *Store) UpdateDestination(ctx context.Context, id int64, u DestinationUpdate) (*Destination, error) {
	sets := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if u.Origin != nil {
		sets = append(sets, "origin = "+arg(*u.Origin))
	}
	if u.Destination != nil {
		sets = append(sets, "destination = "+arg(*u.Destination))
	}
	if u.DepartureDate != nil {
		sets = append(sets, "departure_date = "+arg(*u.DepartureDate))
	}
	if u.ReturnDate != nil {
		sets = append(sets, "return_date = "+arg(*u.ReturnDate))
	}
	if u.MaxPrice != nil {
		sets = append(sets, "max_price = "+arg(*u.MaxPrice))
	}
	if u.IsActive != nil {
		sets = append(sets, "is_active = "+arg(*u.IsActive))
	}
	if len(sets) == 0 {
		return s.GetDestination(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")

	sql := fmt.Sprintf(
		`UPDATE destinations SET %s WHERE id = %s
		 RETURNING id, origin, destination, departure_date, return_date,
		           max_price, is_active, created_at, updated_at`,
		strings.Join(sets, ", "), arg(id))

	d, err := scanDestination(s.pool.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update destination %d: %w", id, err)
	}
	return d, nil
}

// DeleteDestination removes a watch. Prices and alerts cascade in the schema.
func (s *Store) DeleteDestination(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "delete_destination", id)
	if err != nil {
		return fmt.Errorf("delete destination %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertObservation appends a fare reading for a destination.
func (s *Store) InsertObservation(ctx context.Context, destinationID int64, price float64, currency, airline string) (*PriceObservation, error) {
	var o PriceObservation
	err := s.pool.QueryRow(ctx, "insert_price", destinationID, price, currency, airline).Scan(
		&o.ID, &o.DestinationID, &o.Price, &o.Currency, &o.Airline, &o.CheckedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert price: %w", err)
	}
	return &o, nil
}

// ListObservationsSince returns observations for a destination newer than
// since, most recent first.
func (s *Store) ListObservationsSince(ctx context.Context, destinationID int64, since time.Time) ([]PriceObservation, error) {
	rows, err := s.pool.Query(ctx, "prices_since", destinationID, since)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	defer rows.Close()

	var obs []PriceObservation
	for rows.Next() {
		var o PriceObservation
		if err := rows.Scan(&o.ID, &o.DestinationID, &o.Price, &o.Currency, &o.Airline, &o.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// LatestObservation returns the most recent fare reading, or nil when the
// destination has no observations yet.
func (s *Store) LatestObservation(ctx context.Context, destinationID int64) (*PriceObservation, error) {
	var o PriceObservation
	err := s.pool.QueryRow(ctx, "latest_price", destinationID).Scan(
		&o.ID, &o.DestinationID, &o.Price, &o.Currency, &o.Airline, &o.CheckedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest price: %w", err)
	}
	return &o, nil
}

// InsertAlert appends a notification record.
func (s *Store) InsertAlert(ctx context.Context, destinationID int64, alertType, message string) error {
	if _, err := s.pool.Exec(ctx, "insert_alert", destinationID, alertType, message); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ListAlerts returns the alert history for one destination, newest first.
func (s *Store) ListAlerts(ctx context.Context, destinationID int64, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, "alerts_for_destination", destinationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// ListRecentAlerts returns the newest alerts across all destinations.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, "recent_alerts", limit)
	if err != nil {
		return nil, fmt.Errorf("list recent alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func scanAlerts(rows pgx.Rows) ([]Alert, error) {
	var alerts []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.DestinationID, &a.AlertType, &a.Message, &a.SentAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
