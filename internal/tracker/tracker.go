// Package tracker drives the periodic fare sweeps: it schedules full passes
// over all active destinations, runs the per-destination fetch → persist →
// analyze → alert cycle, and isolates failures so one bad route never stops
// the rest.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ygagnon/farewatch/internal/duffel"
	"github.com/ygagnon/farewatch/internal/store"
)

// --------------------------------------------------------------------------
// Collaborator interfaces — implemented by internal/store, internal/duffel,
// and internal/notify; mocked in tests.
// --------------------------------------------------------------------------

// Store is the repository surface the tracker needs.
type Store interface {
	ListActiveDestinations(ctx context.Context) ([]store.Destination, error)
	GetDestination(ctx context.Context, id int64) (*store.Destination, error)
	InsertObservation(ctx context.Context, destinationID int64, price float64, currency, airline string) (*store.PriceObservation, error)
	ListObservationsSince(ctx context.Context, destinationID int64, since time.Time) ([]store.PriceObservation, error)
	LatestObservation(ctx context.Context, destinationID int64) (*store.PriceObservation, error)
	InsertAlert(ctx context.Context, destinationID int64, alertType, message string) error
}

// PriceSource resolves the lowest matching fare for a route/date pair.
type PriceSource interface {
	LowestPrice(ctx context.Context, q duffel.Query) (price float64, found bool, err error)
}

// Notifier delivers a short text alert to a human.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// --------------------------------------------------------------------------
// Checker
// --------------------------------------------------------------------------

// Options configures a Checker.
type Options struct {
	CheckTimes []string      // local wall-clock trigger times, "HH:MM"
	Delay      time.Duration // pause between destinations within a sweep
	Currency   string
	Airline    string
}

// Checker owns the sweep schedule and the sweep-in-progress flag. The flag
// is per-instance so independent checkers (e.g. in tests) never interfere.
type Checker struct {
	store    Store
	source   PriceSource
	notifier Notifier
	logger   *slog.Logger

	times    []timeOfDay
	delay    time.Duration
	currency string
	airline  string

	sweeping atomic.Bool
}

// New creates a Checker. Fails if a configured check time does not parse.
func New(st Store, source PriceSource, notifier Notifier, opts Options, logger *slog.Logger) (*Checker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	times, err := parseCheckTimes(opts.CheckTimes)
	if err != nil {
		return nil, err
	}
	delay := opts.Delay
	if delay < 0 {
		delay = 0
	}
	return &Checker{
		store:    st,
		source:   source,
		notifier: notifier,
		logger:   logger,
		times:    times,
		delay:    delay,
		currency: opts.Currency,
		airline:  opts.Airline,
	}, nil
}

// Sweeping reports whether a full sweep is currently running.
func (c *Checker) Sweeping() bool {
	return c.sweeping.Load()
}

// --------------------------------------------------------------------------
// Sweep result
// --------------------------------------------------------------------------

// SweepResult tracks the outcome of one full sweep.
type SweepResult struct {
	Started           bool
	DestinationsFound int
	Checked           int
	Failed            int
	AlertsFired       int
	Duration          time.Duration
	Errors            []string
}

// Summary returns a human-readable summary.
func (r *SweepResult) Summary() string {
	if !r.Started {
		return "skipped (sweep already in progress)"
	}
	return fmt.Sprintf("found=%d checked=%d failed=%d alerts=%d dur=%s",
		r.DestinationsFound, r.Checked, r.Failed, r.AlertsFired,
		r.Duration.Round(time.Millisecond))
}
