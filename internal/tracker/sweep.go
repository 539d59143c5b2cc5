package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/ygagnon/farewatch/internal/analysis"
	"github.com/ygagnon/farewatch/internal/duffel"
	"github.com/ygagnon/farewatch/internal/notify"
	"github.com/ygagnon/farewatch/internal/store"
)

// CheckAll runs one full sweep over all active destinations, sequentially,
// pausing between destinations to respect the fare source's rate limits.
// At most one sweep runs at a time; an overlapping call is dropped, not
// queued. Per-destination failures are logged and do not stop the sweep.
func (c *Checker) CheckAll(ctx context.Context) SweepResult {
	var result SweepResult

	if !c.sweeping.CompareAndSwap(false, true) {
		c.logger.Info("Sweep already in progress, skipping")
		return result
	}
	defer c.sweeping.Store(false)

	result.Started = true
	start := time.Now()

	dests, err := c.store.ListActiveDestinations(ctx)
	if err != nil {
		c.logger.Error("Failed to list active destinations", "error", err)
		result.Errors = append(result.Errors, err.Error())
		result.Duration = time.Since(start)
		return result
	}
	result.DestinationsFound = len(dests)
	c.logger.Info("Sweep started", "destinations", len(dests))

	for i := range dests {
		dest := &dests[i]
		fired, err := c.checkDestination(ctx, dest)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: %s", dest.Route(), err))
			c.logger.Error("Destination check failed",
				"route", dest.Route(), "error", err)
		} else {
			result.Checked++
			result.AlertsFired += fired
		}

		if i < len(dests)-1 {
			time.Sleep(c.delay)
		}
	}

	result.Duration = time.Since(start)
	return result
}

// CheckOne runs the fetch → persist → analyze → alert cycle for a single
// destination immediately. It bypasses the sweep lock and throttle. Returns
// store.ErrNotFound when the id does not exist.
func (c *Checker) CheckOne(ctx context.Context, id int64) error {
	dest, err := c.store.GetDestination(ctx, id)
	if err != nil {
		return err
	}
	_, err = c.checkDestination(ctx, dest)
	return err
}

// checkDestination fetches the current fare for one destination, persists
// the observation, and evaluates alerts. A search with no offers is not an
// error — nothing is persisted and no alerts are evaluated.
func (c *Checker) checkDestination(ctx context.Context, dest *store.Destination) (alertsFired int, err error) {
	c.logger.Info("Checking fare", "route", dest.Route(),
		"departure", dest.DepartureDate.Format("2006-01-02"))

	price, found, err := c.source.LowestPrice(ctx, duffel.Query{
		Origin:        dest.Origin,
		Destination:   dest.Destination,
		DepartureDate: dest.DepartureDate,
		ReturnDate:    dest.ReturnDate,
	})
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	if !found {
		c.logger.Info("No offers found", "route", dest.Route())
		return 0, nil
	}
	c.logger.Info("Fare found", "route", dest.Route(), "price", price)

	// Load the history as it stood before this reading, so the analyzer
	// never compares the new price to itself.
	since := time.Now().Add(-analysis.HistoryWindow)
	history, err := c.store.ListObservationsSince(ctx, dest.ID, since)
	if err != nil {
		return 0, fmt.Errorf("load price history: %w", err)
	}
	previous, err := c.store.LatestObservation(ctx, dest.ID)
	if err != nil {
		return 0, fmt.Errorf("load previous price: %w", err)
	}

	if _, err := c.store.InsertObservation(ctx, dest.ID, price, c.currency, c.airline); err != nil {
		return 0, fmt.Errorf("persist observation: %w", err)
	}

	return c.evaluateAlerts(ctx, dest, price, history, previous), nil
}

// evaluateAlerts checks the three alert conditions independently — more than
// one may fire for the same observation, and the same condition fires again
// on every qualifying sweep.
func (c *Checker) evaluateAlerts(
	ctx context.Context,
	dest *store.Destination,
	price float64,
	history []store.PriceObservation,
	previous *store.PriceObservation,
) int {
	prices := make([]float64, len(history))
	for i, o := range history {
		prices[i] = o.Price
	}

	score := analysis.QualityScore(prices, price)
	decision := analysis.ShouldBuy(analysis.Policy{
		MaxPrice:      dest.MaxPrice,
		DepartureDate: dest.DepartureDate,
	}, score, price, time.Now())

	fired := 0

	if decision.Buy && decision.Urgency == analysis.UrgencyHigh {
		c.logger.Info("Optimal buying moment detected",
			"route", dest.Route(), "price", price, "score", decision.Score)
		c.raise(ctx, dest, store.AlertOptimalPrice,
			notify.OptimalPriceMessage(dest.Route(), price, decision.Score))
		fired++
	}

	if previous != nil {
		if drop := analysis.DetectDrop(previous.Price, price); drop != nil {
			c.logger.Info("Significant price drop detected",
				"route", dest.Route(), "drop_pct", drop.PercentageDrop)
			c.raise(ctx, dest, store.AlertPriceDrop,
				notify.PriceDropMessage(dest.Route(), drop.PreviousPrice, price, drop.PercentageDrop))
			fired++
		}
	}

	if dest.MaxPrice != nil && price <= *dest.MaxPrice {
		c.logger.Info("Target price reached",
			"route", dest.Route(), "price", price, "max_price", *dest.MaxPrice)
		c.raise(ctx, dest, store.AlertMaxPriceReached,
			notify.MaxPriceMessage(dest.Route(), price, *dest.MaxPrice))
		fired++
	}

	return fired
}

// raise sends one notification and persists one alert record with the same
// message. Either failing is logged and non-fatal to the sweep.
func (c *Checker) raise(ctx context.Context, dest *store.Destination, alertType, message string) {
	if err := c.notifier.Send(ctx, message); err != nil {
		c.logger.Warn("Alert send failed",
			"route", dest.Route(), "type", alertType, "error", err)
	}
	if err := c.store.InsertAlert(ctx, dest.ID, alertType, message); err != nil {
		c.logger.Warn("Alert persist failed",
			"route", dest.Route(), "type", alertType, "error", err)
	}
}
