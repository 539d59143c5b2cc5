package tracker

import (
	"context"
	"fmt"
	"time"
)

// timeOfDay is a local wall-clock trigger time.
type timeOfDay struct {
	hour   int
	minute int
}

func parseCheckTimes(raw []string) ([]timeOfDay, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one check time is required")
	}
	times := make([]timeOfDay, 0, len(raw))
	for _, s := range raw {
		var t timeOfDay
		if _, err := fmt.Sscanf(s, "%d:%d", &t.hour, &t.minute); err != nil {
			return nil, fmt.Errorf("parse check time %q: %w", s, err)
		}
		if t.hour < 0 || t.hour > 23 || t.minute < 0 || t.minute > 59 {
			return nil, fmt.Errorf("check time %q out of range", s)
		}
		times = append(times, t)
	}
	return times, nil
}

// nextTrigger returns the earliest configured trigger strictly after now,
// today or tomorrow, in now's location.
func nextTrigger(now time.Time, times []timeOfDay) time.Time {
	var next time.Time
	for _, t := range times {
		candidate := time.Date(now.Year(), now.Month(), now.Day(),
			t.hour, t.minute, 0, 0, now.Location())
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		if next.IsZero() || candidate.Before(next) {
			next = candidate
		}
	}
	return next
}

// Start runs the sweep schedule: one sweep immediately, then one at every
// configured wall-clock time. Blocks until ctx is cancelled. Intended to be
// called with `go`. Scheduling itself never fails — sweep errors are
// contained per destination and never abort the schedule.
func (c *Checker) Start(ctx context.Context) {
	c.logger.Info("Price checker started",
		"check_times", len(c.times), "delay", c.delay)

	// First check at startup.
	result := c.CheckAll(ctx)
	c.logger.Info("Startup sweep finished", "summary", result.Summary())

	for {
		next := nextTrigger(time.Now(), c.times)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			c.logger.Info("Scheduled sweep triggered", "at", next.Format("15:04"))
			result := c.CheckAll(ctx)
			c.logger.Info("Scheduled sweep finished", "summary", result.Summary())
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info("Price checker stopped")
			return
		}
	}
}
