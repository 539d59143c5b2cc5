package duffel

import (
	"context"
	"sort"
	"time"
)

// alternativePause spaces out the per-date searches so a single scan cannot
// burn the whole rate budget at once.
const alternativePause = 1 * time.Second

// AlternativePrice is the fare found for one candidate departure date.
type AlternativePrice struct {
	Date           time.Time  `json:"date"`
	ReturnDate     *time.Time `json:"return_date,omitempty"`
	Price          *float64   `json:"price,omitempty"`
	Available      bool       `json:"available"`
	IsOriginalDate bool       `json:"is_original_date"`
	IsBestPrice    bool       `json:"is_best_price"`
}

// AlternativeDates scans fares for departure dates within ±daysRange of the
// query's date, keeping the original trip duration for round trips. Dates in
// the past are skipped. A failed or empty search marks the date unavailable;
// it never aborts the scan. Results are sorted cheapest first.
func (c *Client) AlternativeDates(ctx context.Context, q Query, daysRange int) ([]AlternativePrice, error) {
	if daysRange <= 0 {
		daysRange = 3
	}

	var tripDuration time.Duration
	if q.ReturnDate != nil {
		tripDuration = q.ReturnDate.Sub(q.DepartureDate)
	}

	today := time.Now().Truncate(24 * time.Hour)
	var results []AlternativePrice

	for i := -daysRange; i <= daysRange; i++ {
		date := q.DepartureDate.AddDate(0, 0, i)
		if date.Before(today) {
			continue
		}

		altQuery := Query{
			Origin:        q.Origin,
			Destination:   q.Destination,
			DepartureDate: date,
		}
		var altReturn *time.Time
		if q.ReturnDate != nil {
			r := date.Add(tripDuration)
			altReturn = &r
			altQuery.ReturnDate = altReturn
		}

		alt := AlternativePrice{
			Date:           date,
			ReturnDate:     altReturn,
			IsOriginalDate: date.Equal(q.DepartureDate),
		}

		price, found, err := c.LowestPrice(ctx, altQuery)
		if err != nil {
			c.logger.Warn("Alternative date search failed",
				"origin", q.Origin, "destination", q.Destination,
				"date", date.Format(dateLayout), "error", err)
		} else if found {
			alt.Price = &price
			alt.Available = true
		}
		results = append(results, alt)

		if i < daysRange {
			select {
			case <-time.After(alternativePause):
			case <-ctx.Done():
				return results, ctx.Err()
			}
		}
	}

	// Cheapest first, unavailable dates last.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Available != results[j].Available {
			return results[i].Available
		}
		if !results[i].Available {
			return false
		}
		return *results[i].Price < *results[j].Price
	})

	if len(results) > 0 && results[0].Available {
		results[0].IsBestPrice = true
	}
	return results, nil
}
