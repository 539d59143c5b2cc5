// Package duffel provides the flight-offer search client used to price
// tracked routes.
//
// Duffel's offer request endpoint returns all matching offers in one POST;
// the client filters them to the configured carrier and keeps the lowest
// total. Rate limiting is handled via a token bucket limiter.
package duffel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	apiVersion     = "v2"
	requestTimeout = 30 * time.Second
)

// Query identifies one route/date search.
type Query struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time // nil for one-way
}

// Offer is a normalized flight offer.
type Offer struct {
	Price    float64
	Currency string
	Airline  string
	Stops    int
}

// Client is the Duffel HTTP client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	airline    string // carrier filter; empty keeps all offers
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a Duffel client with rate limiting.
func NewClient(baseURL, apiKey, airline string, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		airline:    airline,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// --------------------------------------------------------------------------
// Wire types (request)
// --------------------------------------------------------------------------

type offerRequest struct {
	Data offerRequestData `json:"data"`
}

type offerRequestData struct {
	Slices     []slice     `json:"slices"`
	Passengers []passenger `json:"passengers"`
	CabinClass string      `json:"cabin_class"`
}

type slice struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
}

type passenger struct {
	Type string `json:"type"`
}

// --------------------------------------------------------------------------
// Wire types (response)
// --------------------------------------------------------------------------

type offerResponse struct {
	Data struct {
		Offers []wireOffer `json:"offers"`
	} `json:"data"`
}

type wireOffer struct {
	TotalAmount   string `json:"total_amount"`
	TotalCurrency string `json:"total_currency"`
	Owner         struct {
		Name string `json:"name"`
	} `json:"owner"`
	Slices []struct {
		Segments []struct {
			OperatingCarrier struct {
				Name string `json:"name"`
			} `json:"operating_carrier"`
		} `json:"segments"`
	} `json:"slices"`
}

// matchesAirline reports whether the offer is owned or operated by name.
func (o *wireOffer) matchesAirline(name string) bool {
	if o.Owner.Name == name {
		return true
	}
	for _, s := range o.Slices {
		for _, seg := range s.Segments {
			if seg.OperatingCarrier.Name == name {
				return true
			}
		}
	}
	return false
}

func (o *wireOffer) stops() int {
	stops := 0
	for _, s := range o.Slices {
		if n := len(s.Segments); n > 0 {
			stops += n - 1
		}
	}
	return stops
}

// --------------------------------------------------------------------------
// Search
// --------------------------------------------------------------------------

const dateLayout = "2006-01-02"

// SearchOffers runs an offer request and returns the normalized offers for
// the configured carrier.
func (c *Client) SearchOffers(ctx context.Context, q Query) ([]Offer, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqBody := offerRequest{
		Data: offerRequestData{
			Slices: []slice{{
				Origin:        q.Origin,
				Destination:   q.Destination,
				DepartureDate: q.DepartureDate.Format(dateLayout),
			}},
			Passengers: []passenger{{Type: "adult"}},
			CabinClass: "economy",
		},
	}
	if q.ReturnDate != nil {
		reqBody.Data.Slices = append(reqBody.Data.Slices, slice{
			Origin:        q.Destination,
			Destination:   q.Origin,
			DepartureDate: q.ReturnDate.Format(dateLayout),
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode offer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/air/offer_requests", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Duffel-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("offer request %s-%s: %w", q.Origin, q.Destination, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("duffel returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var result offerResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	offers := make([]Offer, 0, len(result.Data.Offers))
	for _, o := range result.Data.Offers {
		if c.airline != "" && !o.matchesAirline(c.airline) {
			continue
		}
		price, err := strconv.ParseFloat(o.TotalAmount, 64)
		if err != nil {
			c.logger.Warn("Skipping offer with bad amount", "amount", o.TotalAmount)
			continue
		}
		offers = append(offers, Offer{
			Price:    price,
			Currency: o.TotalCurrency,
			Airline:  c.airline,
			Stops:    o.stops(),
		})
	}

	c.logger.Debug("Offer search complete",
		"origin", q.Origin, "destination", q.Destination, "offers", len(offers))
	return offers, nil
}

// LowestPrice returns the lowest matching fare for a route/date pair.
// found is false when the search succeeded but produced no offers — that is
// not an error, there is simply no fare to record.
func (c *Client) LowestPrice(ctx context.Context, q Query) (price float64, found bool, err error) {
	offers, err := c.SearchOffers(ctx, q)
	if err != nil {
		return 0, false, err
	}
	if len(offers) == 0 {
		return 0, false, nil
	}

	lowest := offers[0].Price
	for _, o := range offers[1:] {
		if o.Price < lowest {
			lowest = o.Price
		}
	}
	return lowest, true, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
