package duffel

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testQuery() Query {
	ret := time.Date(2026, 12, 22, 0, 0, 0, 0, time.UTC)
	return Query{
		Origin:        "YUL",
		Destination:   "CUN",
		DepartureDate: time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC),
		ReturnDate:    &ret,
	}
}

// offersJSON builds a Duffel offer_requests response body.
func offersJSON(offers ...map[string]any) []byte {
	body, _ := json.Marshal(map[string]any{
		"data": map[string]any{"offers": offers},
	})
	return body
}

func offer(amount, ownerName string) map[string]any {
	return map[string]any{
		"total_amount":   amount,
		"total_currency": "CAD",
		"owner":          map[string]any{"name": ownerName},
		"slices": []map[string]any{{
			"segments": []map[string]any{{
				"operating_carrier": map[string]any{"name": ownerName},
			}},
		}},
	}
}

func TestLowestPriceFiltersToCarrier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/air/offer_requests" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Duffel-Version"); got != "v2" {
			t.Errorf("Duffel-Version = %q", got)
		}

		var req offerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Data.Slices) != 2 {
			t.Errorf("round trip should send 2 slices, got %d", len(req.Data.Slices))
		}
		if req.Data.Slices[0].DepartureDate != "2026-12-15" {
			t.Errorf("outbound date = %q", req.Data.Slices[0].DepartureDate)
		}

		w.WriteHeader(http.StatusCreated)
		w.Write(offersJSON(
			offer("512.30", "Air Canada"),
			offer("399.99", "WestJet"), // cheaper, wrong carrier
			offer("478.10", "Air Canada"),
		))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "Air Canada", 600, testLogger())

	price, found, err := c.LowestPrice(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("LowestPrice: %v", err)
	}
	if !found {
		t.Fatal("found = false, want true")
	}
	if price != 478.10 {
		t.Errorf("price = %v, want 478.10", price)
	}
}

func TestLowestPriceNoOffers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write(offersJSON())
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "Air Canada", 600, testLogger())

	price, found, err := c.LowestPrice(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("LowestPrice: %v", err)
	}
	if found || price != 0 {
		t.Errorf("price=%v found=%v, want 0/false", price, found)
	}
}

func TestLowestPriceCarrierFilterLeavesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write(offersJSON(offer("399.99", "WestJet")))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "Air Canada", 600, testLogger())

	_, found, err := c.LowestPrice(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("LowestPrice: %v", err)
	}
	if found {
		t.Error("found = true, want false when no offer matches the carrier")
	}
}

func TestSearchOffersAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"title":"Invalid API key"}]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-key", "Air Canada", 600, testLogger())

	_, _, err := c.LowestPrice(context.Background(), testQuery())
	if err == nil {
		t.Fatal("LowestPrice should fail on a 401")
	}
}

func TestSearchOffersSkipsBadAmounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(offersJSON(
			offer("not-a-number", "Air Canada"),
			offer("512.30", "Air Canada"),
		))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "Air Canada", 600, testLogger())

	offers, err := c.SearchOffers(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("SearchOffers: %v", err)
	}
	if len(offers) != 1 || offers[0].Price != 512.30 {
		t.Errorf("offers = %+v, want the single parseable one", offers)
	}
}

func TestWireOfferMatchesOperatingCarrier(t *testing.T) {
	var o wireOffer
	raw := `{
		"total_amount": "300.00",
		"total_currency": "CAD",
		"owner": {"name": "Aeroplan"},
		"slices": [{"segments": [{"operating_carrier": {"name": "Air Canada"}}]}]
	}`
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatal(err)
	}
	if !o.matchesAirline("Air Canada") {
		t.Error("offer operated by the carrier should match even with a different owner")
	}
	if o.matchesAirline("WestJet") {
		t.Error("unrelated carrier should not match")
	}
}

func TestWireOfferStops(t *testing.T) {
	var o wireOffer
	// One connection outbound, direct return.
	raw := `{"slices": [
		{"segments": [{"operating_carrier": {"name": "Air Canada"}},
		              {"operating_carrier": {"name": "Air Canada"}}]},
		{"segments": [{"operating_carrier": {"name": "Air Canada"}}]}
	]}`
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatal(err)
	}
	if got := o.stops(); got != 1 {
		t.Errorf("stops() = %d, want 1", got)
	}
}
