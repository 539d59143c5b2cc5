package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ygagnon/farewatch/internal/analysis"
	"github.com/ygagnon/farewatch/internal/api/respond"
	"github.com/ygagnon/farewatch/internal/cache"
	"github.com/ygagnon/farewatch/internal/duffel"
	"github.com/ygagnon/farewatch/internal/store"
)

// TriggerSweep starts a full sweep in the background.
// @Summary Trigger a full sweep
// @Description Starts a price check over all active destinations. Returns 409 if a sweep is already running; overlapping requests are dropped, not queued.
// @Tags tracking
// @Produce json
// @Success 202 {object} map[string]interface{}
// @Failure 409 {object} respond.ErrorResponse
// @Router /sweeps [post]
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if h.checker.Sweeping() {
		respond.WriteError(w, http.StatusConflict, "SWEEP_IN_PROGRESS", "A sweep is already running")
		return
	}

	// Detached from the request context: the sweep outlives the response.
	go h.checker.CheckAll(context.Background())

	respond.WriteJSONObject(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "Sweep started",
	})
}

// CheckDestination runs an immediate price check for one destination.
// @Summary Check one destination now
// @Description Runs the fetch/persist/analyze/alert cycle for a single destination, bypassing the sweep lock and throttle.
// @Tags tracking
// @Produce json
// @Param id path int true "Destination ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Router /destinations/{id}/check [post]
func (h *Handler) CheckDestination(w http.ResponseWriter, r *http.Request) {
	id, err := destinationID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "Destination id must be an integer")
		return
	}

	err = h.checker.CheckOne(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Destination not found")
		return
	}
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadGateway, "CHECK_FAILED",
			"Price check failed", err.Error())
		return
	}

	h.cache.Invalidate(analysisCacheKey(id))
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"destination_id": id,
		"message":        "Price check complete",
	})
}

// ListPrices returns the observation history of a destination.
// @Summary Price history
// @Description Returns price observations for a destination, newest first. The window defaults to 30 days.
// @Tags tracking
// @Produce json
// @Param id path int true "Destination ID"
// @Param days query int false "History window in days" default(30)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /destinations/{id}/prices [get]
func (h *Handler) ListPrices(w http.ResponseWriter, r *http.Request) {
	id, err := destinationID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "Destination id must be an integer")
		return
	}
	if _, err := h.store.GetDestination(r.Context(), id); err != nil {
		respondDestinationErr(w, err)
		return
	}

	days := queryInt(r, "days", 30)
	since := time.Now().AddDate(0, 0, -days)
	prices, err := h.store.ListObservationsSince(r.Context(), id, since)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Failed to load prices")
		return
	}
	if prices == nil {
		prices = []store.PriceObservation{}
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    prices,
	})
}

// GetAnalysis returns the quality score analysis for the latest observation.
// @Summary Price analysis
// @Description Returns the quality score, trend, and buy decision for the most recent observation.
// @Tags tracking
// @Produce json
// @Param id path int true "Destination ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /destinations/{id}/analysis [get]
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := destinationID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "Destination id must be an integer")
		return
	}

	key := analysisCacheKey(id)
	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLAnalysis, true)
		return
	}

	dest, err := h.store.GetDestination(r.Context(), id)
	if err != nil {
		respondDestinationErr(w, err)
		return
	}

	latest, err := h.store.LatestObservation(r.Context(), id)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Failed to load latest price")
		return
	}
	if latest == nil {
		respond.WriteError(w, http.StatusNotFound, "NO_DATA", "No price observations yet")
		return
	}

	since := time.Now().Add(-analysis.HistoryWindow)
	history, err := h.store.ListObservationsSince(r.Context(), id, since)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Failed to load price history")
		return
	}

	// The latest observation is part of the displayed window; the score
	// rates it against everything observed before it.
	prices := make([]float64, 0, len(history))
	for _, o := range history {
		if o.ID == latest.ID {
			continue
		}
		prices = append(prices, o.Price)
	}

	score := analysis.QualityScore(prices, latest.Price)
	decision := analysis.ShouldBuy(analysis.Policy{
		MaxPrice:      dest.MaxPrice,
		DepartureDate: dest.DepartureDate,
	}, score, latest.Price, time.Now())

	payload, err := json.Marshal(map[string]interface{}{
		"success":  true,
		"data":     score,
		"decision": decision,
	})
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Failed to encode analysis")
		return
	}
	etag := h.cache.Set(key, payload, cache.TTLAnalysis)
	respond.WriteJSON(w, payload, etag, cache.TTLAnalysis, false)
}

// GetAlternatives scans fares for nearby departure dates.
// @Summary Alternative dates
// @Description Searches fares within ±days of the tracked departure date, cheapest first. Responses are cached for an hour — each scan costs several upstream searches.
// @Tags tracking
// @Produce json
// @Param id path int true "Destination ID"
// @Param days query int false "Days before/after to scan" default(3)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /destinations/{id}/alternatives [get]
func (h *Handler) GetAlternatives(w http.ResponseWriter, r *http.Request) {
	id, err := destinationID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "Destination id must be an integer")
		return
	}
	days := queryInt(r, "days", 3)
	if days < 1 || days > 7 {
		respond.WriteError(w, http.StatusBadRequest, "BAD_RANGE", "days must be between 1 and 7")
		return
	}

	key := alternativesCacheKey(id, days)
	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLAlternatives, true)
		return
	}

	dest, err := h.store.GetDestination(r.Context(), id)
	if err != nil {
		respondDestinationErr(w, err)
		return
	}

	results, err := h.flights.AlternativeDates(r.Context(), duffel.Query{
		Origin:        dest.Origin,
		Destination:   dest.Destination,
		DepartureDate: dest.DepartureDate,
		ReturnDate:    dest.ReturnDate,
	}, days)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadGateway, "SEARCH_FAILED",
			"Alternative date search failed", err.Error())
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"success": true,
		"data":    results,
	})
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Failed to encode results")
		return
	}
	etag := h.cache.Set(key, payload, cache.TTLAlternatives)
	respond.WriteJSON(w, payload, etag, cache.TTLAlternatives, false)
}

// ListDestinationAlerts returns the alert history of one destination.
// @Summary Destination alert history
// @Description Returns alerts raised for a destination, newest first.
// @Tags alerts
// @Produce json
// @Param id path int true "Destination ID"
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /destinations/{id}/alerts [get]
func (h *Handler) ListDestinationAlerts(w http.ResponseWriter, r *http.Request) {
	id, err := destinationID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "Destination id must be an integer")
		return
	}
	if _, err := h.store.GetDestination(r.Context(), id); err != nil {
		respondDestinationErr(w, err)
		return
	}

	alerts, err := h.store.ListAlerts(r.Context(), id, queryInt(r, "limit", 50))
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Failed to load alerts")
		return
	}
	if alerts == nil {
		alerts = []store.Alert{}
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    alerts,
	})
}

// ListAlerts returns the newest alerts across all destinations.
// @Summary Recent alerts
// @Description Returns the most recent alerts across all destinations.
// @Tags alerts
// @Produce json
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {object} map[string]interface{}
// @Router /alerts [get]
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.store.ListRecentAlerts(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Failed to load alerts")
		return
	}
	if alerts == nil {
		alerts = []store.Alert{}
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    alerts,
	})
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func respondDestinationErr(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Destination not found")
		return
	}
	respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Failed to load destination")
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
