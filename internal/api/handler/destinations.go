package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ygagnon/farewatch/internal/api/respond"
	"github.com/ygagnon/farewatch/internal/store"
)

const dateLayout = "2006-01-02"

// destinationPayload is the create/update request body.
type destinationPayload struct {
	Origin        *string  `json:"origin"`
	Destination   *string  `json:"destination"`
	DepartureDate *string  `json:"departure_date"`
	ReturnDate    *string  `json:"return_date"`
	MaxPrice      *float64 `json:"max_price"`
	IsActive      *bool    `json:"is_active"`
}

func destinationID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// ListDestinations returns all watches with their latest price.
// @Summary List destinations
// @Description Returns all tracked destinations with latest price and observation count.
// @Tags destinations
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /destinations [get]
func (h *Handler) ListDestinations(w http.ResponseWriter, r *http.Request) {
	dests, err := h.store.ListDestinations(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Failed to list destinations")
		return
	}
	if dests == nil {
		dests = []store.DestinationOverview{}
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    dests,
	})
}

// GetDestination returns one watch.
// @Summary Get destination
// @Description Returns a single tracked destination by id.
// @Tags destinations
// @Produce json
// @Param id path int true "Destination ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /destinations/{id} [get]
func (h *Handler) GetDestination(w http.ResponseWriter, r *http.Request) {
	id, err := destinationID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "Destination id must be an integer")
		return
	}

	dest, err := h.store.GetDestination(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Destination not found")
		return
	}
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Failed to load destination")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    dest,
	})
}

// CreateDestination adds a new watch and schedules an immediate first check.
// @Summary Create destination
// @Description Creates a new tracked destination. Origin, destination, and departure date are required. The first price check runs in the background.
// @Tags destinations
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /destinations [post]
func (h *Handler) CreateDestination(w http.ResponseWriter, r *http.Request) {
	var p destinationPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_JSON", "Invalid request body")
		return
	}
	if p.Origin == nil || p.Destination == nil || p.DepartureDate == nil {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_FIELDS",
			"origin, destination, and departure_date are required")
		return
	}

	departure, err := parseDate(*p.DepartureDate)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_DATE", "departure_date must be YYYY-MM-DD")
		return
	}
	n := store.NewDestination{
		Origin:        *p.Origin,
		Destination:   *p.Destination,
		DepartureDate: departure,
		MaxPrice:      p.MaxPrice,
	}
	if p.ReturnDate != nil {
		ret, err := parseDate(*p.ReturnDate)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "BAD_DATE", "return_date must be YYYY-MM-DD")
			return
		}
		n.ReturnDate = &ret
	}
	if p.MaxPrice != nil && *p.MaxPrice < 0 {
		respond.WriteError(w, http.StatusBadRequest, "BAD_MAX_PRICE", "max_price must be non-negative")
		return
	}

	dest, err := h.store.CreateDestination(r.Context(), n)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Failed to create destination")
		return
	}

	// First reading in the background; the response does not wait for the
	// fare search.
	go func(id int64) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		_ = h.checker.CheckOne(ctx, id)
	}(dest.ID)

	respond.WriteJSONObject(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    dest,
		"message": "Destination added, first price check is running",
	})
}

// UpdateDestination applies partial updates to a watch.
// @Summary Update destination
// @Description Applies the provided fields to a destination. Setting is_active=false stops future sweeps without deleting history.
// @Tags destinations
// @Accept json
// @Produce json
// @Param id path int true "Destination ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /destinations/{id} [put]
func (h *Handler) UpdateDestination(w http.ResponseWriter, r *http.Request) {
	id, err := destinationID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "Destination id must be an integer")
		return
	}

	var p destinationPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_JSON", "Invalid request body")
		return
	}

	u := store.DestinationUpdate{
		Origin:      p.Origin,
		Destination: p.Destination,
		MaxPrice:    p.MaxPrice,
		IsActive:    p.IsActive,
	}
	if p.DepartureDate != nil {
		departure, err := parseDate(*p.DepartureDate)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "BAD_DATE", "departure_date must be YYYY-MM-DD")
			return
		}
		u.DepartureDate = &departure
	}
	if p.ReturnDate != nil {
		ret, err := parseDate(*p.ReturnDate)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "BAD_DATE", "return_date must be YYYY-MM-DD")
			return
		}
		u.ReturnDate = &ret
	}

	dest, err := h.store.UpdateDestination(r.Context(), id, u)
	if errors.Is(err, store.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Destination not found")
		return
	}
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Failed to update destination")
		return
	}

	h.cache.Invalidate(analysisCacheKey(id))
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    dest,
		"message": "Destination updated",
	})
}

// DeleteDestination removes a watch and its history.
// @Summary Delete destination
// @Description Deletes a destination; price history and alerts cascade.
// @Tags destinations
// @Produce json
// @Param id path int true "Destination ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /destinations/{id} [delete]
func (h *Handler) DeleteDestination(w http.ResponseWriter, r *http.Request) {
	id, err := destinationID(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_ID", "Destination id must be an integer")
		return
	}

	err = h.store.DeleteDestination(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Destination not found")
		return
	}
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "DB_ERROR", "Failed to delete destination")
		return
	}

	h.cache.Invalidate(analysisCacheKey(id))
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Destination deleted",
	})
}

func analysisCacheKey(id int64) string {
	return fmt.Sprintf("analysis:%d", id)
}

func alternativesCacheKey(id int64, days int) string {
	return fmt.Sprintf("alternatives:%d:%d", id, days)
}
