package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/CoffeeShop-Development/watchtower/internal/alerts"
	apperrors "github.com/CoffeeShop-Development/watchtower/internal/errors"
	"github.com/CoffeeShop-Development/watchtower/internal/history"
	"github.com/CoffeeShop-Development/watchtower/internal/models"
	"github.com/CoffeeShop-Development/watchtower/internal/utils"
)

// AlertHandlers handles alert-related HTTP endpoints
type AlertHandlers struct {
	thresholds *alerts.ThresholdStore
	store      *alerts.Store
	history    *history.Store
}

// NewAlertHandlers creates new alert handlers. history may be nil when the
// history store could not be opened.
func NewAlertHandlers(thresholds *alerts.ThresholdStore, store *alerts.Store, hist *history.Store) *AlertHandlers {
	return &AlertHandlers{
		thresholds: thresholds,
		store:      store,
		history:    hist,
	}
}

// HandleAlerts routes alert requests to the appropriate handlers.
func (h *AlertHandlers) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/alerts")
	path = strings.TrimSuffix(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.GetActiveAlerts(w, r)
	case path == "/config" && r.Method == http.MethodGet:
		h.GetThresholds(w, r)
	case path == "/config" && r.Method == http.MethodPost:
		h.UpdateThresholds(w, r)
	case path == "/history" && r.Method == http.MethodGet:
		h.GetAlertHistory(w, r)
	default:
		utils.WriteJSONError(w, http.StatusNotFound, "not found")
	}
}

// GetActiveAlerts returns the currently published alert snapshot.
func (h *AlertHandlers) GetActiveAlerts(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, h.store.Active())
}

// GetThresholds returns the current threshold configuration.
func (h *AlertHandlers) GetThresholds(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, h.thresholds.Current())
}

// UpdateThresholds merges a partial threshold payload into the active set
// and returns the resulting full configuration.
func (h *AlertHandlers) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	var partial map[models.MetricKind]float64
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		utils.WriteJSONError(w, http.StatusBadRequest, "invalid threshold payload: "+err.Error())
		return
	}

	updated, err := h.thresholds.Update(partial)
	if err != nil {
		if apperrors.IsValidationError(err) {
			utils.WriteJSONError(w, http.StatusBadRequest, err.Error())
		} else {
			utils.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	log.Info().Interface("thresholds", updated).Msg("Alert thresholds updated")
	utils.WriteJSONResponse(w, updated)
}

// GetAlertHistory returns recently fired alerts, newest first.
func (h *AlertHandlers) GetAlertHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		utils.WriteJSONError(w, http.StatusServiceUnavailable, "alert history is not available")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.history.List(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read alert history")
		utils.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSONResponse(w, entries)
}
