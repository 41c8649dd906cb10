// Package api exposes the query facade consumed by the dashboard frontend.
package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/CoffeeShop-Development/watchtower/internal/alerts"
	"github.com/CoffeeShop-Development/watchtower/internal/history"
	"github.com/CoffeeShop-Development/watchtower/internal/logging"
	"github.com/CoffeeShop-Development/watchtower/internal/monitoring"
	"github.com/CoffeeShop-Development/watchtower/internal/utils"
	"github.com/CoffeeShop-Development/watchtower/internal/websocket"
	"github.com/CoffeeShop-Development/watchtower/pkg/aggregator"
)

// Router wires the HTTP surface to the polling core. All handlers are
// read-mostly: the only write path is the threshold configuration update.
type Router struct {
	mux           *http.ServeMux
	poller        *monitoring.Poller
	client        *aggregator.Client
	alertHandlers *AlertHandlers
	hub           *websocket.Hub
}

// NewRouter creates the router and registers all routes.
func NewRouter(poller *monitoring.Poller, client *aggregator.Client, thresholds *alerts.ThresholdStore, store *alerts.Store, hist *history.Store, hub *websocket.Hub) *Router {
	r := &Router{
		mux:           http.NewServeMux(),
		poller:        poller,
		client:        client,
		alertHandlers: NewAlertHandlers(thresholds, store, hist),
		hub:           hub,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("/api/health", r.handleHealth)
	r.mux.HandleFunc("/api/latest", r.handleLatest)
	r.mux.HandleFunc("/api/query", r.handleQuery)
	r.mux.HandleFunc("/api/alerts", r.alertHandlers.HandleAlerts)
	r.mux.HandleFunc("/api/alerts/", r.alertHandlers.HandleAlerts)
	if r.hub != nil {
		r.mux.HandleFunc("/ws", r.hub.HandleWebSocket)
	}
}

// Handler returns the fully assembled handler chain.
func (r *Router) Handler() http.Handler {
	return requestLogger(r.mux)
}

// requestLogger tags every request with an ID and emits one access log line.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx, requestID := logging.WithRequestID(req.Context(), req.Header.Get("X-Request-ID"))
		w.Header().Set("X-Request-ID", requestID)

		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, req.WithContext(ctx))

		log.Debug().
			Str("requestID", requestID).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(started)).
			Msg("Request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack delegates to the underlying writer so websocket upgrades work
// through the logging middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		utils.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}
	if last := r.poller.LastFetch(); !last.IsZero() {
		payload["lastFetch"] = last.Format(time.RFC3339)
	}
	utils.WriteJSONResponse(w, payload)
}

// handleLatest serves the cached snapshot from the most recent successful
// cycle. Before the first successful cycle it falls back to one on-demand
// fetch so the dashboard is not blank for a whole interval after startup.
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		utils.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	latest, ok := r.poller.Latest()
	if !ok {
		fetched, err := r.client.FetchLatest(req.Context())
		if err != nil {
			log.Error().Err(err).
				Str("requestID", logging.RequestID(req.Context())).
				Msg("On-demand latest fetch failed")
			utils.WriteJSONError(w, http.StatusBadGateway, err.Error())
			return
		}
		latest = fetched
	}

	utils.WriteJSONResponse(w, latest)
}

// handleQuery forwards a historical query to the metrics source and passes
// the response through untouched.
func (r *Router) handleQuery(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		utils.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	hostname := req.URL.Query().Get("hostname")
	hours := 24
	if raw := req.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.WriteJSONError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = parsed
	}

	body, err := r.client.QueryRange(req.Context(), hostname, hours)
	if err != nil {
		log.Error().Err(err).
			Str("requestID", logging.RequestID(req.Context())).
			Str("hostname", hostname).
			Int("hours", hours).
			Msg("Historical query failed")
		utils.WriteJSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}
