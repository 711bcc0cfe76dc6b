// Package httpapi exposes the simulation engine over the REST and
// WebSocket contract: per-feed list/current/history, price forecasts,
// and simulation lifecycle control, plus a WebSocket mirror that
// periodically pushes the same status payload the REST endpoint
// reports.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/facis/simulation-service/engine"
	"github.com/facis/simulation-service/timeseries"
	"github.com/facis/simulation-service/wireformat"
)

const (
	defaultHistoryLimit  = 100
	maxHistoryLimit      = 1000
	maxForecastHours     = 168
	statusBroadcastEvery = 5 * time.Second
)

// Server hosts the REST/WebSocket surface in front of an Engine.
type Server struct {
	engine    *engine.Engine
	logger    *log.Logger
	startTime time.Time

	server    *http.Server
	upgrader  websocket.Upgrader
	clients   sync.Map
	broadcast chan []byte
	done      chan struct{}
}

// NewServer builds a Server bound to addr, with eng as the backing
// simulation engine.
func NewServer(eng *engine.Engine, addr string, logger *log.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		engine:    eng,
		logger:    logger,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	mux.HandleFunc("GET /api/health", s.healthHandler)

	mux.HandleFunc("GET /api/config", s.getConfigHandler)
	mux.HandleFunc("POST /api/config/seed", s.setSeedHandler)
	mux.HandleFunc("POST /api/config/acceleration", s.setAccelerationHandler)

	mux.HandleFunc("GET /api/weather", s.weatherListHandler)
	mux.HandleFunc("GET /api/weather/{id}/current", s.weatherCurrentHandler)
	mux.HandleFunc("GET /api/weather/{id}/history", s.weatherHistoryHandler)

	mux.HandleFunc("GET /api/pv", s.pvListHandler)
	mux.HandleFunc("GET /api/pv/{id}/current", s.pvCurrentHandler)
	mux.HandleFunc("GET /api/pv/{id}/history", s.pvHistoryHandler)

	mux.HandleFunc("GET /api/meters", s.meterListHandler)
	mux.HandleFunc("GET /api/meters/{id}/current", s.meterCurrentHandler)
	mux.HandleFunc("GET /api/meters/{id}/history", s.meterHistoryHandler)

	mux.HandleFunc("GET /api/loads", s.loadListHandler)
	mux.HandleFunc("GET /api/loads/{id}/current", s.loadCurrentHandler)
	mux.HandleFunc("GET /api/loads/{id}/history", s.loadHistoryHandler)

	mux.HandleFunc("GET /api/prices", s.priceListHandler)
	mux.HandleFunc("GET /api/prices/{id}/current", s.priceCurrentHandler)
	mux.HandleFunc("GET /api/prices/{id}/history", s.priceHistoryHandler)
	mux.HandleFunc("GET /api/prices/{id}/forecast", s.priceForecastHandler)

	mux.HandleFunc("POST /api/simulation/start", s.startHandler)
	mux.HandleFunc("POST /api/simulation/pause", s.pauseHandler)
	mux.HandleFunc("POST /api/simulation/reset", s.resetHandler)
	mux.HandleFunc("GET /api/simulation/status", s.statusHandler)

	mux.HandleFunc("/api/ws", s.wsHandler)

	return s
}

// Start spawns the broadcast loop and the HTTP listener; it returns
// immediately, logging a fatal-looking message to the logger if the
// listener dies for a reason other than a clean shutdown.
func (s *Server) Start() {
	go s.handleBroadcasts()
	go s.broadcastStatusLoop()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Printf("httpapi: server error: %v", err)
			}
		}
	}()
}

// Stop gracefully shuts the HTTP server down and closes every open
// WebSocket connection.
func (s *Server) Stop(ctx context.Context) error {
	close(s.done)
	s.clients.Range(func(key, _ any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// healthHandler reports a static service descriptor — this process is
// healthy as long as it can answer HTTP requests at all.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"uptime":    time.Since(s.startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) getConfigHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"seed":         snap.Seed,
		"acceleration": snap.Acceleration,
		"state":        snap.State,
		"entity_ids":   snap.EntityIDs,
	})
}

func (s *Server) setSeedHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Seed uint64 `json:"seed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	seed := body.Seed
	if err := s.engine.Reset(&seed); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) setAccelerationHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Acceleration int `json:"acceleration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.engine.SetAcceleration(body.Acceleration); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// parseHistoryQuery reads start/end/interval/limit from the query
// string, defaulting interval to fifteen minutes and limit to
// defaultHistoryLimit, capped at maxHistoryLimit.
func parseHistoryQuery(r *http.Request) (timeseries.Range, timeseries.Interval, int, error) {
	q := r.URL.Query()

	startStr, endStr := q.Get("start"), q.Get("end")
	if startStr == "" || endStr == "" {
		return timeseries.Range{}, 0, 0, fmt.Errorf("start and end query parameters are required")
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return timeseries.Range{}, 0, 0, fmt.Errorf("invalid start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return timeseries.Range{}, 0, 0, fmt.Errorf("invalid end time: %w", err)
	}
	rng, err := timeseries.NewRange(start, end)
	if err != nil {
		return timeseries.Range{}, 0, 0, err
	}

	interval := timeseries.FifteenMinutes
	if v := q.Get("interval"); v != "" {
		parsed, err := timeseries.ParseInterval(v)
		if err != nil {
			return timeseries.Range{}, 0, 0, err
		}
		interval = parsed
	}

	limit := defaultHistoryLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return timeseries.Range{}, 0, 0, fmt.Errorf("invalid limit")
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	return rng, interval, limit, nil
}

// paginate truncates points to limit, reporting whether more points
// existed beyond the truncation.
func paginate[T any](points []timeseries.Point[T], limit int) ([]timeseries.Point[T], bool) {
	if len(points) <= limit {
		return points, false
	}
	return points[:limit], true
}

func idFromPath(r *http.Request) string { return r.PathValue("id") }

// --- weather ---

func (s *Server) weatherListHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entity_ids": s.engine.WeatherIDs()})
}

func (s *Server) weatherCurrentHandler(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.engine.WeatherCurrent(idFromPath(r))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown weather station")
		return
	}
	writeJSON(w, http.StatusOK, wireformat.WeatherPayload(reading))
}

func (s *Server) weatherHistoryHandler(w http.ResponseWriter, r *http.Request) {
	rng, interval, limit, err := parseHistoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := idFromPath(r)
	points, ok := s.engine.WeatherHistory(id, rng, interval)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown weather station")
		return
	}
	page, hasMore := paginate(points, limit)
	out := make([]map[string]any, 0, len(page))
	for _, p := range page {
		out = append(out, wireformat.WeatherPayload(p.Value))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"readings":   out,
		"has_more":   hasMore,
		"start_time": rng.Start.Format(time.RFC3339),
		"end_time":   rng.End.Format(time.RFC3339),
		"interval":   interval.String(),
	})
}

// --- pv ---

func (s *Server) pvListHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entity_ids": s.engine.PVIDs()})
}

func (s *Server) pvCurrentHandler(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.engine.PVCurrent(idFromPath(r))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pv system")
		return
	}
	writeJSON(w, http.StatusOK, wireformat.PVPayload(reading))
}

func (s *Server) pvHistoryHandler(w http.ResponseWriter, r *http.Request) {
	rng, interval, limit, err := parseHistoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, ok := s.engine.PVHistory(idFromPath(r), rng, interval)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pv system")
		return
	}
	page, hasMore := paginate(points, limit)
	out := make([]map[string]any, 0, len(page))
	for _, p := range page {
		out = append(out, wireformat.PVPayload(p.Value))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"readings":   out,
		"has_more":   hasMore,
		"start_time": rng.Start.Format(time.RFC3339),
		"end_time":   rng.End.Format(time.RFC3339),
		"interval":   interval.String(),
	})
}

// --- meters ---

func (s *Server) meterListHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entity_ids": s.engine.MeterIDs()})
}

func (s *Server) meterCurrentHandler(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.engine.MeterCurrent(idFromPath(r))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown meter")
		return
	}
	writeJSON(w, http.StatusOK, wireformat.MeterPayload(reading))
}

func (s *Server) meterHistoryHandler(w http.ResponseWriter, r *http.Request) {
	rng, interval, limit, err := parseHistoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, ok := s.engine.MeterHistory(idFromPath(r), rng, interval)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown meter")
		return
	}
	page, hasMore := paginate(points, limit)
	out := make([]map[string]any, 0, len(page))
	for _, p := range page {
		out = append(out, wireformat.MeterPayload(p.Value))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"readings":   out,
		"has_more":   hasMore,
		"start_time": rng.Start.Format(time.RFC3339),
		"end_time":   rng.End.Format(time.RFC3339),
		"interval":   interval.String(),
	})
}

// --- loads ---

func (s *Server) loadListHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entity_ids": s.engine.LoadIDs()})
}

func (s *Server) loadCurrentHandler(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.engine.LoadCurrent(idFromPath(r))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown load device")
		return
	}
	writeJSON(w, http.StatusOK, wireformat.LoadPayload(reading))
}

func (s *Server) loadHistoryHandler(w http.ResponseWriter, r *http.Request) {
	rng, interval, limit, err := parseHistoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, ok := s.engine.LoadHistory(idFromPath(r), rng, interval)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown load device")
		return
	}
	page, hasMore := paginate(points, limit)
	out := make([]map[string]any, 0, len(page))
	for _, p := range page {
		out = append(out, wireformat.LoadPayload(p.Value))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"readings":   out,
		"has_more":   hasMore,
		"start_time": rng.Start.Format(time.RFC3339),
		"end_time":   rng.End.Format(time.RFC3339),
		"interval":   interval.String(),
	})
}

// --- prices ---

func (s *Server) priceListHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entity_ids": s.engine.PriceIDs()})
}

func (s *Server) priceCurrentHandler(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.engine.PriceCurrent(idFromPath(r))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown price feed")
		return
	}
	writeJSON(w, http.StatusOK, wireformat.PricePayload(reading))
}

func (s *Server) priceHistoryHandler(w http.ResponseWriter, r *http.Request) {
	rng, interval, limit, err := parseHistoryQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, ok := s.engine.PriceHistory(idFromPath(r), rng, interval)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown price feed")
		return
	}
	page, hasMore := paginate(points, limit)
	out := make([]map[string]any, 0, len(page))
	for _, p := range page {
		out = append(out, wireformat.PricePayload(p.Value))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"readings":   out,
		"has_more":   hasMore,
		"start_time": rng.Start.Format(time.RFC3339),
		"end_time":   rng.End.Format(time.RFC3339),
		"interval":   interval.String(),
	})
}

func (s *Server) priceForecastHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hours := 24
	if v := q.Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxForecastHours {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("hours must be between 1 and %d", maxForecastHours))
			return
		}
		hours = n
	}

	interval := timeseries.FifteenMinutes
	if v := q.Get("interval"); v != "" {
		parsed, err := timeseries.ParseInterval(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		interval = parsed
	}

	points, ok := s.engine.PriceForecast(idFromPath(r), hours, interval)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown price feed")
		return
	}
	out := make([]map[string]any, 0, len(points))
	for _, p := range points {
		out = append(out, wireformat.PricePayload(p.Value))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generated_at":  s.engine.Now().Format(time.RFC3339),
		"horizon_hours": hours,
		"interval":      interval.String(),
		"prices":        out,
	})
}

// --- simulation control ---

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.Start()
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) pauseHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.Pause()
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Seed *uint64 `json:"seed"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if err := s.engine.Reset(body.Seed); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.buildStatusPayload())
}

func (s *Server) buildStatusPayload() map[string]any {
	snap := s.engine.Snapshot()
	corrPayload := wireformat.CorrelationPayload(s.engine.CurrentSnapshot())
	return map[string]any{
		"type": "status_update",
		"status": map[string]any{
			"state":        snap.State,
			"sim_time":     snap.SimTime.Format(time.RFC3339),
			"seed":         snap.Seed,
			"acceleration": snap.Acceleration,
			"entity_ids":   snap.EntityIDs,
			"uptime":       time.Since(s.startTime).String(),
		},
		"snapshot": corrPayload,
	}
}

// --- websocket status mirror ---

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("httpapi: websocket upgrade error: %v", err)
		}
		return
	}
	s.clients.Store(conn, true)
	if err := conn.WriteJSON(s.buildStatusPayload()); err != nil && s.logger != nil {
		s.logger.Printf("httpapi: failed to send initial status: %v", err)
	}

	defer func() {
		s.clients.Delete(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleBroadcasts() {
	for {
		select {
		case message := <-s.broadcast:
			s.clients.Range(func(key, _ any) bool {
				conn, ok := key.(*websocket.Conn)
				if !ok {
					return true
				}
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					s.clients.Delete(conn)
				}
				return true
			})
		case <-s.done:
			return
		}
	}
}

func (s *Server) broadcastStatusLoop() {
	ticker := time.NewTicker(statusBroadcastEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hasClients := false
			s.clients.Range(func(_, _ any) bool {
				hasClients = true
				return false
			})
			if !hasClients {
				continue
			}
			body, err := json.Marshal(s.buildStatusPayload())
			if err != nil {
				if s.logger != nil {
					s.logger.Printf("httpapi: failed to marshal status: %v", err)
				}
				continue
			}
			s.broadcast <- body
		case <-s.done:
			return
		}
	}
}
