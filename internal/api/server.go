// Package api exposes pipeline results over HTTP: JSON collections for
// the presentation collaborator plus rendered dashboard charts.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/greywick-data/potionflow/internal/db"
	"github.com/greywick-data/potionflow/internal/fetch"
	"github.com/greywick-data/potionflow/internal/potion"
	"github.com/greywick-data/potionflow/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server serves the latest stored pipeline results.
type Server struct {
	db      *db.DB
	network *fetch.Network // may be nil when running offline
	units   string
}

// NewServer builds a results server. units selects the default fill-rate
// unit for list endpoints; requests may override it with ?units=.
func NewServer(database *db.DB, network *fetch.Network, rateUnits string) *Server {
	if !units.IsValid(rateUnits) {
		rateUnits = units.LPM
	}
	return &Server{
		db:      database,
		network: network,
		units:   rateUnits,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/fillrates", s.listFillRates)
	mux.HandleFunc("/api/drains", s.listDrains)
	mux.HandleFunc("/api/matches", s.listMatches)
	mux.HandleFunc("/api/overflow", s.listOverflow)
	mux.HandleFunc("/api/priority", s.listPriorities)
	mux.HandleFunc("/api/couriers", s.listCouriers)
	mux.HandleFunc("/api/summary", s.showSummary)
	mux.HandleFunc("/charts/levels", s.chartLevels)
	mux.HandleFunc("/charts/risk", s.chartRisk)
	mux.HandleFunc("/debug/map.png", s.renderMap)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// latest loads the most recent stored run, translating "nothing stored
// yet" into a 404.
func (s *Server) latest(w http.ResponseWriter, r *http.Request) (*potion.Results, bool) {
	res, err := s.db.LatestResults(r.Context())
	if errors.Is(err, db.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "no pipeline run stored yet")
		return nil, false
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return res, true
}

func (s *Server) listFillRates(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w, r)
	if !ok {
		return
	}
	target := r.URL.Query().Get("units")
	if target == "" {
		target = s.units
	}
	if !units.IsValid(target) {
		s.writeJSONError(w, http.StatusBadRequest, "invalid units, expected one of: lpm, lph")
		return
	}
	type rateOut struct {
		CauldronID string  `json:"cauldron_id"`
		Rate       float64 `json:"rate"`
		Units      string  `json:"units"`
		PerMinute  float64 `json:"fill_rate_per_min"`
		PerHour    float64 `json:"fill_rate_per_hour"`
	}
	out := make([]rateOut, 0, len(res.FillRates))
	for _, fr := range res.FillRates {
		out = append(out, rateOut{
			CauldronID: fr.CauldronID,
			Rate:       units.ConvertRate(fr.PerMinute, target),
			Units:      target,
			PerMinute:  fr.PerMinute,
			PerHour:    fr.PerHour,
		})
	}
	s.writeJSON(w, out)
}

func (s *Server) listDrains(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w, r)
	if !ok {
		return
	}
	if id := r.URL.Query().Get("cauldron_id"); id != "" {
		filtered := make([]potion.DrainEvent, 0, len(res.Drains))
		for _, d := range res.Drains {
			if d.CauldronID == id {
				filtered = append(filtered, d)
			}
		}
		s.writeJSON(w, filtered)
		return
	}
	s.writeJSON(w, res.Drains)
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w, r)
	if !ok {
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := make([]potion.MatchResult, 0, len(res.Matches))
		for _, m := range res.Matches {
			if string(m.Status) == status {
				filtered = append(filtered, m)
			}
		}
		s.writeJSON(w, filtered)
		return
	}
	s.writeJSON(w, res.Matches)
}

func (s *Server) listOverflow(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, res.Risks)
}

func (s *Server) listPriorities(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, res.Priorities)
}

func (s *Server) listCouriers(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, res.Couriers)
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	res, ok := s.latest(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"run_id":            res.RunID,
		"generated_at":      res.GeneratedAt,
		"summary":           res.Summary,
		"patterns":          res.Patterns,
		"skipped_readings":  res.SkippedReadings,
		"skipped_cauldrons": res.SkippedCauldrons,
	})
}
