// Package api exposes the guidance session over a small JSON surface, used
// by the companion UI and by operators poking at a running instance.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kawanjalan/guidance/internal/lib/catalog"
	"github.com/kawanjalan/guidance/internal/lib/geo"
	"github.com/kawanjalan/guidance/internal/services"
)

// Server wraps the guidance service with HTTP handlers.
type Server struct {
	svc *services.GuidanceService
	log *zap.Logger
}

func NewServer(svc *services.GuidanceService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, log: log}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	v1.HandleFunc("/zones", s.handleZones).Methods(http.MethodGet)
	v1.HandleFunc("/places/search", s.handlePlaceSearch).Methods(http.MethodGet)
	v1.HandleFunc("/session/destination", s.handleSetDestination).Methods(http.MethodPost)
	v1.HandleFunc("/session/origin", s.handleSetOrigin).Methods(http.MethodPost)
	v1.HandleFunc("/session/mode", s.handleSetMode).Methods(http.MethodPost)
	v1.HandleFunc("/session/silent", s.handleSetSilent).Methods(http.MethodPost)
	v1.HandleFunc("/session/dismiss", s.handleDismiss).Methods(http.MethodPost)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	zones := s.svc.Zones()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(zones),
		"zones": zones,
	})
}

func (s *Server) handlePlaceSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	suggestions, err := s.svc.SearchDestination(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

type destinationRequest struct {
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lng"`
	PlaceID   string   `json:"place_id"`
}

func (s *Server) handleSetDestination(w http.ResponseWriter, r *http.Request) {
	var req destinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	switch {
	case req.PlaceID != "":
		err = s.svc.SetDestinationPlace(r.Context(), req.PlaceID)
	case req.Latitude != nil && req.Longitude != nil:
		err = s.svc.SetDestination(r.Context(), geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude})
	default:
		writeError(w, http.StatusBadRequest, "provide place_id or lat/lng")
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleSetOrigin(w http.ResponseWriter, r *http.Request) {
	var req destinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "provide lat/lng")
		return
	}
	if err := s.svc.SetOrigin(r.Context(), geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode, err := catalog.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.SetMode(r.Context(), mode); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleSetSilent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Silent bool `json:"silent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.svc.SetSilent(req.Silent)
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.svc.Dismiss()
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
