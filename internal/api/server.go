// Package api serves the tracker over JSON. Handlers read through store
// accessors and the query layer and change state only through named store,
// driver panel and simulation manager operations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/kolekarsoham270-hash/bustracker/internal/locale"
	"github.com/kolekarsoham270-hash/bustracker/internal/sim"
	"github.com/kolekarsoham270-hash/bustracker/internal/store"
	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

type Server struct {
	store  *store.Store
	locale *locale.Store
	sim    *sim.Manager
	center transit.Coord

	// loops started over HTTP outlive the request that started them
	base context.Context

	validate *validator.Validate
}

func NewServer(base context.Context, s *store.Store, l *locale.Store, m *sim.Manager, center transit.Coord) *Server {
	return &Server{
		store:    s,
		locale:   l,
		sim:      m,
		center:   center,
		base:     base,
		validate: validator.New(),
	}
}

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

func (s *Server) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/routes", s.listRoutes)
		r.Get("/routes/options", s.routeOptions)
		r.Get("/routes/{routeID}", s.routeDetail)
		r.Post("/routes/{routeID}/watch", s.startWatch)
		r.Delete("/routes/{routeID}/watch", s.stopWatch)

		r.Get("/stops", s.listStops)
		r.Get("/vehicles", s.listVehicles)
		r.Put("/vehicles/{vehicleID}/position", s.putVehiclePosition)
		r.Put("/vehicles/{vehicleID}/status", s.putVehicleStatus)
		r.Put("/vehicles/{vehicleID}/occupancy", s.putVehicleOccupancy)

		r.Get("/favorites", s.listFavorites)
		r.Get("/favorites/summary", s.favoritesSummary)
		r.Put("/favorites/{routeID}", s.addFavorite)
		r.Delete("/favorites/{routeID}", s.removeFavorite)

		r.Get("/notifications", s.listNotifications)
		r.Post("/notifications/{id}/read", s.markRead)

		r.Put("/location", s.putLocation)
		r.Put("/selection", s.putSelection)
		r.Delete("/selection", s.clearSelection)
		r.Get("/map", s.mapView)

		r.Get("/overview", s.overview)
		r.Get("/analytics", s.analytics)
		r.Get("/fare", s.fare)

		r.Get("/language", s.getLanguage)
		r.Put("/language", s.putLanguage)
		r.Get("/i18n/{key}", s.translate)

		r.Post("/drivers/{driverID}/tracking", s.startTracking)
		r.Delete("/drivers/{driverID}/tracking", s.stopTracking)
		r.Post("/drivers/{driverID}/status", s.reportStatus)
		r.Post("/drivers/{driverID}/issue", s.reportIssue)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"vehicles":  len(s.store.Vehicles()),
		"loops":     s.sim.Running(),
		"timestamp": time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// decode reads a JSON body into v and runs its validate tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		details := map[string]any{}
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: details})
		return false
	}
	return true
}
