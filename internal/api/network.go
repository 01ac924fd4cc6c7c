package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kolekarsoham270-hash/bustracker/internal/query"
	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

type RoutesResponse struct {
	Routes []transit.Route `json:"routes"`
	Count  int             `json:"count"`
}

// listRoutes handles GET /api/routes?q=&origin=&destination=&accessible=&sort=
func (s *Server) listRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortKey, err := query.ParseSortKey(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	accessible := false
	if v := q.Get("accessible"); v != "" {
		if accessible, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "accessible must be a boolean")
			return
		}
	}
	routes := query.SearchRoutes(s.store.Snapshot(), query.RouteFilter{
		Query:          q.Get("q"),
		Origin:         q.Get("origin"),
		Destination:    q.Get("destination"),
		AccessibleOnly: accessible,
		Sort:           sortKey,
	})
	if routes == nil {
		routes = []transit.Route{}
	}
	writeJSON(w, http.StatusOK, RoutesResponse{Routes: routes, Count: len(routes)})
}

// routeOptions handles GET /api/routes/options with the values the search
// filters accept.
func (s *Server) routeOptions(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"origins":      query.Origins(snap),
		"destinations": query.Destinations(snap),
		"sort":         []query.SortKey{query.SortFare, query.SortDuration, query.SortFrequency},
	})
}

type RouteDetailResponse struct {
	Route      transit.Route      `json:"route"`
	Stops      []transit.Stop     `json:"stops"`
	Vehicles   []transit.Vehicle  `json:"vehicles"`
	Status     query.RouteSummary `json:"status"`
	StatusText string             `json:"statusText"`
	NextBus    string             `json:"nextBus"`
	ETAs       []query.StopETA    `json:"etas"`
	Favorite   bool               `json:"favorite"`
}

// routeDetail handles GET /api/routes/{routeID}
func (s *Server) routeDetail(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	route, ok := snap.RouteByID(chi.URLParam(r, "routeID"))
	if !ok {
		writeError(w, http.StatusNotFound, "route not found")
		return
	}
	status := query.RouteStatus(snap, route.Number)
	resp := RouteDetailResponse{
		Route:      route,
		Stops:      snap.StopsOnRoute(route.Number),
		Vehicles:   snap.VehiclesOnRoute(route.Number),
		Status:     status,
		StatusText: status.String(),
		NextBus:    query.NextBusDelay(snap, route.Number),
		ETAs:       query.RouteETAs(snap, route.Number),
		Favorite:   snap.IsFavorite(route.ID),
	}
	if resp.Stops == nil {
		resp.Stops = []transit.Stop{}
	}
	if resp.Vehicles == nil {
		resp.Vehicles = []transit.Vehicle{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// startWatch handles POST /api/routes/{routeID}/watch and keeps an arrival
// check running for the route until it is deleted or the process stops.
func (s *Server) startWatch(w http.ResponseWriter, r *http.Request) {
	route, ok := s.store.Snapshot().RouteByID(chi.URLParam(r, "routeID"))
	if !ok {
		writeError(w, http.StatusNotFound, "route not found")
		return
	}
	loop := s.sim.StartArrivalWatch(s.base, route.Number)
	writeJSON(w, http.StatusAccepted, map[string]string{"loop": loop.Key()})
}

// stopWatch handles DELETE /api/routes/{routeID}/watch
func (s *Server) stopWatch(w http.ResponseWriter, r *http.Request) {
	route, ok := s.store.Snapshot().RouteByID(chi.URLParam(r, "routeID"))
	if !ok || !s.sim.StopArrivalWatch(route.Number) {
		writeError(w, http.StatusNotFound, "no arrival watch for route")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listStops(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stops": s.store.Stops()})
}

// listVehicles handles GET /api/vehicles, optionally narrowed by ?route=
func (s *Server) listVehicles(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	vehicles := snap.Vehicles
	if number := r.URL.Query().Get("route"); number != "" {
		vehicles = snap.VehiclesOnRoute(number)
	}
	if vehicles == nil {
		vehicles = []transit.Vehicle{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicles": vehicles, "count": len(vehicles)})
}

type positionRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

func (s *Server) putVehiclePosition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "vehicleID")
	if _, ok := s.store.Vehicle(id); !ok {
		writeError(w, http.StatusNotFound, "vehicle not found")
		return
	}
	var req positionRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.store.UpdateVehiclePosition(id, *req.Lat, *req.Lng)
	v, _ := s.store.Vehicle(id)
	writeJSON(w, http.StatusOK, v)
}

type statusRequest struct {
	Status transit.Status `json:"status" validate:"required,oneof=on-time delayed cancelled"`
	Delay  int            `json:"delay" validate:"gte=0"`
}

func (s *Server) putVehicleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "vehicleID")
	if _, ok := s.store.Vehicle(id); !ok {
		writeError(w, http.StatusNotFound, "vehicle not found")
		return
	}
	var req statusRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.store.UpdateVehicleStatus(id, req.Status, req.Delay)
	v, _ := s.store.Vehicle(id)
	writeJSON(w, http.StatusOK, v)
}

type occupancyRequest struct {
	Occupancy *int `json:"occupancy" validate:"required"`
}

func (s *Server) putVehicleOccupancy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "vehicleID")
	if _, ok := s.store.Vehicle(id); !ok {
		writeError(w, http.StatusNotFound, "vehicle not found")
		return
	}
	var req occupancyRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.SetVehicleOccupancy(id, *req.Occupancy); err != nil {
		status := http.StatusUnprocessableEntity
		if !errors.Is(err, transit.ErrOverCapacity) && !errors.Is(err, transit.ErrNegativeOccupancy) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, err.Error())
		return
	}
	v, _ := s.store.Vehicle(id)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) overview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, query.NetworkOverview(s.store.Snapshot()))
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"routes": query.Performance(s.store.Snapshot())})
}

// fare handles GET /api/fare?distance=&stages=
func (s *Server) fare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	distance, err := strconv.ParseFloat(q.Get("distance"), 64)
	if err != nil || distance < 0 {
		writeError(w, http.StatusBadRequest, "distance must be a non-negative number")
		return
	}
	stages := 0
	if v := q.Get("stages"); v != "" {
		if stages, err = strconv.Atoi(v); err != nil || stages < 0 {
			writeError(w, http.StatusBadRequest, "stages must be a non-negative integer")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"distanceKm": distance,
		"stages":     stages,
		"fare":       query.EstimateFare(distance, stages),
	})
}
