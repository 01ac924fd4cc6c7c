package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kolekarsoham270-hash/bustracker/internal/driver"
	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

func (s *Server) panel(r *http.Request) *driver.Panel {
	return driver.NewPanel(s.store, chi.URLParam(r, "driverID"))
}

// startTracking handles POST /api/drivers/{driverID}/tracking: the driver
// goes online and the position feed for their vehicle starts.
func (s *Server) startTracking(w http.ResponseWriter, r *http.Request) {
	p := s.panel(r)
	v, err := p.AssignedVehicle()
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	loop := s.sim.StartPositionFeed(s.base, p.DriverID())
	writeJSON(w, http.StatusAccepted, map[string]string{"loop": loop.Key(), "vehicleId": v.ID})
}

func (s *Server) stopTracking(w http.ResponseWriter, r *http.Request) {
	if !s.sim.StopPositionFeed(chi.URLParam(r, "driverID")) {
		writeError(w, http.StatusNotFound, "driver is not tracking")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reportStatusRequest struct {
	Status transit.Status `json:"status" validate:"required"`
	Delay  int            `json:"delay" validate:"gte=0"`
}

func (s *Server) reportStatus(w http.ResponseWriter, r *http.Request) {
	var req reportStatusRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.panel(r).ReportStatus(req.Status, req.Delay)
	if err != nil {
		writeDriverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

type reportIssueRequest struct {
	Text string `json:"text"`
}

func (s *Server) reportIssue(w http.ResponseWriter, r *http.Request) {
	var req reportIssueRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.panel(r).ReportIssue(req.Text)
	if err != nil {
		writeDriverError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func writeDriverError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, driver.ErrNoVehicle):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, driver.ErrInvalidStatus), errors.Is(err, driver.ErrEmptyIssue):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
