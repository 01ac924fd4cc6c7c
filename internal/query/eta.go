package query

import (
	"fmt"
	"math"

	"github.com/kolekarsoham270-hash/bustracker/internal/geo"
	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

// The ETA heuristic converts a straight-line distance in degrees to minutes
// at an assumed constant speed. It ignores the road network and the stop
// sequence, so it is an approximation and not a routing estimate.
const (
	KmPerDegree     = 111.0
	AssumedSpeedKmh = 30.0
)

type ETAKind string

const (
	ETANoBuses  ETAKind = "no-buses"
	ETAArriving ETAKind = "arriving"
	ETAMinutes  ETAKind = "minutes"
)

type ETA struct {
	Kind      ETAKind `json:"kind"`
	Minutes   int     `json:"minutes,omitempty"`
	VehicleID string  `json:"vehicleId,omitempty"`
}

func (e ETA) String() string {
	switch e.Kind {
	case ETAArriving:
		return "Arriving"
	case ETAMinutes:
		return fmt.Sprintf("%d min", e.Minutes)
	}
	return "No buses"
}

// DegreesToMinutes applies the ETA heuristic to a distance in degrees.
func DegreesToMinutes(deg float64) float64 {
	return deg * KmPerDegree * 60 / AssumedSpeedKmh
}

// NearestETA estimates when the closest non-cancelled vehicle of a route
// reaches a stop. An unknown stop or a route with no eligible vehicle yields
// ETANoBuses; an estimate that rounds below one minute yields ETAArriving.
func NearestETA(snap transit.Snapshot, routeNumber, stopID string) ETA {
	stop, ok := snap.StopByID(stopID)
	if !ok {
		return ETA{Kind: ETANoBuses}
	}
	best := math.Inf(1)
	var nearest string
	for _, v := range snap.VehiclesOnRoute(routeNumber) {
		if !v.Active() {
			continue
		}
		if d := geo.Degrees(v.Position, stop.Position); d < best {
			best, nearest = d, v.ID
		}
	}
	if nearest == "" {
		return ETA{Kind: ETANoBuses}
	}
	mins := round(DegreesToMinutes(best))
	if mins < 1 {
		return ETA{Kind: ETAArriving, VehicleID: nearest}
	}
	return ETA{Kind: ETAMinutes, Minutes: mins, VehicleID: nearest}
}

// StopETA pairs a stop with its ETA.
type StopETA struct {
	Stop transit.Stop `json:"stop"`
	ETA  ETA          `json:"eta"`
	Text string       `json:"text"`
}

// RouteETAs lists every stop of a route in travel order with its ETA.
func RouteETAs(snap transit.Snapshot, routeNumber string) []StopETA {
	stops := snap.StopsOnRoute(routeNumber)
	out := make([]StopETA, 0, len(stops))
	for _, st := range stops {
		eta := NearestETA(snap, routeNumber, st.ID)
		out = append(out, StopETA{Stop: st, ETA: eta, Text: eta.String()})
	}
	return out
}
