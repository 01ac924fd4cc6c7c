package query

import (
	"fmt"
	"math"

	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

type Service string

const (
	ServiceNone      Service = "no-service" // no vehicles on the route
	ServiceSuspended Service = "suspended"  // every vehicle cancelled
	ServiceRunning   Service = "running"
)

// RouteSummary partitions a route's vehicles by status. OnTimePercent is
// on-time vehicles over active (non-cancelled) vehicles, rounded; it is 0
// unless Service is ServiceRunning.
type RouteSummary struct {
	RouteNumber   string  `json:"routeNumber"`
	Service       Service `json:"service"`
	Total         int     `json:"total"`
	Active        int     `json:"active"`
	OnTime        int     `json:"onTime"`
	Delayed       int     `json:"delayed"`
	OnTimePercent int     `json:"onTimePercent"`
}

func (s RouteSummary) String() string {
	switch s.Service {
	case ServiceNone:
		return "No buses"
	case ServiceSuspended:
		return "Service suspended"
	}
	return fmt.Sprintf("%d active • %d%% on time", s.Active, s.OnTimePercent)
}

// RouteStatus summarises the vehicles serving a route number.
func RouteStatus(snap transit.Snapshot, routeNumber string) RouteSummary {
	sum := RouteSummary{RouteNumber: routeNumber, Service: ServiceNone}
	for _, v := range snap.VehiclesOnRoute(routeNumber) {
		sum.Total++
		if v.Active() {
			sum.Active++
		}
		switch v.Status {
		case transit.StatusOnTime:
			sum.OnTime++
		case transit.StatusDelayed:
			sum.Delayed++
		}
	}
	if sum.Total == 0 {
		return sum
	}
	sum.Service = ServiceRunning
	if sum.Active == 0 {
		sum.Service = ServiceSuspended
	}
	sum.OnTimePercent = percent(sum.OnTime, sum.Active)
	return sum
}

// NextBusDelay describes the next departure on a route from the mean delay
// of its non-cancelled vehicles.
func NextBusDelay(snap transit.Snapshot, routeNumber string) string {
	total, n := 0, 0
	for _, v := range snap.VehiclesOnRoute(routeNumber) {
		if !v.Active() {
			continue
		}
		total += v.DelayMin
		n++
	}
	if n == 0 {
		return "No buses"
	}
	if avg := round(float64(total) / float64(n)); avg > 0 {
		return fmt.Sprintf("%d min delay", avg)
	}
	return "On time"
}

// Overview is the network-wide dashboard summary.
type Overview struct {
	Vehicles      int `json:"vehicles"`
	Active        int `json:"active"`
	OnTime        int `json:"onTime"`
	Delayed       int `json:"delayed"`
	Cancelled     int `json:"cancelled"`
	OnTimePercent int `json:"onTimePercent"`
	Routes        int `json:"routes"`
	Stops         int `json:"stops"`
	Unread        int `json:"unreadNotifications"`
}

func NetworkOverview(snap transit.Snapshot) Overview {
	o := Overview{
		Vehicles: len(snap.Vehicles),
		Routes:   len(snap.Routes),
		Stops:    len(snap.Stops),
		Unread:   snap.UnreadCount(),
	}
	for _, v := range snap.Vehicles {
		switch v.Status {
		case transit.StatusOnTime:
			o.OnTime++
		case transit.StatusDelayed:
			o.Delayed++
		case transit.StatusCancelled:
			o.Cancelled++
		}
		if v.Active() {
			o.Active++
		}
	}
	o.OnTimePercent = percent(o.OnTime, o.Vehicles)
	return o
}

// RoutePerformance is the analytics row for one route.
type RoutePerformance struct {
	RouteID          string `json:"routeId"`
	RouteNumber      string `json:"routeNumber"`
	Vehicles         int    `json:"vehicles"`
	Active           int    `json:"active"`
	OnTimePercent    int    `json:"onTimePercent"`
	OccupancyPercent int    `json:"avgOccupancyPercent"`
}

// Performance reports on-time and mean occupancy percentages per route, in
// route order. Routes without vehicles report zeros.
func Performance(snap transit.Snapshot) []RoutePerformance {
	out := make([]RoutePerformance, 0, len(snap.Routes))
	for _, r := range snap.Routes {
		p := RoutePerformance{RouteID: r.ID, RouteNumber: r.Number}
		onTime := 0
		occ := 0.0
		for _, v := range snap.VehiclesOnRoute(r.Number) {
			p.Vehicles++
			if v.Active() {
				p.Active++
			}
			if v.Status == transit.StatusOnTime {
				onTime++
			}
			if v.Capacity > 0 {
				occ += float64(v.Occupancy) / float64(v.Capacity) * 100
			}
		}
		if p.Vehicles > 0 {
			p.OnTimePercent = percent(onTime, p.Vehicles)
			p.OccupancyPercent = round(occ / float64(p.Vehicles))
		}
		out = append(out, p)
	}
	return out
}

// EstimateFare is the flat fare rule: 5 + 2 per km + 1 per stage, rounded.
func EstimateFare(distanceKm float64, stages int) int {
	return round(5 + distanceKm*2 + float64(stages))
}

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return round(float64(part) / float64(whole) * 100)
}

// round is half-up rounding for the non-negative values used here.
func round(x float64) int { return int(math.Floor(x + 0.5)) }
