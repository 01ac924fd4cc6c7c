package query

import "github.com/kolekarsoham270-hash/bustracker/internal/transit"

// MapData is what the map widget draws.
type MapData struct {
	Center   transit.Coord     `json:"center"`
	Route    *transit.Route    `json:"route,omitempty"`
	Vehicles []transit.Vehicle `json:"vehicles"`
	Stops    []transit.Stop    `json:"stops"`
}

// MapView narrows vehicles and stops to the selected route, or shows
// everything when no route is selected or the selection is unknown. The
// centre is the user location when known, otherwise defaultCenter.
func MapView(snap transit.Snapshot, defaultCenter transit.Coord) MapData {
	m := MapData{Center: defaultCenter}
	if snap.UserLocation != nil {
		m.Center = *snap.UserLocation
	}
	if r, ok := snap.RouteByID(snap.SelectedRoute); ok && snap.SelectedRoute != "" {
		m.Route = &r
		m.Vehicles = snap.VehiclesOnRoute(r.Number)
		m.Stops = snap.StopsOnRoute(r.Number)
		return m
	}
	m.Vehicles = snap.Vehicles
	m.Stops = snap.Stops
	return m
}
