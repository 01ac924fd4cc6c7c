package transit

// Snapshot is a point-in-time copy of the store contents. Route numbers join
// vehicles and stops to routes; the join helpers below are the only place
// that relationship is resolved. A vehicle or stop whose route number has no
// matching route is tolerated and simply never joined.
type Snapshot struct {
	Routes        []Route
	Stops         []Stop
	Vehicles      []Vehicle
	Favorites     []string
	Notifications []Notification
	UserLocation  *Coord
	SelectedRoute string
}

func (s Snapshot) RouteByID(id string) (Route, bool) {
	for _, r := range s.Routes {
		if r.ID == id {
			return r, true
		}
	}
	return Route{}, false
}

func (s Snapshot) RouteByNumber(number string) (Route, bool) {
	for _, r := range s.Routes {
		if r.Number == number {
			return r, true
		}
	}
	return Route{}, false
}

func (s Snapshot) StopByID(id string) (Stop, bool) {
	for _, st := range s.Stops {
		if st.ID == id {
			return st, true
		}
	}
	return Stop{}, false
}

// VehiclesOnRoute returns the vehicles whose route number equals number,
// in store order.
func (s Snapshot) VehiclesOnRoute(number string) []Vehicle {
	var out []Vehicle
	for _, v := range s.Vehicles {
		if v.RouteNumber == number {
			out = append(out, v)
		}
	}
	return out
}

// StopsOnRoute returns the stops of a route in travel order. When the route
// carries no stop sequence (or is unknown) the stops advertising the route
// number in their membership set are returned in store order instead.
func (s Snapshot) StopsOnRoute(number string) []Stop {
	if r, ok := s.RouteByNumber(number); ok && len(r.StopIDs) > 0 {
		out := make([]Stop, 0, len(r.StopIDs))
		for _, id := range r.StopIDs {
			if st, ok := s.StopByID(id); ok {
				out = append(out, st)
			}
		}
		return out
	}
	var out []Stop
	for _, st := range s.Stops {
		if st.Serves(number) {
			out = append(out, st)
		}
	}
	return out
}

func (s Snapshot) IsFavorite(routeID string) bool {
	for _, id := range s.Favorites {
		if id == routeID {
			return true
		}
	}
	return false
}

func (s Snapshot) UnreadCount() int {
	n := 0
	for _, nt := range s.Notifications {
		if !nt.Read {
			n++
		}
	}
	return n
}
