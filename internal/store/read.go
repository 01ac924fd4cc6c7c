package store

import "github.com/kolekarsoham270-hash/bustracker/internal/transit"

// Read accessors return copies; callers cannot reach the store's slices.

func (s *Store) Routes() []transit.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRoutes(s.routes)
}

func (s *Store) Stops() []transit.Stop {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneStops(s.stops)
}

func (s *Store) Vehicles() []transit.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]transit.Vehicle(nil), s.vehicles...)
}

func (s *Store) Favorites() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.favorites...)
}

func (s *Store) IsFavorite(routeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.favorites {
		if id == routeID {
			return true
		}
	}
	return false
}

// Notifications returns the notification feed, newest first.
func (s *Store) Notifications() []transit.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]transit.Notification(nil), s.notifications...)
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, nt := range s.notifications {
		if !nt.Read {
			n++
		}
	}
	return n
}

func (s *Store) UserLocation() (transit.Coord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userLocation == nil {
		return transit.Coord{}, false
	}
	return *s.userLocation, true
}

func (s *Store) SelectedRoute() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedRoute, s.selectedRoute != ""
}

func (s *Store) Vehicle(id string) (transit.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.vehicleIndex(id); i >= 0 {
		return s.vehicles[i], true
	}
	return transit.Vehicle{}, false
}

// VehicleForDriver returns the first vehicle assigned to driverID.
func (s *Store) VehicleForDriver(driverID string) (transit.Vehicle, bool) {
	if driverID == "" {
		return transit.Vehicle{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.vehicles {
		if v.DriverID == driverID {
			return v, true
		}
	}
	return transit.Vehicle{}, false
}

// Snapshot copies the whole store in one consistent read.
func (s *Store) Snapshot() transit.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := transit.Snapshot{
		Routes:        cloneRoutes(s.routes),
		Stops:         cloneStops(s.stops),
		Vehicles:      append([]transit.Vehicle(nil), s.vehicles...),
		Favorites:     append([]string(nil), s.favorites...),
		Notifications: append([]transit.Notification(nil), s.notifications...),
		SelectedRoute: s.selectedRoute,
	}
	if s.userLocation != nil {
		c := *s.userLocation
		snap.UserLocation = &c
	}
	return snap
}
