package store

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

// Clock supplies the current time for timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Listener observes store mutations. Callbacks run after the store lock is
// released, on the goroutine that made the change.
type Listener interface {
	VehicleChanged(v transit.Vehicle)
	NotificationAdded(n transit.Notification)
}

// Option configures a Store.
type Option func(*Store)

func WithClock(c Clock) Option { return func(s *Store) { s.clock = c } }

// WithIDGenerator replaces the notification id generator (random UUIDs by
// default). The generator must not repeat values.
func WithIDGenerator(gen func() string) Option { return func(s *Store) { s.newID = gen } }

func WithOccupancyPolicy(p transit.OccupancyPolicy) Option {
	return func(s *Store) { s.occupancy = p }
}

func WithListener(l Listener) Option {
	return func(s *Store) { s.listeners = append(s.listeners, l) }
}

// Store is the single owner of routes, stops, vehicles, favorites,
// notifications, the user location and the selected route. Every operation
// completes synchronously and is visible to the next read. Operations on an
// unknown id are no-ops.
type Store struct {
	clock     Clock
	newID     func() string
	occupancy transit.OccupancyPolicy
	listeners []Listener

	mu            sync.RWMutex
	routes        []transit.Route
	stops         []transit.Stop
	vehicles      []transit.Vehicle
	favorites     []string
	notifications []transit.Notification // newest first
	userLocation  *transit.Coord
	selectedRoute string
}

func New(opts ...Option) *Store {
	s := &Store{
		clock:     SystemClock,
		newID:     uuid.NewString,
		occupancy: transit.AllowOvercrowding,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load replaces routes, stops and vehicles with the seed. Vehicles without a
// last-updated time are stamped with the current time.
func (s *Store) Load(seed transit.Seed) {
	now := s.clock.Now()
	vehicles := make([]transit.Vehicle, len(seed.Vehicles))
	copy(vehicles, seed.Vehicles)
	for i := range vehicles {
		if vehicles[i].LastUpdated.IsZero() {
			vehicles[i].LastUpdated = now
		}
		clearDelay(&vehicles[i])
		if err := s.occupancy(vehicles[i]); err != nil {
			log.Printf("seed occupancy policy: %v", err)
		}
	}
	s.mu.Lock()
	s.routes = cloneRoutes(seed.Routes)
	s.stops = cloneStops(seed.Stops)
	s.vehicles = vehicles
	s.mu.Unlock()
}

func (s *Store) ReplaceVehicles(list []transit.Vehicle) {
	cp := make([]transit.Vehicle, len(list))
	copy(cp, list)
	for i := range cp {
		clearDelay(&cp[i])
	}
	s.mu.Lock()
	s.vehicles = cp
	s.mu.Unlock()
}

// clearDelay drops a delay carried by a vehicle that is not delayed.
func clearDelay(v *transit.Vehicle) {
	if v.Status != transit.StatusDelayed {
		v.DelayMin = 0
	}
}

func (s *Store) ReplaceRoutes(list []transit.Route) {
	cp := cloneRoutes(list)
	s.mu.Lock()
	s.routes = cp
	s.mu.Unlock()
}

func (s *Store) ReplaceStops(list []transit.Stop) {
	cp := cloneStops(list)
	s.mu.Lock()
	s.stops = cp
	s.mu.Unlock()
}

// AddFavorite appends routeID unless it is already a favorite.
func (s *Store) AddFavorite(routeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.favorites {
		if id == routeID {
			return
		}
	}
	s.favorites = append(s.favorites, routeID)
}

// RemoveFavorite drops every occurrence of routeID.
func (s *Store) RemoveFavorite(routeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.favorites[:0]
	for _, id := range s.favorites {
		if id != routeID {
			kept = append(kept, id)
		}
	}
	s.favorites = kept
}

// ToggleFavorite flips membership and reports whether routeID is now a
// favorite.
func (s *Store) ToggleFavorite(routeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.favorites[:0]
	for _, id := range s.favorites {
		if id != routeID {
			kept = append(kept, id)
		}
	}
	if len(kept) < len(s.favorites) {
		s.favorites = kept
		return false
	}
	s.favorites = append(s.favorites, routeID)
	return true
}

func (s *Store) SetUserLocation(c transit.Coord) {
	s.mu.Lock()
	s.userLocation = &c
	s.mu.Unlock()
}

func (s *Store) SetSelectedRoute(routeID string) {
	s.mu.Lock()
	s.selectedRoute = routeID
	s.mu.Unlock()
}

func (s *Store) ClearSelectedRoute() { s.SetSelectedRoute("") }

// AddNotification records a new unread notification at the head of the list
// and returns it.
func (s *Store) AddNotification(in transit.NotificationInput) transit.Notification {
	n := transit.Notification{
		Type:    in.Type,
		Title:   in.Title,
		Message: in.Message,
	}
	s.mu.Lock()
	n.ID = s.newID()
	n.CreatedAt = s.clock.Now()
	list := make([]transit.Notification, 0, len(s.notifications)+1)
	list = append(list, n)
	s.notifications = append(list, s.notifications...)
	s.mu.Unlock()

	for _, l := range s.listeners {
		l.NotificationAdded(n)
	}
	return n
}

func (s *Store) MarkNotificationRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			return
		}
	}
}

// UpdateVehiclePosition moves a vehicle and bumps its last-updated time.
func (s *Store) UpdateVehiclePosition(vehicleID string, lat, lng float64) {
	s.mutateVehicle(vehicleID, func(v *transit.Vehicle) {
		v.Position = transit.Coord{Lat: lat, Lng: lng}
	})
}

// UpdateVehicleStatus sets status and delay together. The delay is kept only
// for StatusDelayed (negative values become 0); every other status carries a
// zero delay.
func (s *Store) UpdateVehicleStatus(vehicleID string, status transit.Status, delayMin int) {
	if status != transit.StatusDelayed || delayMin < 0 {
		delayMin = 0
	}
	s.mutateVehicle(vehicleID, func(v *transit.Vehicle) {
		v.Status = status
		v.DelayMin = delayMin
	})
}

// SetVehicleOccupancy applies the occupancy policy and stores the value only
// when the policy accepts it. An unknown vehicle is a no-op.
func (s *Store) SetVehicleOccupancy(vehicleID string, occupancy int) error {
	s.mu.Lock()
	i := s.vehicleIndex(vehicleID)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	next := s.vehicles[i]
	next.Occupancy = occupancy
	if err := s.occupancy(next); err != nil {
		s.mu.Unlock()
		return err
	}
	next.LastUpdated = s.bump(next.LastUpdated)
	s.vehicles[i] = next
	s.mu.Unlock()

	s.notifyVehicle(next)
	return nil
}

// OccupancyViolations lists the policy errors of every vehicle currently in
// the store.
func (s *Store) OccupancyViolations() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var errs []error
	for _, v := range s.vehicles {
		if err := s.occupancy(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Store) mutateVehicle(vehicleID string, fn func(v *transit.Vehicle)) {
	s.mu.Lock()
	i := s.vehicleIndex(vehicleID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	v := &s.vehicles[i]
	fn(v)
	v.LastUpdated = s.bump(v.LastUpdated)
	updated := *v
	s.mu.Unlock()

	s.notifyVehicle(updated)
}

// bump returns the clock time, never earlier than prev.
func (s *Store) bump(prev time.Time) time.Time {
	now := s.clock.Now()
	if now.Before(prev) {
		return prev
	}
	return now
}

func (s *Store) vehicleIndex(id string) int {
	for i := range s.vehicles {
		if s.vehicles[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notifyVehicle(v transit.Vehicle) {
	for _, l := range s.listeners {
		l.VehicleChanged(v)
	}
}

func cloneRoutes(in []transit.Route) []transit.Route {
	out := make([]transit.Route, len(in))
	for i, r := range in {
		r.StopIDs = append([]string(nil), r.StopIDs...)
		out[i] = r
	}
	return out
}

func cloneStops(in []transit.Stop) []transit.Stop {
	out := make([]transit.Stop, len(in))
	for i, st := range in {
		st.Routes = append([]string(nil), st.Routes...)
		st.Facilities = append([]string(nil), st.Facilities...)
		out[i] = st
	}
	return out
}
