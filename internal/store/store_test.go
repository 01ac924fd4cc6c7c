package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

// stepClock advances by step on every read.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock { return ClockFunc(func() time.Time { return t }) }

func seededStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(opts...)
	s.Load(transit.Seed{
		Routes: []transit.Route{
			{ID: "route-101", Number: "101", StopIDs: []string{"stop-1"}},
			{ID: "route-102", Number: "102"},
		},
		Stops: []transit.Stop{
			{ID: "stop-1", Routes: []string{"101"}, Position: transit.Coord{Lat: 26.9124, Lng: 75.7873}},
		},
		Vehicles: []transit.Vehicle{
			{ID: "bus-1", RouteNumber: "101", Status: transit.StatusOnTime, Capacity: 40, Occupancy: 25, DriverID: "driver-1"},
			{ID: "bus-2", RouteNumber: "102", Status: transit.StatusDelayed, DelayMin: 5, Capacity: 35, Occupancy: 30},
		},
	})
	return s
}

type recorder struct {
	mu            sync.Mutex
	vehicles      []transit.Vehicle
	notifications []transit.Notification
}

func (r *recorder) VehicleChanged(v transit.Vehicle) {
	r.mu.Lock()
	r.vehicles = append(r.vehicles, v)
	r.mu.Unlock()
}

func (r *recorder) NotificationAdded(n transit.Notification) {
	r.mu.Lock()
	r.notifications = append(r.notifications, n)
	r.mu.Unlock()
}

func TestFavoritesIdempotent(t *testing.T) {
	s := New()
	s.AddFavorite("route-101")
	once := s.Favorites()
	s.AddFavorite("route-101")
	assert.Equal(t, once, s.Favorites())
	assert.Equal(t, []string{"route-101"}, s.Favorites())

	s.RemoveFavorite("route-999")
	assert.Equal(t, []string{"route-101"}, s.Favorites())

	s.RemoveFavorite("route-101")
	assert.Empty(t, s.Favorites())
	assert.False(t, s.IsFavorite("route-101"))
}

func TestToggleFavorite(t *testing.T) {
	s := New()
	assert.True(t, s.ToggleFavorite("route-102"))
	assert.True(t, s.IsFavorite("route-102"))
	assert.False(t, s.ToggleFavorite("route-102"))
	assert.Empty(t, s.Favorites())
}

func TestLoadStampsLastUpdated(t *testing.T) {
	s := seededStore(t, WithClock(fixedClock(t0)))
	for _, v := range s.Vehicles() {
		assert.Equal(t, t0, v.LastUpdated, v.ID)
	}
}

func TestUpdateVehiclePosition(t *testing.T) {
	clk := &stepClock{now: t0, step: time.Second}
	rec := &recorder{}
	s := seededStore(t, WithClock(clk), WithListener(rec))
	before, _ := s.Vehicle("bus-2")

	s.UpdateVehiclePosition("bus-1", 26.95, 75.80)

	v, ok := s.Vehicle("bus-1")
	require.True(t, ok)
	assert.Equal(t, transit.Coord{Lat: 26.95, Lng: 75.80}, v.Position)
	assert.True(t, v.LastUpdated.After(t0))
	other, _ := s.Vehicle("bus-2")
	assert.Equal(t, before, other)
	require.Len(t, rec.vehicles, 1)
	assert.Equal(t, "bus-1", rec.vehicles[0].ID)

	s.UpdateVehiclePosition("bus-404", 1, 1)
	assert.Len(t, rec.vehicles, 1)
}

func TestLastUpdatedNeverGoesBack(t *testing.T) {
	now := t0
	s := seededStore(t, WithClock(ClockFunc(func() time.Time { return now })))
	now = t0.Add(-time.Hour)
	s.UpdateVehiclePosition("bus-1", 1, 2)
	v, _ := s.Vehicle("bus-1")
	assert.Equal(t, t0, v.LastUpdated)
}

func TestUpdateVehicleStatusDelayInvariant(t *testing.T) {
	s := seededStore(t)
	steps := []struct {
		status transit.Status
		delay  int
		want   int
	}{
		{transit.StatusDelayed, 7, 7},
		{transit.StatusOnTime, 7, 0},
		{transit.StatusDelayed, 3, 3},
		{transit.StatusCancelled, 12, 0},
		{transit.StatusDelayed, -4, 0},
		{transit.StatusDelayed, 0, 0},
	}
	for i, st := range steps {
		s.UpdateVehicleStatus("bus-1", st.status, st.delay)
		v, _ := s.Vehicle("bus-1")
		assert.Equal(t, st.status, v.Status, "step %d", i)
		assert.Equal(t, st.want, v.DelayMin, "step %d", i)
		for _, veh := range s.Vehicles() {
			if veh.Status != transit.StatusDelayed {
				assert.Zero(t, veh.DelayMin, "step %d vehicle %s", i, veh.ID)
			}
		}
	}
}

func TestNotificationsNewestFirstAndUnique(t *testing.T) {
	// Every call sees the same millisecond.
	s := New(WithClock(fixedClock(t0)))
	const n = 50
	for i := 0; i < n; i++ {
		s.AddNotification(transit.NotificationInput{
			Type:  transit.NotifyArrival,
			Title: transit.LocalizedText{En: fmt.Sprintf("n%d", i)},
		})
	}
	list := s.Notifications()
	require.Len(t, list, n)
	ids := map[string]bool{}
	for i, nt := range list {
		assert.Equal(t, fmt.Sprintf("n%d", n-1-i), nt.Title.En)
		assert.False(t, nt.Read)
		assert.Equal(t, t0, nt.CreatedAt)
		assert.False(t, ids[nt.ID], "duplicate id %s", nt.ID)
		ids[nt.ID] = true
	}
	assert.Equal(t, n, s.UnreadCount())
}

func TestConcurrentNotificationsOrderedByTime(t *testing.T) {
	s := New(WithClock(&stepClock{now: t0, step: time.Millisecond}))
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddNotification(transit.NotificationInput{Type: transit.NotifyArrival})
		}()
	}
	wg.Wait()
	list := s.Notifications()
	require.Len(t, list, 40)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].CreatedAt.After(list[i].CreatedAt), "position %d", i)
	}
}

func TestNotificationCustomIDs(t *testing.T) {
	seq := 0
	rec := &recorder{}
	s := New(WithIDGenerator(func() string { seq++; return fmt.Sprintf("n-%d", seq) }), WithListener(rec))
	a := s.AddNotification(transit.NotificationInput{Type: transit.NotifyDelay})
	b := s.AddNotification(transit.NotificationInput{Type: transit.NotifyServiceAlert})
	assert.Equal(t, "n-1", a.ID)
	assert.Equal(t, "n-2", b.ID)
	assert.Equal(t, []transit.Notification{b, a}, s.Notifications())
	assert.Len(t, rec.notifications, 2)
}

func TestMarkNotificationReadIsolation(t *testing.T) {
	s := New()
	a := s.AddNotification(transit.NotificationInput{Type: transit.NotifyArrival})
	b := s.AddNotification(transit.NotificationInput{Type: transit.NotifyDelay})
	c := s.AddNotification(transit.NotificationInput{Type: transit.NotifyRouteUpdate})

	s.MarkNotificationRead(b.ID)
	s.MarkNotificationRead(b.ID)
	s.MarkNotificationRead("missing")

	read := map[string]bool{}
	for _, nt := range s.Notifications() {
		read[nt.ID] = nt.Read
	}
	assert.Equal(t, map[string]bool{a.ID: false, b.ID: true, c.ID: false}, read)
	assert.Equal(t, 2, s.UnreadCount())
}

func TestLocationAndSelection(t *testing.T) {
	s := New()
	_, ok := s.UserLocation()
	assert.False(t, ok)
	s.SetUserLocation(transit.Coord{Lat: 1, Lng: 2})
	s.SetUserLocation(transit.Coord{Lat: 3, Lng: 4})
	loc, ok := s.UserLocation()
	require.True(t, ok)
	assert.Equal(t, transit.Coord{Lat: 3, Lng: 4}, loc)

	s.SetSelectedRoute("route-101")
	sel, ok := s.SelectedRoute()
	assert.True(t, ok)
	assert.Equal(t, "route-101", sel)
	s.ClearSelectedRoute()
	_, ok = s.SelectedRoute()
	assert.False(t, ok)
}

func TestStrayDelayCleared(t *testing.T) {
	s := New()
	s.Load(transit.Seed{Vehicles: []transit.Vehicle{
		{ID: "bus-1", Status: transit.StatusOnTime, DelayMin: 7},
		{ID: "bus-2", Status: transit.StatusDelayed, DelayMin: 4},
	}})
	v, _ := s.Vehicle("bus-1")
	assert.Zero(t, v.DelayMin)
	v, _ = s.Vehicle("bus-2")
	assert.Equal(t, 4, v.DelayMin)

	s.ReplaceVehicles([]transit.Vehicle{{ID: "bus-3", Status: transit.StatusCancelled, DelayMin: 9}})
	v, _ = s.Vehicle("bus-3")
	assert.Zero(t, v.DelayMin)
}

func TestLoadSwapsNetworkAtOnce(t *testing.T) {
	network := func(tag string) transit.Seed {
		return transit.Seed{
			Routes:   []transit.Route{{ID: "route-" + tag, Number: tag}},
			Stops:    []transit.Stop{{ID: "stop-" + tag, Routes: []string{tag}}},
			Vehicles: []transit.Vehicle{{ID: "bus-" + tag, RouteNumber: tag}},
		}
	}
	s := New()
	s.Load(network("a"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				s.Load(network("b"))
			} else {
				s.Load(network("a"))
			}
		}
	}()
	for {
		snap := s.Snapshot()
		tag := snap.Routes[0].Number
		require.Equal(t, "stop-"+tag, snap.Stops[0].ID)
		require.Equal(t, "bus-"+tag, snap.Vehicles[0].ID)
		select {
		case <-done:
			return
		default:
		}
	}
}

func TestReplaceCollections(t *testing.T) {
	s := seededStore(t)
	in := []transit.Vehicle{{ID: "bus-9", RouteNumber: "999"}}
	s.ReplaceVehicles(in)
	in[0].ID = "mutated"
	vs := s.Vehicles()
	require.Len(t, vs, 1)
	assert.Equal(t, "bus-9", vs[0].ID)

	s.ReplaceRoutes(nil)
	s.ReplaceStops([]transit.Stop{{ID: "stop-9"}})
	snap := s.Snapshot()
	assert.Empty(t, snap.Routes)
	assert.Len(t, snap.Stops, 1)
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := seededStore(t)
	routes := s.Routes()
	routes[0].StopIDs[0] = "changed"
	assert.Equal(t, "stop-1", s.Routes()[0].StopIDs[0])

	snap := s.Snapshot()
	snap.Vehicles[0].Status = transit.StatusCancelled
	v, _ := s.Vehicle(snap.Vehicles[0].ID)
	assert.NotEqual(t, transit.StatusCancelled, v.Status)
}

func TestVehicleForDriver(t *testing.T) {
	s := seededStore(t)
	v, ok := s.VehicleForDriver("driver-1")
	require.True(t, ok)
	assert.Equal(t, "bus-1", v.ID)
	_, ok = s.VehicleForDriver("driver-404")
	assert.False(t, ok)
	_, ok = s.VehicleForDriver("")
	assert.False(t, ok)
}

func TestOccupancyPolicy(t *testing.T) {
	t.Run("allow tolerates overcrowding", func(t *testing.T) {
		s := seededStore(t)
		require.NoError(t, s.SetVehicleOccupancy("bus-1", 55))
		v, _ := s.Vehicle("bus-1")
		assert.Equal(t, 55, v.Occupancy)
		assert.Empty(t, s.OccupancyViolations())
		assert.Error(t, s.SetVehicleOccupancy("bus-1", -1))
	})
	t.Run("capacity rejects without clamping", func(t *testing.T) {
		s := seededStore(t, WithOccupancyPolicy(transit.WithinCapacity))
		err := s.SetVehicleOccupancy("bus-1", 41)
		assert.ErrorIs(t, err, transit.ErrOverCapacity)
		v, _ := s.Vehicle("bus-1")
		assert.Equal(t, 25, v.Occupancy)
		require.NoError(t, s.SetVehicleOccupancy("bus-1", 40))
		assert.NoError(t, s.SetVehicleOccupancy("missing", 1000))
	})
	t.Run("violations after bulk replace", func(t *testing.T) {
		s := New(WithOccupancyPolicy(transit.WithinCapacity))
		s.ReplaceVehicles([]transit.Vehicle{{ID: "a", Capacity: 10, Occupancy: 12}, {ID: "b", Capacity: 10, Occupancy: 3}})
		errs := s.OccupancyViolations()
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], transit.ErrOverCapacity)
	})
}

func TestConcurrentMutations(t *testing.T) {
	s := seededStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.UpdateVehiclePosition("bus-1", float64(i), float64(i))
			s.AddNotification(transit.NotificationInput{Type: transit.NotifyArrival})
			s.AddFavorite("route-101")
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.Notifications(), 20)
	assert.Equal(t, []string{"route-101"}, s.Favorites())
}
