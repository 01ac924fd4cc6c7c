package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolekarsoham270-hash/bustracker/internal/metrics"
	"github.com/kolekarsoham270-hash/bustracker/internal/seed"
	"github.com/kolekarsoham270-hash/bustracker/internal/store"
	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

var fallback = transit.Coord{Lat: 26.9124, Lng: 75.7873}

func jaipurStore(t *testing.T) *store.Store {
	t.Helper()
	sd, err := seed.Default()
	require.NoError(t, err)
	s := store.New()
	s.Load(sd)
	return s
}

func fixedLocator(c transit.Coord) GeolocatorFunc {
	return func(context.Context) (transit.Coord, error) { return c, nil }
}

func TestWithFallback(t *testing.T) {
	ctx := context.Background()
	fix := transit.Coord{Lat: 26.95, Lng: 75.80}

	t.Run("nil geolocator", func(t *testing.T) {
		c, err := WithFallback(ctx, nil, time.Second, fallback)
		assert.ErrorIs(t, err, ErrLocationUnavailable)
		assert.Equal(t, fallback, c)
	})

	t.Run("denied", func(t *testing.T) {
		g := GeolocatorFunc(func(context.Context) (transit.Coord, error) {
			return transit.Coord{}, ErrPermissionDenied
		})
		c, err := WithFallback(ctx, g, time.Second, fallback)
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.Equal(t, fallback, c)
	})

	t.Run("timeout", func(t *testing.T) {
		g := GeolocatorFunc(func(ctx context.Context) (transit.Coord, error) {
			<-ctx.Done()
			time.Sleep(5 * time.Millisecond)
			return fix, nil
		})
		c, err := WithFallback(ctx, g, 10*time.Millisecond, fallback)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, fallback, c)
	})

	t.Run("fix", func(t *testing.T) {
		c, err := WithFallback(ctx, fixedLocator(fix), time.Second, fallback)
		require.NoError(t, err)
		assert.Equal(t, fix, c)
	})
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRouteWalker(t *testing.T) {
	clk := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	path := []transit.Coord{{Lat: 26.90, Lng: 75.80}, {Lat: 26.90, Lng: 75.81}}
	w := NewRouteWalker(path, 36, clk) // 10 m/s
	ctx := context.Background()
	total := w.cum[len(w.cum)-1]
	leg := time.Duration(total / 10 * float64(time.Second))

	c, err := w.Locate(ctx)
	require.NoError(t, err)
	assert.Equal(t, path[0], c)

	clk.Advance(leg / 2)
	c, _ = w.Locate(ctx)
	assert.InDelta(t, 75.805, c.Lng, 1e-6)

	clk.Advance(leg / 2)
	c, _ = w.Locate(ctx)
	assert.InDelta(t, 75.81, c.Lng, 1e-6)

	// walks back on the return leg
	clk.Advance(leg / 4)
	c, _ = w.Locate(ctx)
	assert.InDelta(t, 75.8075, c.Lng, 1e-6)

	clk.Advance(3 * leg / 4)
	c, _ = w.Locate(ctx)
	assert.InDelta(t, 75.80, c.Lng, 1e-6)
}

func TestRouteWalkerDegenerate(t *testing.T) {
	ctx := context.Background()
	_, err := NewRouteWalker(nil, 30, nil).Locate(ctx)
	assert.ErrorIs(t, err, ErrLocationUnavailable)

	one := []transit.Coord{fallback}
	c, err := NewRouteWalker(one, 30, nil).Locate(ctx)
	require.NoError(t, err)
	assert.Equal(t, fallback, c)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewRouteWalker(one, 30, nil).Locate(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRoutePath(t *testing.T) {
	s := jaipurStore(t)
	path := RoutePath(s.Snapshot(), "101")
	require.Len(t, path, 3)
	assert.Equal(t, fallback, path[0])
	assert.Equal(t, transit.Coord{Lat: 26.9855, Lng: 75.8513}, path[2])
	assert.Empty(t, RoutePath(s.Snapshot(), "999"))
}

func TestRouteWalkers(t *testing.T) {
	s := jaipurStore(t)
	clk := &manualClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	walkers := RouteWalkers(s, 30, clk)

	assert.Nil(t, walkers("nobody"))
	g := walkers("driver-2")
	require.NotNil(t, g)
	c, err := g.Locate(context.Background())
	require.NoError(t, err)
	// route 102 starts at stop-1
	assert.Equal(t, fallback, c)

	m := NewManager(s, nil, Settings{LocatorFor: walkers, Fallback: transit.Coord{Lat: 1, Lng: 1}}, nil)
	got, ok := m.PositionTick(context.Background(), "driver-3")
	require.True(t, ok)
	assert.Equal(t, transit.Coord{Lat: 26.8242, Lng: 75.8122}, got)
}

func TestArrivalWatcherEdgeTriggered(t *testing.T) {
	s := jaipurStore(t)
	w := NewArrivalWatcher(s, "101", 0)

	// bus-1 starts on top of stop-1
	got := w.Check()
	require.Len(t, got, 1)
	assert.Equal(t, transit.NotifyArrival, got[0].Type)
	assert.Equal(t, "Bus 101 is arriving at Jaipur Railway Station", got[0].Message.En)
	assert.Equal(t, "बस 101 जयपुर रेलवे स्टेशन पर पहुंच रही है", got[0].Message.Hi)

	// still there
	assert.Empty(t, w.Check())

	s.UpdateVehiclePosition("bus-1", 26.95, 75.80)
	assert.Empty(t, w.Check())

	s.UpdateVehiclePosition("bus-1", 26.9239, 75.8267)
	got = w.Check()
	require.Len(t, got, 1)
	assert.Equal(t, "Bus 101 is arriving at Hawa Mahal", got[0].Message.En)

	// leaving and coming back re-arms the pair
	s.UpdateVehiclePosition("bus-1", 26.95, 75.80)
	assert.Empty(t, w.Check())
	s.UpdateVehiclePosition("bus-1", 26.9239, 75.8267)
	assert.Len(t, w.Check(), 1)

	assert.Len(t, s.Notifications(), 3)
	assert.Equal(t, 3, s.UnreadCount())
}

func TestArrivalWatcherIgnoresCancelled(t *testing.T) {
	s := jaipurStore(t)
	s.UpdateVehicleStatus("bus-1", transit.StatusCancelled, 0)
	w := NewArrivalWatcher(s, "101", DefaultArrivalThreshold)
	assert.Empty(t, w.Check())
	s.UpdateVehiclePosition("bus-1", 26.9855, 75.8513)
	assert.Empty(t, w.Check())
	assert.Empty(t, s.Notifications())
}

func TestArrivalWatcherAllRoutes(t *testing.T) {
	s := jaipurStore(t)
	w := NewArrivalWatcher(s, "", DefaultArrivalThreshold)
	assert.Len(t, w.Check(), 1)

	s.UpdateVehiclePosition("bus-3", 26.8242, 75.8122)
	got := w.Check()
	require.Len(t, got, 1)
	assert.Equal(t, "Bus 201 is arriving at Jaipur Airport", got[0].Message.En)
}

func TestPositionTick(t *testing.T) {
	s := jaipurStore(t)
	c := metrics.NewCollector(time.Second, time.Second, DefaultArrivalThreshold)
	denied := GeolocatorFunc(func(context.Context) (transit.Coord, error) {
		return transit.Coord{}, ErrPermissionDenied
	})
	m := NewManager(s, denied, Settings{LocateTimeout: time.Second, Fallback: fallback}, c)

	got, ok := m.PositionTick(context.Background(), "driver-2")
	require.True(t, ok)
	assert.Equal(t, fallback, got)
	v, _ := s.Vehicle("bus-2")
	assert.Equal(t, fallback, v.Position)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PositionUpdates.WithLabelValues("fallback")))

	_, ok = m.PositionTick(context.Background(), "nobody")
	assert.False(t, ok)
}

func TestPositionFeedStops(t *testing.T) {
	s := jaipurStore(t)
	var calls atomic.Int64
	fix := transit.Coord{Lat: 26.93, Lng: 75.81}
	g := GeolocatorFunc(func(context.Context) (transit.Coord, error) {
		calls.Add(1)
		return fix, nil
	})
	m := NewManager(s, g, Settings{PositionInterval: 5 * time.Millisecond}, nil)

	loop := m.StartPositionFeed(context.Background(), "driver-1")
	assert.Same(t, loop, m.StartPositionFeed(context.Background(), "driver-1"))
	assert.Equal(t, "position:driver-1", loop.Key())

	require.Eventually(t, func() bool {
		v, _ := s.Vehicle("bus-1")
		return v.Position == fix
	}, time.Second, time.Millisecond)

	loop.Stop()
	before := calls.Load()
	v1, _ := s.Vehicle("bus-1")
	time.Sleep(30 * time.Millisecond)
	v2, _ := s.Vehicle("bus-1")
	assert.Equal(t, before, calls.Load())
	assert.Equal(t, v1.LastUpdated, v2.LastUpdated)
	assert.Empty(t, m.Running())
}

func TestStopDuringLookupLeavesVehicle(t *testing.T) {
	s := jaipurStore(t)
	start := transit.Coord{Lat: 10, Lng: 10}
	s.UpdateVehiclePosition("bus-1", start.Lat, start.Lng)
	before, _ := s.Vehicle("bus-1")

	c := metrics.NewCollector(time.Second, time.Second, DefaultArrivalThreshold)
	locating := make(chan struct{}, 1)
	g := GeolocatorFunc(func(ctx context.Context) (transit.Coord, error) {
		select {
		case locating <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return transit.Coord{}, ctx.Err()
	})
	m := NewManager(s, g, Settings{
		PositionInterval: 5 * time.Millisecond,
		LocateTimeout:    time.Hour,
		Fallback:         fallback,
	}, c)

	loop := m.StartPositionFeed(context.Background(), "driver-1")
	select {
	case <-locating:
	case <-time.After(time.Second):
		t.Fatal("no lookup started")
	}
	loop.Stop()

	after, _ := s.Vehicle("bus-1")
	assert.Equal(t, start, after.Position)
	assert.Equal(t, before.LastUpdated, after.LastUpdated)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.PositionUpdates.WithLabelValues("fallback")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := m.PositionTick(ctx, "driver-1")
	assert.False(t, ok)
	after, _ = s.Vehicle("bus-1")
	assert.Equal(t, start, after.Position)
}

func TestManagerStop(t *testing.T) {
	s := jaipurStore(t)
	c := metrics.NewCollector(time.Second, time.Second, DefaultArrivalThreshold)
	m := NewManager(s, fixedLocator(fallback), Settings{
		PositionInterval: time.Hour,
		ArrivalInterval:  5 * time.Millisecond,
	}, c)

	m.StartPositionFeed(context.Background(), "driver-1")
	m.StartArrivalWatch(context.Background(), "101")
	assert.ElementsMatch(t, []string{"position:driver-1", "arrivals:101"}, m.Running())

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.ArrivalsDetected) == 1
	}, time.Second, time.Millisecond)
	assert.Len(t, s.Notifications(), 1)

	assert.True(t, m.StopArrivalWatch("101"))
	assert.False(t, m.StopArrivalWatch("101"))

	m.Stop()
	assert.Empty(t, m.Running())
	assert.Equal(t, 0.0, testutil.ToFloat64(c.ActiveLoops))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.LoopsStopped.WithLabelValues("position")))
}

func TestLoopStopsWithContext(t *testing.T) {
	s := jaipurStore(t)
	m := NewManager(s, nil, Settings{ArrivalInterval: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	loop := m.StartArrivalWatch(ctx, "")
	assert.Equal(t, "arrivals:*", loop.Key())
	cancel()
	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}
