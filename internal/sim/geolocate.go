package sim

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/kolekarsoham270-hash/bustracker/internal/geo"
	"github.com/kolekarsoham270-hash/bustracker/internal/store"
	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

var (
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrLocationUnavailable = errors.New("geolocation unavailable")
)

// Geolocator returns the device position or an error when it cannot.
type Geolocator interface {
	Locate(ctx context.Context) (transit.Coord, error)
}

// GeolocatorFunc adapts a function to Geolocator.
type GeolocatorFunc func(ctx context.Context) (transit.Coord, error)

func (f GeolocatorFunc) Locate(ctx context.Context) (transit.Coord, error) { return f(ctx) }

// WithFallback resolves a position within timeout, substituting fallback
// when the geolocator is nil, fails, or does not answer in time. The
// returned error is the reason the fallback was used, nil otherwise.
func WithFallback(ctx context.Context, g Geolocator, timeout time.Duration, fallback transit.Coord) (transit.Coord, error) {
	if g == nil {
		return fallback, ErrLocationUnavailable
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	type fix struct {
		c   transit.Coord
		err error
	}
	ch := make(chan fix, 1)
	go func() {
		c, err := g.Locate(ctx)
		ch <- fix{c, err}
	}()
	select {
	case <-ctx.Done():
		return fallback, ctx.Err()
	case f := <-ch:
		if f.err != nil {
			return fallback, f.err
		}
		return f.c, nil
	}
}

// RouteWalker is a simulated GPS receiver that travels a polyline back and
// forth at a constant speed, starting at the first point when created.
type RouteWalker struct {
	path     []transit.Coord
	cum      []float64
	speedMps float64
	clock    store.Clock
	start    time.Time
}

func NewRouteWalker(path []transit.Coord, speedKmh float64, clock store.Clock) *RouteWalker {
	if clock == nil {
		clock = store.SystemClock
	}
	return &RouteWalker{
		path:     append([]transit.Coord(nil), path...),
		cum:      geo.CumDistances(path),
		speedMps: speedKmh * 1000 / 3600,
		clock:    clock,
		start:    clock.Now(),
	}
}

func (w *RouteWalker) Locate(ctx context.Context) (transit.Coord, error) {
	if err := ctx.Err(); err != nil {
		return transit.Coord{}, err
	}
	if len(w.path) == 0 {
		return transit.Coord{}, ErrLocationUnavailable
	}
	total := w.cum[len(w.cum)-1]
	if total == 0 || w.speedMps <= 0 {
		return w.path[0], nil
	}
	travelled := w.clock.Now().Sub(w.start).Seconds() * w.speedMps
	d := math.Mod(travelled, 2*total)
	if d > total {
		d = 2*total - d // return leg
	}
	c, _ := geo.Interpolate(w.path, w.cum, d)
	return c, nil
}

// RoutePath returns the stop positions of a route in travel order.
func RoutePath(snap transit.Snapshot, routeNumber string) []transit.Coord {
	stops := snap.StopsOnRoute(routeNumber)
	out := make([]transit.Coord, 0, len(stops))
	for _, st := range stops {
		out = append(out, st.Position)
	}
	return out
}

// RouteWalkers returns a Settings.LocatorFor that walks each driver along
// the stops of their vehicle's route. Drivers without a vehicle, or whose
// route has no stops, get nil.
func RouteWalkers(s *store.Store, speedKmh float64, clock store.Clock) func(driverID string) Geolocator {
	return func(driverID string) Geolocator {
		v, ok := s.VehicleForDriver(driverID)
		if !ok {
			return nil
		}
		path := RoutePath(s.Snapshot(), v.RouteNumber)
		if len(path) == 0 {
			return nil
		}
		return NewRouteWalker(path, speedKmh, clock)
	}
}
