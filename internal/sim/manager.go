package sim

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	mmetrics "github.com/kolekarsoham270-hash/bustracker/internal/metrics"
	"github.com/kolekarsoham270-hash/bustracker/internal/store"
	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

const (
	kindPosition = "position"
	kindArrivals = "arrivals"
)

type Settings struct {
	PositionInterval time.Duration
	ArrivalInterval  time.Duration
	LocateTimeout    time.Duration
	ArrivalThreshold float64
	Fallback         transit.Coord

	// LocatorFor, when set, supplies the geolocator of one driver's feed.
	// A nil result falls back to the manager's shared geolocator.
	LocatorFor func(driverID string) Geolocator
}

// Manager runs the timer loops that feed the store: one position feed per
// driver and one arrival watch per route. Each loop is owned by whoever
// started it and stops when its context ends or its Loop is stopped.
type Manager struct {
	store    *store.Store
	locator  Geolocator
	settings Settings
	metrics  *mmetrics.Collector

	mu      sync.Mutex
	running map[string]*Loop // kind:key -> loop
	wg      sync.WaitGroup
}

func NewManager(s *store.Store, locator Geolocator, settings Settings, metrics *mmetrics.Collector) *Manager {
	if settings.PositionInterval <= 0 {
		settings.PositionInterval = 10 * time.Second
	}
	if settings.ArrivalInterval <= 0 {
		settings.ArrivalInterval = 30 * time.Second
	}
	if settings.ArrivalThreshold <= 0 {
		settings.ArrivalThreshold = DefaultArrivalThreshold
	}
	return &Manager{
		store:    s,
		locator:  locator,
		settings: settings,
		metrics:  metrics,
		running:  make(map[string]*Loop),
	}
}

// Loop is a handle on one running timer loop.
type Loop struct {
	key    string
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the loop and waits for its goroutine to exit. After Stop
// returns the loop makes no further store mutations.
func (l *Loop) Stop() {
	l.cancel()
	<-l.done
}

func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) Key() string { return l.key }

// StartPositionFeed refreshes the position of the vehicle assigned to
// driverID every PositionInterval. Starting a feed that is already running
// returns the existing loop.
func (m *Manager) StartPositionFeed(ctx context.Context, driverID string) *Loop {
	m.mu.Lock()
	l, running := m.running[kindPosition+":"+driverID]
	m.mu.Unlock()
	if running {
		return l
	}
	g := m.locatorFor(driverID)
	return m.startLoop(ctx, kindPosition, driverID, m.settings.PositionInterval, func(ctx context.Context) {
		m.positionTick(ctx, driverID, g)
	})
}

// StartArrivalWatch checks routeNumber (every route when empty) for
// arrivals every ArrivalInterval.
func (m *Manager) StartArrivalWatch(ctx context.Context, routeNumber string) *Loop {
	w := NewArrivalWatcher(m.store, routeNumber, m.settings.ArrivalThreshold)
	key := routeNumber
	if key == "" {
		key = "*"
	}
	return m.startLoop(ctx, kindArrivals, key, m.settings.ArrivalInterval, func(context.Context) {
		if n := w.Check(); len(n) > 0 {
			log.Printf("arrival watch %s: %d arrival(s)", key, len(n))
			if m.metrics != nil {
				m.metrics.ArrivalsDetected.Add(float64(len(n)))
			}
		}
	})
}

// StopPositionFeed stops the feed for driverID if it is running.
func (m *Manager) StopPositionFeed(driverID string) bool {
	return m.stopLoop(kindPosition + ":" + driverID)
}

// StopArrivalWatch stops the watch for routeNumber if it is running.
func (m *Manager) StopArrivalWatch(routeNumber string) bool {
	if routeNumber == "" {
		routeNumber = "*"
	}
	return m.stopLoop(kindArrivals + ":" + routeNumber)
}

// Running lists the keys of the running loops.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.running))
	for k := range m.running {
		keys = append(keys, k)
	}
	return keys
}

// PositionTick moves the driver's vehicle to the current geolocation fix,
// or to the fallback coordinate when no fix is available. It reports false
// when no vehicle is assigned to the driver or ctx ends during the lookup,
// in which case the store is left untouched.
func (m *Manager) PositionTick(ctx context.Context, driverID string) (transit.Coord, bool) {
	return m.positionTick(ctx, driverID, m.locatorFor(driverID))
}

func (m *Manager) positionTick(ctx context.Context, driverID string, g Geolocator) (transit.Coord, bool) {
	v, ok := m.store.VehicleForDriver(driverID)
	if !ok {
		return transit.Coord{}, false
	}
	c, err := WithFallback(ctx, g, m.settings.LocateTimeout, m.settings.Fallback)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return transit.Coord{}, false
	}
	source := "gps"
	if err != nil {
		source = "fallback"
		log.Printf("geolocation for %s failed, using fallback: %v", driverID, err)
	}
	m.store.UpdateVehiclePosition(v.ID, c.Lat, c.Lng)
	if m.metrics != nil {
		m.metrics.PositionUpdates.WithLabelValues(source).Inc()
	}
	return c, true
}

func (m *Manager) locatorFor(driverID string) Geolocator {
	if m.settings.LocatorFor != nil {
		if g := m.settings.LocatorFor(driverID); g != nil {
			return g
		}
	}
	return m.locator
}

func (m *Manager) startLoop(parent context.Context, kind, id string, interval time.Duration, tick func(context.Context)) *Loop {
	key := kind + ":" + id
	m.mu.Lock()
	if l, exists := m.running[key]; exists {
		m.mu.Unlock()
		return l
	}
	ctx, cancel := context.WithCancel(parent)
	l := &Loop{key: key, cancel: cancel, done: make(chan struct{})}
	m.running[key] = l
	m.wg.Add(1)
	if m.metrics != nil {
		m.metrics.LoopsStarted.WithLabelValues(kind).Inc()
		m.metrics.ActiveLoops.Set(float64(len(m.running)))
	}
	m.mu.Unlock()

	log.Printf("starting %s loop every %s", key, interval)
	go func() {
		defer m.wg.Done()
		defer close(l.done)
		defer func() {
			m.mu.Lock()
			if m.running[key] == l {
				delete(m.running, key)
			}
			if m.metrics != nil {
				m.metrics.LoopsStopped.WithLabelValues(kind).Inc()
				m.metrics.ActiveLoops.Set(float64(len(m.running)))
			}
			m.mu.Unlock()
			log.Printf("stopped %s loop", key)
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			// a tick racing with cancellation must not mutate the store
			if ctx.Err() != nil {
				return
			}
			start := time.Now()
			tick(ctx)
			if m.metrics != nil {
				m.metrics.TickDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
			}
		}
	}()
	return l
}

func (m *Manager) stopLoop(key string) bool {
	m.mu.Lock()
	l, ok := m.running[key]
	m.mu.Unlock()
	if !ok {
		return false
	}
	l.Stop()
	return true
}

// Stop cancels every loop and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	for _, l := range m.running {
		l.cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}
