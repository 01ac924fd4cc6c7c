package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/kolekarsoham270-hash/bustracker/internal/api"
	"github.com/kolekarsoham270-hash/bustracker/internal/config"
	"github.com/kolekarsoham270-hash/bustracker/internal/db"
	"github.com/kolekarsoham270-hash/bustracker/internal/locale"
	"github.com/kolekarsoham270-hash/bustracker/internal/metrics"
	"github.com/kolekarsoham270-hash/bustracker/internal/publisher"
	"github.com/kolekarsoham270-hash/bustracker/internal/seed"
	"github.com/kolekarsoham270-hash/bustracker/internal/sim"
	"github.com/kolekarsoham270-hash/bustracker/internal/store"
	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

// dbRefreshInterval is how often the SQL network source is checked for a
// newer import.
const dbRefreshInterval = 30 * time.Minute

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clock := store.ClockFunc(func() time.Time { return time.Now().In(cfg.Location) })

	// Network source: SQL database, YAML file or the built-in Jaipur network
	var sqlDB *sql.DB
	var network transit.Seed
	var importVersion string
	switch {
	case cfg.DatabaseURL != "":
		sqlDB, err = db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		defer sqlDB.Close()
		if err := db.Ping(ctx, sqlDB); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		network, err = db.LoadSeed(ctx, sqlDB)
		if err != nil {
			log.Fatalf("load network from database: %v", err)
		}
		importVersion = latestImport(ctx, sqlDB)
		log.Printf("loaded network from database (import %q)", importVersion)
	case cfg.SeedFile != "":
		network, err = seed.LoadFile(cfg.SeedFile)
		if err != nil {
			log.Fatalf("load seed file %s: %v", cfg.SeedFile, err)
		}
		log.Printf("loaded network from %s", cfg.SeedFile)
	default:
		network, err = seed.Default()
		if err != nil {
			log.Fatalf("load built-in network: %v", err)
		}
	}
	log.Printf("network: %d routes, %d stops, %d vehicles", len(network.Routes), len(network.Stops), len(network.Vehicles))

	// Metrics setup
	var mcol *metrics.Collector
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.PositionInterval, cfg.ArrivalInterval, cfg.ArrivalThreshold)
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	policy, err := transit.ParseOccupancyPolicy(cfg.OccupancyPolicy)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	opts := []store.Option{store.WithClock(clock), store.WithOccupancyPolicy(policy)}

	var st *store.Store
	if mcol != nil {
		opts = append(opts, store.WithListener(mcol.StoreListener(func() []transit.Vehicle { return st.Vehicles() })))
	}

	// Optional NATS fan-out of vehicle changes and notifications
	var pub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		pub, err = publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		opts = append(opts, store.WithListener(pub))
	}

	st = store.New(opts...)
	st.Load(network)
	if mcol != nil {
		mcol.SetVehicleCounts(st.Vehicles())
	}
	if errs := st.OccupancyViolations(); len(errs) > 0 {
		log.Printf("%d vehicle(s) violate the %s occupancy policy", len(errs), cfg.OccupancyPolicy)
	}

	lang := locale.Language(cfg.DefaultLanguage)
	loc := locale.New(lang, nil)

	mgr := sim.NewManager(st, nil, sim.Settings{
		PositionInterval: cfg.PositionInterval,
		ArrivalInterval:  cfg.ArrivalInterval,
		LocateTimeout:    cfg.LocateTimeout,
		ArrivalThreshold: cfg.ArrivalThreshold,
		Fallback:         cfg.Fallback,
		LocatorFor:       sim.RouteWalkers(st, cfg.SimSpeedKmh, clock),
	}, mcol)

	if _, ok := st.VehicleForDriver(cfg.DriverID); ok {
		mgr.StartPositionFeed(ctx, cfg.DriverID)
	} else if cfg.DriverID != "" {
		log.Printf("driver %q has no bus assigned; position feed not started", cfg.DriverID)
	}
	if cfg.WatchRoute != "" {
		if number, ok := resolveRoute(st.Snapshot(), cfg.WatchRoute); ok {
			mgr.StartArrivalWatch(ctx, number)
		} else {
			log.Printf("WATCH_ROUTE %q matches no route; arrival watch not started", cfg.WatchRoute)
		}
	}

	// Reload the network when a newer import lands in the database
	var done chan struct{}
	if sqlDB != nil {
		done = make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(dbRefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
				if err := db.Ping(ctx, sqlDB); err != nil {
					log.Printf("db ping failed: %v", err)
					continue
				}
				version := latestImport(ctx, sqlDB)
				if version == "" || version == importVersion {
					continue
				}
				next, err := db.LoadSeed(ctx, sqlDB)
				if err != nil {
					log.Printf("reload network for import %q: %v", version, err)
					continue
				}
				reloadNetwork(st, next, mcol)
				log.Printf("network reloaded: import %q -> %q", importVersion, version)
				importVersion = version
			}
		}()
	}

	srv := api.NewServer(ctx, st, loc, mgr, cfg.Fallback)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
			cancel()
		}
	}()
	log.Printf("http listening on %s", cfg.HTTPAddr)

	// Block until context cancelled
	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = httpSrv.Shutdown(shutdownCtx)
	mgr.Stop()
	if done != nil {
		<-done
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Println("shutdown complete")
}

func latestImport(ctx context.Context, sqlDB *sql.DB) string {
	v, err := db.LatestImport(ctx, sqlDB)
	if err != nil && !errors.Is(err, db.ErrNoImport) {
		log.Printf("latest import: %v", err)
	}
	return v
}

// resolveRoute accepts a route id or a route number and returns the number.
func resolveRoute(snap transit.Snapshot, ref string) (string, bool) {
	if r, ok := snap.RouteByID(ref); ok {
		return r.Number, true
	}
	if r, ok := snap.RouteByNumber(ref); ok {
		return r.Number, true
	}
	return "", false
}

// reloadNetwork swaps stops, routes and vehicles in one step so readers
// never see a mix of the old and new network.
func reloadNetwork(st *store.Store, next transit.Seed, mcol *metrics.Collector) {
	st.Load(next)
	if mcol != nil {
		mcol.SetVehicleCounts(st.Vehicles())
	}
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
