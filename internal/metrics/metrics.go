package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveLoops prometheus.Gauge

	LoopsStarted *prometheus.CounterVec // kind label: position|arrivals
	LoopsStopped *prometheus.CounterVec

	PositionUpdates  *prometheus.CounterVec // source label: gps|fallback
	ArrivalsDetected prometheus.Counter
	Notifications    *prometheus.CounterVec // type label
	VehicleUpdates   *prometheus.CounterVec // status label
	VehiclesByStatus *prometheus.GaugeVec   // status label

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	TickDuration    *prometheus.HistogramVec // kind label
	PublishDuration prometheus.Histogram

	PositionInterval prometheus.Gauge // seconds
	ArrivalInterval  prometheus.Gauge // seconds
	ArrivalThreshold prometheus.Gauge // degrees
}

func NewCollector(positionInterval, arrivalInterval time.Duration, arrivalThreshold float64) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveLoops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_loops",
			Help: "Number of running timer loops.",
		}),
		LoopsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_loops_started_total",
			Help: "Total timer loops started.",
		}, []string{"kind"}),
		LoopsStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_loops_stopped_total",
			Help: "Total timer loops stopped.",
		}, []string{"kind"}),
		PositionUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_position_updates_total",
			Help: "Vehicle position updates by coordinate source.",
		}, []string{"source"}),
		ArrivalsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_arrivals_detected_total",
			Help: "Vehicles detected entering a stop's arrival radius.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_notifications_total",
			Help: "Notifications added, by type.",
		}, []string{"type"}),
		VehicleUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_vehicle_updates_total",
			Help: "Vehicle mutations, by resulting status.",
		}, []string{"status"}),
		VehiclesByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracker_vehicles",
			Help: "Vehicles in the store, by status.",
		}, []string{"status"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracker_tick_duration_seconds",
			Help:    "Duration of timer loop ticks.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}, []string{"kind"}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		PositionInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_position_interval_seconds",
			Help: "Position refresh interval in seconds.",
		}),
		ArrivalInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_arrival_interval_seconds",
			Help: "Arrival check interval in seconds.",
		}),
		ArrivalThreshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_arrival_threshold_degrees",
			Help: "Arrival radius in degrees.",
		}),
	}

	reg.MustRegister(
		c.ActiveLoops, c.LoopsStarted, c.LoopsStopped,
		c.PositionUpdates, c.ArrivalsDetected, c.Notifications, c.VehicleUpdates, c.VehiclesByStatus,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.TickDuration, c.PublishDuration,
		c.PositionInterval, c.ArrivalInterval, c.ArrivalThreshold,
	)

	c.PositionInterval.Set(positionInterval.Seconds())
	c.ArrivalInterval.Set(arrivalInterval.Seconds())
	c.ArrivalThreshold.Set(arrivalThreshold)

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
