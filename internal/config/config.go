package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

type Config struct {
	DatabaseURL string
	SeedFile    string

	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool

	PositionInterval time.Duration
	ArrivalInterval  time.Duration
	ArrivalThreshold float64
	LocateTimeout    time.Duration
	Fallback         transit.Coord
	SimSpeedKmh      float64
	DriverID         string
	WatchRoute       string

	HTTPAddr        string
	CORSOrigins     []string
	MetricsAddr     string
	DefaultLanguage string
	OccupancyPolicy string
	Location        *time.Location
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{}
	var err error

	// Optional SQL seed source; empty means the YAML seed is used
	cfg.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN"))
	cfg.SeedFile = os.Getenv("SEED_FILE")

	// Empty NATS_URL disables the event publisher
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "bustracker")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	if cfg.PositionInterval, err = positiveInt("POSITION_INTERVAL_MS", 10000, time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.ArrivalInterval, err = positiveInt("ARRIVAL_CHECK_INTERVAL_SEC", 30, time.Second); err != nil {
		return nil, err
	}
	if cfg.LocateTimeout, err = positiveInt("GEOLOCATION_TIMEOUT_MS", 2000, time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.ArrivalThreshold, err = positiveFloat("ARRIVAL_THRESHOLD_DEG", 0.001); err != nil {
		return nil, err
	}
	if cfg.SimSpeedKmh, err = positiveFloat("SIM_SPEED_KMH", 30); err != nil {
		return nil, err
	}

	// Fallback coordinate used when no geolocation fix is available
	cfg.Fallback = transit.Coord{Lat: 26.9124, Lng: 75.7873}
	if v := os.Getenv("FALLBACK_LAT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < -90 || f > 90 {
			return nil, fmt.Errorf("invalid FALLBACK_LAT: %q", v)
		}
		cfg.Fallback.Lat = f
	}
	if v := os.Getenv("FALLBACK_LNG"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < -180 || f > 180 {
			return nil, fmt.Errorf("invalid FALLBACK_LNG: %q", v)
		}
		cfg.Fallback.Lng = f
	}

	cfg.DriverID = getenvDefault("DRIVER_ID", "driver-1")
	cfg.WatchRoute = strings.TrimSpace(os.Getenv("WATCH_ROUTE"))

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")
	cfg.CORSOrigins = splitList(getenvDefault("CORS_ORIGINS", "*"))

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.DefaultLanguage = strings.ToLower(getenvDefault("DEFAULT_LANGUAGE", "en"))
	switch cfg.DefaultLanguage {
	case "en", "hi":
	default:
		return nil, fmt.Errorf("invalid DEFAULT_LANGUAGE: %q", cfg.DefaultLanguage)
	}

	cfg.OccupancyPolicy = strings.ToLower(getenvDefault("OCCUPANCY_POLICY", "allow"))
	if _, err := transit.ParseOccupancyPolicy(cfg.OccupancyPolicy); err != nil {
		return nil, fmt.Errorf("invalid OCCUPANCY_POLICY: %q", cfg.OccupancyPolicy)
	}

	// Time zone
	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

func positiveInt(key string, def int, unit time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * unit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(n) * unit, nil
}

func positiveFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
