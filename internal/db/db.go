package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

func Open(dsn string) (*sql.DB, error) {
	driver, source, err := Driver(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// every new connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Schema is the table layout LoadSeed reads. It is valid for both
// PostgreSQL and SQLite.
const Schema = `
CREATE TABLE IF NOT EXISTS routes (
  id            TEXT PRIMARY KEY,
  number        TEXT NOT NULL,
  name_en       TEXT NOT NULL,
  name_hi       TEXT NOT NULL DEFAULT '',
  origin        TEXT NOT NULL,
  destination   TEXT NOT NULL,
  color         TEXT NOT NULL DEFAULT '',
  fare          DOUBLE PRECISION NOT NULL,
  distance_km   DOUBLE PRECISION NOT NULL,
  duration_min  INTEGER NOT NULL,
  frequency_min INTEGER NOT NULL,
  start_time    TEXT NOT NULL,
  end_time      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS stops (
  id         TEXT PRIMARY KEY,
  name_en    TEXT NOT NULL,
  name_hi    TEXT NOT NULL DEFAULT '',
  lat        DOUBLE PRECISION NOT NULL,
  lng        DOUBLE PRECISION NOT NULL,
  facilities TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS route_stops (
  route_id TEXT NOT NULL,
  stop_id  TEXT NOT NULL,
  seq      INTEGER NOT NULL,
  PRIMARY KEY (route_id, seq)
);
CREATE TABLE IF NOT EXISTS vehicles (
  id           TEXT PRIMARY KEY,
  route_number TEXT NOT NULL,
  lat          DOUBLE PRECISION NOT NULL,
  lng          DOUBLE PRECISION NOT NULL,
  status       TEXT NOT NULL,
  delay_min    INTEGER NOT NULL DEFAULT 0,
  capacity     INTEGER NOT NULL,
  occupancy    INTEGER NOT NULL DEFAULT 0,
  accessible   INTEGER NOT NULL DEFAULT 0,
  driver_id    TEXT
);
CREATE TABLE IF NOT EXISTS imports (
  version     TEXT NOT NULL,
  imported_at TEXT NOT NULL
);
`

// CreateSchema creates the tables if they do not exist.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// LoadSeed reads the whole network from db. Stop membership is derived from
// route_stops, so the result is consistent by construction; it is still
// validated before being returned.
func LoadSeed(ctx context.Context, db *sql.DB) (transit.Seed, error) {
	routes, err := fetchRoutes(ctx, db)
	if err != nil {
		return transit.Seed{}, err
	}
	stops, err := fetchStops(ctx, db)
	if err != nil {
		return transit.Seed{}, err
	}
	if err := attachRouteStops(ctx, db, routes, stops); err != nil {
		return transit.Seed{}, err
	}
	vehicles, err := fetchVehicles(ctx, db)
	if err != nil {
		return transit.Seed{}, err
	}
	seed := transit.Seed{Routes: routes, Stops: stops, Vehicles: vehicles}
	if err := seed.Validate(); err != nil {
		return transit.Seed{}, fmt.Errorf("invalid network in database: %w", err)
	}
	return seed, nil
}

func fetchRoutes(ctx context.Context, db *sql.DB) ([]transit.Route, error) {
	q := `SELECT id, number, name_en, name_hi, origin, destination, color,
                 fare, distance_km, duration_min, frequency_min, start_time, end_time
          FROM routes ORDER BY number, id`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()
	var out []transit.Route
	for rows.Next() {
		var r transit.Route
		if err := rows.Scan(&r.ID, &r.Number, &r.Name.En, &r.Name.Hi, &r.Origin, &r.Destination, &r.Color,
			&r.Fare, &r.DistanceKm, &r.DurationMin, &r.FrequencyMin, &r.Hours.Start, &r.Hours.End); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func fetchStops(ctx context.Context, db *sql.DB) ([]transit.Stop, error) {
	q := `SELECT id, name_en, name_hi, lat, lng, facilities FROM stops ORDER BY id`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()
	var out []transit.Stop
	for rows.Next() {
		var st transit.Stop
		var facilities string
		if err := rows.Scan(&st.ID, &st.Name.En, &st.Name.Hi, &st.Position.Lat, &st.Position.Lng, &facilities); err != nil {
			return nil, err
		}
		st.Facilities = splitList(facilities)
		out = append(out, st)
	}
	return out, rows.Err()
}

// attachRouteStops fills Route.StopIDs in travel order and Stop.Routes with
// the numbers of the routes serving each stop.
func attachRouteStops(ctx context.Context, db *sql.DB, routes []transit.Route, stops []transit.Stop) error {
	q := `SELECT route_id, stop_id FROM route_stops ORDER BY route_id, seq`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("query route_stops: %w", err)
	}
	defer rows.Close()

	routeIdx := make(map[string]int, len(routes))
	for i, r := range routes {
		routeIdx[r.ID] = i
	}
	stopIdx := make(map[string]int, len(stops))
	for i, st := range stops {
		stopIdx[st.ID] = i
	}
	for rows.Next() {
		var routeID, stopID string
		if err := rows.Scan(&routeID, &stopID); err != nil {
			return err
		}
		ri, ok := routeIdx[routeID]
		if !ok {
			return fmt.Errorf("route_stops references unknown route %q", routeID)
		}
		routes[ri].StopIDs = append(routes[ri].StopIDs, stopID)
		if si, ok := stopIdx[stopID]; ok && !stops[si].Serves(routes[ri].Number) {
			stops[si].Routes = append(stops[si].Routes, routes[ri].Number)
		}
	}
	return rows.Err()
}

func fetchVehicles(ctx context.Context, db *sql.DB) ([]transit.Vehicle, error) {
	q := `SELECT id, route_number, lat, lng, status, delay_min, capacity, occupancy, accessible, driver_id
          FROM vehicles ORDER BY id`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()
	var out []transit.Vehicle
	for rows.Next() {
		var v transit.Vehicle
		var status string
		var accessible int64
		var driver sql.NullString
		if err := rows.Scan(&v.ID, &v.RouteNumber, &v.Position.Lat, &v.Position.Lng, &status,
			&v.DelayMin, &v.Capacity, &v.Occupancy, &accessible, &driver); err != nil {
			return nil, err
		}
		v.Status = transit.Status(status)
		v.Accessible = accessible != 0
		v.DriverID = driver.String
		out = append(out, v)
	}
	return out, rows.Err()
}

// splitList parses a comma-separated column, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
