package db

import (
	"fmt"
	"net/url"
	"strings"
)

// Driver picks the database/sql driver for a DSN. postgres:// and
// postgresql:// URLs go to pgx; sqlite://path, file: URIs and :memory: go
// to the pure-Go sqlite driver. A bare keyword DSN ("host=... dbname=...")
// is handed to pgx unchanged.
func Driver(dsn string) (driver, source string, err error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", "", fmt.Errorf("empty DSN")
	}
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return "sqlite", dsn, nil
	}
	if !strings.Contains(dsn, "://") {
		return "pgx", dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", "", err
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return "pgx", dsn, nil
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(dsn, u.Scheme+"://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite DSN without a path: %q", dsn)
		}
		return "sqlite", path, nil
	}
	return "", "", fmt.Errorf("unsupported DSN scheme %q", u.Scheme)
}
