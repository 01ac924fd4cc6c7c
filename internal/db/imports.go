package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoImport is returned when the imports table is empty.
var ErrNoImport = errors.New("no network import recorded")

// LatestImport returns the version label of the most recent network import.
// Importers append a row to the imports table after writing the network, so
// a changed label means the tables should be reloaded.
func LatestImport(ctx context.Context, db *sql.DB) (string, error) {
	q := `
SELECT version
FROM imports
ORDER BY imported_at DESC
LIMIT 1`
	var version sql.NullString
	if err := db.QueryRowContext(ctx, q).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoImport
		}
		return "", fmt.Errorf("query latest import: %w", err)
	}
	if !version.Valid || version.String == "" {
		return "", fmt.Errorf("latest import has an empty version")
	}
	return version.String, nil
}
