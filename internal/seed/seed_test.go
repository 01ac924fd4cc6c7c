package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

func TestDefault(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)
	assert.Len(t, s.Routes, 3)
	assert.Len(t, s.Stops, 5)
	assert.Len(t, s.Vehicles, 3)

	r := s.Routes[0]
	assert.Equal(t, "101", r.Number)
	assert.Equal(t, "Pink City Express", r.Name.En)
	assert.Equal(t, "पिंक सिटी एक्सप्रेस", r.Name.Hi)
	assert.Equal(t, 12.5, r.DistanceKm)
	assert.Equal(t, transit.OperatingHours{Start: "06:00", End: "22:00"}, r.Hours)
	assert.Equal(t, []string{"stop-1", "stop-2", "stop-4"}, r.StopIDs)

	v := s.Vehicles[1]
	assert.Equal(t, transit.StatusDelayed, v.Status)
	assert.Equal(t, 5, v.DelayMin)
	assert.Equal(t, "driver-2", v.DriverID)
	assert.True(t, v.LastUpdated.IsZero())
}

func TestParseRejectsInconsistentSeed(t *testing.T) {
	doc := `
routes:
  - {id: r1, number: "1", name: {en: One}, origin: A, destination: B, stops: [s1], fare: 1, distance_km: 1, duration_min: 1, frequency_min: 1, hours: {start: "06:00", end: "07:00"}}
stops:
  - {id: s1, name: {en: Stop}, routes: []}
`
	_, err := Parse([]byte(doc))
	assert.Error(t, err)

	_, err = Parse([]byte("routes: {"))
	assert.Error(t, err)
}

func TestParseRejectsDelayOnOnTimeVehicle(t *testing.T) {
	doc := `
vehicles:
  - {id: bus-1, route: "101", position: {lat: 26.9, lng: 75.8}, status: on-time, delay_min: 7, capacity: 40}
`
	_, err := Parse([]byte(doc))
	assert.ErrorContains(t, err, "bus-1")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, jaipur, 0o644))
	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, s.Routes, 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
