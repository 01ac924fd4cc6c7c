// Package query computes read-only views over a transit.Snapshot. Nothing
// here holds state; every result is recomputed from the snapshot it is given.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

type SortKey string

const (
	SortNone      SortKey = ""
	SortFare      SortKey = "fare"
	SortDuration  SortKey = "duration"
	SortFrequency SortKey = "frequency"
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, SortFare, SortDuration, SortFrequency:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// RouteFilter selects routes. Empty fields do not constrain.
type RouteFilter struct {
	Query          string
	Origin         string
	Destination    string
	AccessibleOnly bool
	Sort           SortKey
}

// SearchRoutes returns the routes whose name, number, origin or destination
// contain the query case-insensitively, that match the origin and
// destination filters exactly, and (when AccessibleOnly) that have at least
// one accessible vehicle. Results are stably sorted ascending by the chosen
// key.
func SearchRoutes(snap transit.Snapshot, f RouteFilter) []transit.Route {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	var out []transit.Route
	for _, r := range snap.Routes {
		if q != "" && !matchesQuery(r, q) {
			continue
		}
		if f.Origin != "" && r.Origin != f.Origin {
			continue
		}
		if f.Destination != "" && r.Destination != f.Destination {
			continue
		}
		if f.AccessibleOnly && !hasAccessibleVehicle(snap, r.Number) {
			continue
		}
		out = append(out, r)
	}

	var key func(r transit.Route) float64
	switch f.Sort {
	case SortFare:
		key = func(r transit.Route) float64 { return r.Fare }
	case SortDuration:
		key = func(r transit.Route) float64 { return float64(r.DurationMin) }
	case SortFrequency:
		key = func(r transit.Route) float64 { return float64(r.FrequencyMin) }
	}
	if key != nil {
		sort.SliceStable(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	}
	return out
}

func matchesQuery(r transit.Route, q string) bool {
	for _, field := range []string{r.Name.En, r.Number, r.Origin, r.Destination} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func hasAccessibleVehicle(snap transit.Snapshot, number string) bool {
	for _, v := range snap.VehiclesOnRoute(number) {
		if v.Accessible {
			return true
		}
	}
	return false
}

// Origins lists the distinct route origins in ascending order.
func Origins(snap transit.Snapshot) []string {
	return distinct(snap.Routes, func(r transit.Route) string { return r.Origin })
}

// Destinations lists the distinct route destinations in ascending order.
func Destinations(snap transit.Snapshot) []string {
	return distinct(snap.Routes, func(r transit.Route) string { return r.Destination })
}

func distinct(routes []transit.Route, field func(transit.Route) string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range routes {
		v := field(r)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
