package query

import "github.com/kolekarsoham270-hash/bustracker/internal/transit"

// FavoritesSummary aggregates the favorite routes. Means are 0 when there
// are no favorites.
type FavoritesSummary struct {
	Count       int     `json:"count"`
	Active      int     `json:"active"`
	MeanFare    float64 `json:"meanFare"`
	MeanMinutes float64 `json:"meanDuration"`
}

// FavoriteRoutes resolves favorite route ids to routes in store route
// order. Ids with no matching route are skipped.
func FavoriteRoutes(snap transit.Snapshot) []transit.Route {
	var out []transit.Route
	for _, r := range snap.Routes {
		if snap.IsFavorite(r.ID) {
			out = append(out, r)
		}
	}
	return out
}

func SummarizeFavorites(snap transit.Snapshot) FavoritesSummary {
	routes := FavoriteRoutes(snap)
	sum := FavoritesSummary{Count: len(routes)}
	if sum.Count == 0 {
		return sum
	}
	var fare, mins float64
	for _, r := range routes {
		fare += r.Fare
		mins += float64(r.DurationMin)
		if hasActiveVehicle(snap, r.Number) {
			sum.Active++
		}
	}
	sum.MeanFare = fare / float64(sum.Count)
	sum.MeanMinutes = mins / float64(sum.Count)
	return sum
}

func hasActiveVehicle(snap transit.Snapshot, number string) bool {
	for _, v := range snap.VehiclesOnRoute(number) {
		if v.Active() {
			return true
		}
	}
	return false
}
