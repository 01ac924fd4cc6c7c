package geo

import (
	"math"

	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

// Degrees is the straight-line distance between two points measured on raw
// latitude/longitude degrees. It is not a geodesic distance.
func Degrees(a, b transit.Coord) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

// Haversine distance in meters
func Haversine(a, b transit.Coord) float64 {
	const R = 6371000.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}

// CumDistances returns the cumulative haversine distance in meters at each
// point of a polyline.
func CumDistances(pts []transit.Coord) []float64 {
	n := len(pts)
	if n == 0 {
		return nil
	}
	cum := make([]float64, n)
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += Haversine(pts[i-1], pts[i])
		cum[i] = sum
	}
	return cum
}

// Interpolate returns the point at dist meters along the polyline and the
// bearing of the segment it lies on. dist is clamped to the polyline.
func Interpolate(pts []transit.Coord, cum []float64, dist float64) (transit.Coord, float64) {
	n := len(pts)
	if n == 0 {
		return transit.Coord{}, 0
	}
	if n == 1 || cum[n-1] == 0 {
		return pts[0], 0
	}
	if dist <= 0 {
		return pts[0], Bearing(pts[0], pts[1])
	}
	if dist >= cum[n-1] {
		return pts[n-1], Bearing(pts[n-2], pts[n-1])
	}
	// find segment
	i := 1
	for i < n && cum[i] < dist {
		i++
	}
	p0, p1 := pts[i-1], pts[i]
	d0, d1 := cum[i-1], cum[i]
	if d1 == d0 {
		return p0, Bearing(p0, p1)
	}
	frac := (dist - d0) / (d1 - d0)
	return transit.Coord{
		Lat: p0.Lat + (p1.Lat-p0.Lat)*frac,
		Lng: p0.Lng + (p1.Lng-p0.Lng)*frac,
	}, Bearing(p0, p1)
}

// Bearing in degrees clockwise from north, 0..360.
func Bearing(a, b transit.Coord) float64 {
	y := math.Sin((b.Lng-a.Lng)*math.Pi/180.0) * math.Cos(b.Lat*math.Pi/180.0)
	x := math.Cos(a.Lat*math.Pi/180.0)*math.Sin(b.Lat*math.Pi/180.0) - math.Sin(a.Lat*math.Pi/180.0)*math.Cos(b.Lat*math.Pi/180.0)*math.Cos((b.Lng-a.Lng)*math.Pi/180.0)
	brng := math.Atan2(y, x) * 180.0 / math.Pi
	if brng < 0 {
		brng += 360
	}
	return brng
}
