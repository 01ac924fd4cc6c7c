package sim

import (
	"fmt"
	"sync"

	"github.com/kolekarsoham270-hash/bustracker/internal/geo"
	"github.com/kolekarsoham270-hash/bustracker/internal/store"
	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

// DefaultArrivalThreshold is roughly 100m expressed in degrees.
const DefaultArrivalThreshold = 0.001

type pairKey struct{ vehicle, stop string }

// ArrivalWatcher emits an arrival notification when a vehicle comes within
// threshold of a stop on its route. It remembers which vehicle/stop pairs
// were inside the threshold on the previous check and only notifies on the
// outside-to-inside transition, so a bus waiting at a stop is reported once.
type ArrivalWatcher struct {
	store       *store.Store
	routeNumber string // empty watches every route
	threshold   float64

	mu     sync.Mutex
	inside map[pairKey]bool
}

func NewArrivalWatcher(s *store.Store, routeNumber string, threshold float64) *ArrivalWatcher {
	if threshold <= 0 {
		threshold = DefaultArrivalThreshold
	}
	return &ArrivalWatcher{
		store:       s,
		routeNumber: routeNumber,
		threshold:   threshold,
		inside:      make(map[pairKey]bool),
	}
}

// Check scans the watched routes once and returns the notifications it
// added. Cancelled vehicles are ignored. Pairs that disappear from the
// store are forgotten.
func (w *ArrivalWatcher) Check() []transit.Notification {
	snap := w.store.Snapshot()
	numbers := []string{w.routeNumber}
	if w.routeNumber == "" {
		numbers = numbers[:0]
		for _, r := range snap.Routes {
			numbers = append(numbers, r.Number)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	next := make(map[pairKey]bool, len(w.inside))
	var out []transit.Notification
	for _, num := range numbers {
		stops := snap.StopsOnRoute(num)
		for _, v := range snap.VehiclesOnRoute(num) {
			if !v.Active() {
				continue
			}
			for _, st := range stops {
				k := pairKey{v.ID, st.ID}
				if geo.Degrees(v.Position, st.Position) >= w.threshold {
					continue
				}
				next[k] = true
				if w.inside[k] {
					continue
				}
				out = append(out, w.store.AddNotification(arrivalNotice(v, st)))
			}
		}
	}
	w.inside = next
	return out
}

func arrivalNotice(v transit.Vehicle, st transit.Stop) transit.NotificationInput {
	hiStop := st.Name.Hi
	if hiStop == "" {
		hiStop = st.Name.En
	}
	return transit.NotificationInput{
		Type:  transit.NotifyArrival,
		Title: transit.LocalizedText{En: "Bus Arriving", Hi: "बस आ रही है"},
		Message: transit.LocalizedText{
			En: fmt.Sprintf("Bus %s is arriving at %s", v.RouteNumber, st.Name.En),
			Hi: fmt.Sprintf("बस %s %s पर पहुंच रही है", v.RouteNumber, hiStop),
		},
	}
}
