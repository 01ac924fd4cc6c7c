package metrics

import "github.com/kolekarsoham270-hash/bustracker/internal/transit"

// StoreListener counts store mutations. It satisfies store.Listener.
type StoreListener struct {
	c        *Collector
	vehicles func() []transit.Vehicle
}

// StoreListener returns a listener that also refreshes the vehicles-by-status
// gauge from vehicles after every vehicle change. vehicles may be nil.
func (c *Collector) StoreListener(vehicles func() []transit.Vehicle) *StoreListener {
	return &StoreListener{c: c, vehicles: vehicles}
}

func (l *StoreListener) VehicleChanged(v transit.Vehicle) {
	l.c.VehicleUpdates.WithLabelValues(string(v.Status)).Inc()
	if l.vehicles != nil {
		l.c.SetVehicleCounts(l.vehicles())
	}
}

func (l *StoreListener) NotificationAdded(n transit.Notification) {
	l.c.Notifications.WithLabelValues(string(n.Type)).Inc()
}

// SetVehicleCounts sets the vehicles-by-status gauge. Every known status is
// written so a status that drops to zero is reported as 0.
func (c *Collector) SetVehicleCounts(vs []transit.Vehicle) {
	counts := map[transit.Status]int{
		transit.StatusOnTime:    0,
		transit.StatusDelayed:   0,
		transit.StatusCancelled: 0,
	}
	for _, v := range vs {
		counts[v.Status]++
	}
	for status, n := range counts {
		c.VehiclesByStatus.WithLabelValues(string(status)).Set(float64(n))
	}
}
