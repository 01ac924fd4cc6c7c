package transit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	// ErrOverCapacity is returned by WithinCapacity for occupancy outside
	// 0..capacity.
	ErrOverCapacity      = errors.New("occupancy outside capacity")
	ErrNegativeOccupancy = errors.New("negative occupancy")
)

// OccupancyPolicy decides whether a vehicle's occupancy is acceptable.
// Policies report; they never adjust the vehicle.
type OccupancyPolicy func(v Vehicle) error

// AllowOvercrowding accepts any non-negative occupancy.
func AllowOvercrowding(v Vehicle) error {
	if v.Occupancy < 0 {
		return fmt.Errorf("vehicle %s: %d: %w", v.ID, v.Occupancy, ErrNegativeOccupancy)
	}
	return nil
}

// WithinCapacity requires 0 <= occupancy <= capacity.
func WithinCapacity(v Vehicle) error {
	if v.Occupancy < 0 || v.Occupancy > v.Capacity {
		return fmt.Errorf("vehicle %s: %d/%d: %w", v.ID, v.Occupancy, v.Capacity, ErrOverCapacity)
	}
	return nil
}

// ParseOccupancyPolicy maps a configuration name to a policy.
func ParseOccupancyPolicy(name string) (OccupancyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "allow":
		return AllowOvercrowding, nil
	case "capacity":
		return WithinCapacity, nil
	}
	return nil, fmt.Errorf("unknown occupancy policy %q", name)
}

// Validate checks field shapes with struct tags and then the cross-entity
// invariants of the dataset: unique ids, unique route numbers, delays only
// on delayed vehicles, route stop sequences referencing known stops, and
// stop membership sets agreeing with the routes that list them. Route numbers on stops or vehicles with no
// matching route are allowed.
func (s Seed) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	var errs []error
	dup := func(kind, id string, seen map[string]bool) {
		if seen[id] {
			errs = append(errs, fmt.Errorf("duplicate %s %q", kind, id))
		}
		seen[id] = true
	}

	stops := make(map[string]Stop, len(s.Stops))
	seen := map[string]bool{}
	for _, st := range s.Stops {
		dup("stop id", st.ID, seen)
		stops[st.ID] = st
	}
	seen = map[string]bool{}
	for _, v := range s.Vehicles {
		dup("vehicle id", v.ID, seen)
		if v.Status != StatusDelayed && v.DelayMin != 0 {
			errs = append(errs, fmt.Errorf("vehicle %s: %s with %d min delay", v.ID, v.Status, v.DelayMin))
		}
	}
	seen = map[string]bool{}
	numbers := map[string]bool{}
	listed := map[string]map[string]bool{} // route number -> stop ids
	for _, r := range s.Routes {
		dup("route id", r.ID, seen)
		dup("route number", r.Number, numbers)
		listed[r.Number] = map[string]bool{}
		for _, id := range r.StopIDs {
			st, ok := stops[id]
			if !ok {
				errs = append(errs, fmt.Errorf("route %s: unknown stop %q", r.Number, id))
				continue
			}
			if !st.Serves(r.Number) {
				errs = append(errs, fmt.Errorf("route %s lists stop %s, which does not list the route", r.Number, id))
			}
			listed[r.Number][id] = true
		}
	}
	for _, st := range s.Stops {
		for _, num := range st.Routes {
			ids, ok := listed[num]
			if !ok || len(ids) == 0 {
				continue
			}
			if !ids[st.ID] {
				errs = append(errs, fmt.Errorf("stop %s lists route %s, which does not list the stop", st.ID, num))
			}
		}
	}
	return errors.Join(errs...)
}
