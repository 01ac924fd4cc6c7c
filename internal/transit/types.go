package transit

import "time"

// Coord is a WGS84 position in decimal degrees.
type Coord struct {
	Lat float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

// LocalizedText carries the English and Hindi variants of a display string.
type LocalizedText struct {
	En string `json:"en" yaml:"en" validate:"required"`
	Hi string `json:"hi" yaml:"hi"`
}

// In returns the variant for a language code, falling back to English.
func (t LocalizedText) In(lang string) string {
	if lang == "hi" && t.Hi != "" {
		return t.Hi
	}
	return t.En
}

type Stop struct {
	ID         string        `json:"id" yaml:"id" validate:"required"`
	Name       LocalizedText `json:"name" yaml:"name"`
	Position   Coord         `json:"position" yaml:"position"`
	Routes     []string      `json:"routes" yaml:"routes"` // route numbers
	Facilities []string      `json:"facilities" yaml:"facilities"`
}

// Serves reports whether routeNumber is in the stop's membership set.
func (s Stop) Serves(routeNumber string) bool {
	for _, r := range s.Routes {
		if r == routeNumber {
			return true
		}
	}
	return false
}

type OperatingHours struct {
	Start string `json:"start" yaml:"start" validate:"required,datetime=15:04"`
	End   string `json:"end" yaml:"end" validate:"required,datetime=15:04"`
}

type Route struct {
	ID           string         `json:"id" yaml:"id" validate:"required"`
	Number       string         `json:"number" yaml:"number" validate:"required"`
	Name         LocalizedText  `json:"name" yaml:"name"`
	Origin       string         `json:"origin" yaml:"origin" validate:"required"`
	Destination  string         `json:"destination" yaml:"destination" validate:"required"`
	StopIDs      []string       `json:"stopIds" yaml:"stops"` // travel order
	Color        string         `json:"color" yaml:"color" validate:"omitempty,hexcolor"`
	Fare         float64        `json:"fare" yaml:"fare" validate:"gte=0"`
	DistanceKm   float64        `json:"distanceKm" yaml:"distance_km" validate:"gt=0"`
	DurationMin  int            `json:"estimatedDuration" yaml:"duration_min" validate:"gt=0"`
	FrequencyMin int            `json:"frequency" yaml:"frequency_min" validate:"gt=0"`
	Hours        OperatingHours `json:"operatingHours" yaml:"hours"`
}

type Status string

const (
	StatusOnTime    Status = "on-time"
	StatusDelayed   Status = "delayed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnTime, StatusDelayed, StatusCancelled:
		return true
	}
	return false
}

type Vehicle struct {
	ID          string    `json:"id" yaml:"id" validate:"required"`
	RouteNumber string    `json:"routeNumber" yaml:"route" validate:"required"`
	Position    Coord     `json:"position" yaml:"position"`
	Status      Status    `json:"status" yaml:"status" validate:"oneof=on-time delayed cancelled"`
	DelayMin    int       `json:"delay" yaml:"delay_min" validate:"gte=0"`
	Capacity    int       `json:"capacity" yaml:"capacity" validate:"gt=0"`
	Occupancy   int       `json:"occupancy" yaml:"occupancy"`
	Accessible  bool      `json:"isAccessible" yaml:"accessible"`
	DriverID    string    `json:"driverId,omitempty" yaml:"driver"`
	LastUpdated time.Time `json:"lastUpdated" yaml:"-"`
}

// Active reports whether the vehicle is in service (not cancelled).
func (v Vehicle) Active() bool { return v.Status != StatusCancelled }

type NotificationType string

const (
	NotifyArrival      NotificationType = "arrival"
	NotifyDelay        NotificationType = "delay"
	NotifyServiceAlert NotificationType = "service-alert"
	NotifyRouteUpdate  NotificationType = "route-update"
)

type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     LocalizedText    `json:"title"`
	Message   LocalizedText    `json:"message"`
	CreatedAt time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

// NotificationInput is the caller-supplied part of a Notification; the
// store assigns the id, timestamp and read flag.
type NotificationInput struct {
	Type    NotificationType
	Title   LocalizedText
	Message LocalizedText
}

// Seed is the starting dataset a store is initialised from.
type Seed struct {
	Routes   []Route   `yaml:"routes" validate:"dive"`
	Stops    []Stop    `yaml:"stops" validate:"dive"`
	Vehicles []Vehicle `yaml:"vehicles" validate:"dive"`
}
