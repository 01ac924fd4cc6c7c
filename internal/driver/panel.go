// Package driver implements the actions available to a bus driver: reading
// the assigned vehicle, reporting a status change and reporting an issue.
// Each report is broadcast to riders as a notification.
package driver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kolekarsoham270-hash/bustracker/internal/store"
	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

var (
	ErrNoVehicle     = errors.New("no bus assigned")
	ErrInvalidStatus = errors.New("invalid status")
	ErrEmptyIssue    = errors.New("issue text is empty")
)

type Panel struct {
	store    *store.Store
	driverID string
}

func NewPanel(s *store.Store, driverID string) *Panel {
	return &Panel{store: s, driverID: driverID}
}

func (p *Panel) DriverID() string { return p.driverID }

// AssignedVehicle returns the vehicle the driver is currently assigned to.
func (p *Panel) AssignedVehicle() (transit.Vehicle, error) {
	v, ok := p.store.VehicleForDriver(p.driverID)
	if !ok {
		return transit.Vehicle{}, fmt.Errorf("driver %s: %w", p.driverID, ErrNoVehicle)
	}
	return v, nil
}

// ReportStatus updates the assigned vehicle and announces the change. The
// delay is only meaningful for StatusDelayed.
func (p *Panel) ReportStatus(status transit.Status, delayMin int) (transit.Notification, error) {
	if !status.Valid() {
		return transit.Notification{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	v, err := p.AssignedVehicle()
	if err != nil {
		return transit.Notification{}, err
	}
	p.store.UpdateVehicleStatus(v.ID, status, delayMin)
	if delayMin < 0 {
		delayMin = 0
	}

	typ := transit.NotifyServiceAlert
	msgEn := "Status changed to " + string(status)
	msgHi := "स्थिति बदलकर " + string(status) + " हो गई"
	if status == transit.StatusDelayed {
		typ = transit.NotifyDelay
		msgEn += fmt.Sprintf(" (%d min delay)", delayMin)
		msgHi += fmt.Sprintf(" (%d मिनट देरी)", delayMin)
	}
	return p.store.AddNotification(transit.NotificationInput{
		Type: typ,
		Title: transit.LocalizedText{
			En: fmt.Sprintf("Bus %s Status Update", v.RouteNumber),
			Hi: fmt.Sprintf("बस %s स्थिति अपडेट", v.RouteNumber),
		},
		Message: transit.LocalizedText{En: msgEn, Hi: msgHi},
	}), nil
}

// ReportIssue broadcasts free text as a service alert. Blank text is
// rejected without touching the store.
func (p *Panel) ReportIssue(text string) (transit.Notification, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return transit.Notification{}, ErrEmptyIssue
	}
	v, err := p.AssignedVehicle()
	if err != nil {
		return transit.Notification{}, err
	}
	return p.store.AddNotification(transit.NotificationInput{
		Type: transit.NotifyServiceAlert,
		Title: transit.LocalizedText{
			En: fmt.Sprintf("Issue Reported - Bus %s", v.RouteNumber),
			Hi: fmt.Sprintf("समस्या रिपोर्ट - बस %s", v.RouteNumber),
		},
		Message: transit.LocalizedText{En: text, Hi: text},
	}), nil
}
