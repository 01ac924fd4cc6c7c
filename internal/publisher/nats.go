package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
	Close()
}

// NATSPublisher fans store changes out to NATS. It satisfies store.Listener:
// vehicle changes go to <prefix>.vehicles.<route>.<vehicle> and
// notifications to <prefix>.notifications.<type>.
type NATSPublisher struct {
	nc          conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, subjectPrefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("bustracker"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return newPublisher(nc, subjectPrefix, logSubjects, m), nil
}

func newPublisher(nc conn, prefix string, logSubjects bool, m PublisherMetrics) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: subjectToken(prefix), logSubjects: logSubjects, metrics: m}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

type VehicleMessage struct {
	VehicleID   string         `json:"vehicleId"`
	RouteNumber string         `json:"routeNumber"`
	Status      transit.Status `json:"status"`
	DelayMin    int            `json:"delay"`
	Lat         float64        `json:"lat"`
	Lng         float64        `json:"lng"`
	Occupancy   int            `json:"occupancy"`
	Capacity    int            `json:"capacity"`
	Timestamp   time.Time      `json:"timestamp"`
}

func (p *NATSPublisher) VehicleSubject(v transit.Vehicle) string {
	return fmt.Sprintf("%s.vehicles.%s.%s", p.prefix, subjectToken(v.RouteNumber), subjectToken(v.ID))
}

func (p *NATSPublisher) NotificationSubject(n transit.Notification) string {
	return fmt.Sprintf("%s.notifications.%s", p.prefix, subjectToken(string(n.Type)))
}

func (p *NATSPublisher) PublishVehicle(v transit.Vehicle) error {
	return p.publish(p.VehicleSubject(v), VehicleMessage{
		VehicleID:   v.ID,
		RouteNumber: v.RouteNumber,
		Status:      v.Status,
		DelayMin:    v.DelayMin,
		Lat:         v.Position.Lat,
		Lng:         v.Position.Lng,
		Occupancy:   v.Occupancy,
		Capacity:    v.Capacity,
		Timestamp:   v.LastUpdated,
	})
}

func (p *NATSPublisher) PublishNotification(n transit.Notification) error {
	return p.publish(p.NotificationSubject(n), n)
}

// VehicleChanged and NotificationAdded log publish failures; a store
// mutation never fails because NATS is unavailable.
func (p *NATSPublisher) VehicleChanged(v transit.Vehicle) {
	if err := p.PublishVehicle(v); err != nil {
		log.Printf("nats publish vehicle %s: %v", v.ID, err)
	}
}

func (p *NATSPublisher) NotificationAdded(n transit.Notification) {
	if err := p.PublishNotification(n); err != nil {
		log.Printf("nats publish notification %s: %v", n.ID, err)
	}
}

func (p *NATSPublisher) publish(subject string, msg any) error {
	start := time.Now()
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
