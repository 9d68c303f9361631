// Package notify turns booking events into user notifications.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/logger"
)

type Notification struct {
	UserID    int64
	BookingID int64
	Subject   string
	Body      string
}

// Deliverer sends a rendered notification to its recipient.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogDeliverer writes notifications to the log instead of a mail gateway.
type LogDeliverer struct {
	log *logger.Logger
}

func NewLogDeliverer(log *logger.Logger) *LogDeliverer {
	if log == nil {
		log = logger.Nop()
	}
	return &LogDeliverer{log: log}
}

func (d *LogDeliverer) Deliver(ctx context.Context, n Notification) error {
	d.log.Info("notification", "user_id", n.UserID, "booking_id", n.BookingID, "subject", n.Subject, "body", n.Body)
	return nil
}

const defaultSeenCapacity = 1024

// Sender renders booking events and hands them to a Deliverer. Events arrive at least
// once from Kafka, so recently seen event ids are skipped.
type Sender struct {
	deliverer Deliverer
	log       *logger.Logger

	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	capacity int
}

func NewSender(deliverer Deliverer, log *logger.Logger) *Sender {
	if log == nil {
		log = logger.Nop()
	}
	return &Sender{
		deliverer: deliverer,
		log:       log,
		seen:      make(map[string]struct{}),
		capacity:  defaultSeenCapacity,
	}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if s.duplicate(event.EventID) {
		s.log.Debug("skipping duplicate booking event", "event_id", event.EventID)
		return nil
	}

	n, ok := Render(event)
	if !ok {
		s.log.Debug("no notification for event type", "type", event.Type)
		return nil
	}
	if err := s.deliverer.Deliver(ctx, n); err != nil {
		return fmt.Errorf("deliver notification for booking %d: %w", event.BookingID, err)
	}
	return nil
}

func (s *Sender) duplicate(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.capacity {
		delete(s.seen, s.order[0])
		s.order = s.order[1:]
	}
	return false
}

// Render builds the notification for event. Unknown event types yield false.
func Render(event kafka.BookingEvent) (Notification, bool) {
	n := Notification{UserID: event.UserID, BookingID: event.BookingID}
	switch event.Type {
	case kafka.EventBookingCreated:
		n.Subject = fmt.Sprintf("Booking #%d confirmed", event.BookingID)
		n.Body = fmt.Sprintf("%d seat(s) on flight %d, total %s.", event.SeatCount, event.FlightID, event.TotalPrice.StringFixed(2))
	case kafka.EventBookingCancelled:
		n.Subject = fmt.Sprintf("Booking #%d cancelled", event.BookingID)
		n.Body = fmt.Sprintf("%d seat(s) on flight %d were released.", event.SeatCount, event.FlightID)
	case kafka.EventBookingStatusChanged:
		n.Subject = fmt.Sprintf("Booking #%d updated", event.BookingID)
		n.Body = fmt.Sprintf("Status is now %s.", event.Status)
	default:
		return Notification{}, false
	}
	return n, true
}
