package events

import (
	"encoding/json"
	"sync"
	"time"

	"hotelsync/internal/models"
)

const (
	EventBookingCreated        = "booking_created"
	EventBookingStatusChanged  = "booking_status_changed"
	EventBookingRescheduled    = "booking_rescheduled"
	EventRoomReconciled        = "room_reconciled"
	EventReconcileCompleted    = "reconcile_completed"
	EventDoubleBookingDetected = "double_booking_detected"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID         int64     `json:"booking_id"`
	TenantID          string    `json:"tenant_id"`
	ReservationNumber string    `json:"reservation_number"`
	RoomID            int64     `json:"room_id"`
	GuestName         string    `json:"guest_name"`
	Status            string    `json:"status"`
	PreviousStatus    string    `json:"previous_status,omitempty"`
	CheckInDate       time.Time `json:"check_in_date"`
	CheckOutDate      time.Time `json:"check_out_date"`
	Notes             string    `json:"notes,omitempty"`
}

// BookingPayloadFrom builds the payload for a booking.
func BookingPayloadFrom(b *models.Booking) BookingEventPayload {
	return BookingEventPayload{
		BookingID:         b.ID,
		TenantID:          b.TenantID,
		ReservationNumber: b.ReservationNumber,
		RoomID:            b.RoomID,
		GuestName:         b.GuestName,
		Status:            string(b.Status),
		CheckInDate:       b.CheckInDate,
		CheckOutDate:      b.CheckOutDate,
		Notes:             b.Notes,
	}
}

// BookingRef identifies one side of a double booking.
type BookingRef struct {
	BookingID         int64     `json:"booking_id"`
	ReservationNumber string    `json:"reservation_number"`
	GuestName         string    `json:"guest_name"`
	Status            string    `json:"status"`
	CheckInDate       time.Time `json:"check_in_date"`
	CheckOutDate      time.Time `json:"check_out_date"`
}

func BookingRefFrom(b models.Booking) BookingRef {
	return BookingRef{
		BookingID:         b.ID,
		ReservationNumber: b.ReservationNumber,
		GuestName:         b.GuestName,
		Status:            string(b.Status),
		CheckInDate:       b.CheckInDate,
		CheckOutDate:      b.CheckOutDate,
	}
}

// DoubleBookingPayload is raised for every overlapping pair of active bookings.
type DoubleBookingPayload struct {
	RunID      string     `json:"run_id"`
	TenantID   string     `json:"tenant_id"`
	RoomID     int64      `json:"room_id"`
	RoomNumber string     `json:"room_number"`
	Reason     string     `json:"reason"`
	First      BookingRef `json:"first"`
	Second     BookingRef `json:"second"`
}

type RoomReconciledPayload struct {
	TenantID string           `json:"tenant_id"`
	Detail   models.FixDetail `json:"detail"`
}

// ReconcileSummaryPayload closes a reconcile run.
type ReconcileSummaryPayload struct {
	RunID          string             `json:"run_id"`
	TenantID       string             `json:"tenant_id"`
	Fixed          int                `json:"fixed"`
	Failed         int                `json:"failed"`
	DoubleBookings int                `json:"double_bookings"`
	Details        []models.FixDetail `json:"details,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	seq         int64
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type and returns the first
// handler error. Every handler runs regardless.
func (b *EventBus) Publish(event *Event) error {
	b.mu.Lock()
	b.seq++
	if event.ID == 0 {
		event.ID = b.seq
	}
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.Unlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var first error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	ev, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&ev)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
