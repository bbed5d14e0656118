package alerting

import (
	"context"
	"fmt"
	"strings"

	"hotelsync/internal/events"
	"hotelsync/internal/metrics"
	"hotelsync/internal/models"

	"github.com/rs/zerolog"
)

const (
	KindDoubleBooking = "double_booking"
	KindFixFailed     = "fix_failed"
)

// Alert is what an operator is told about a finding that needs a human.
type Alert struct {
	Kind       string          `json:"kind"`
	Severity   models.Severity `json:"severity"`
	TenantID   string          `json:"tenant_id"`
	RoomID     int64           `json:"room_id,omitempty"`
	RoomNumber string          `json:"room_number,omitempty"`
	Title      string          `json:"title"`
	Lines      []string        `json:"lines"`
	Payload    interface{}     `json:"payload,omitempty"`
}

// Text renders the alert body.
func (a Alert) Text() string {
	return a.Title + "\n" + strings.Join(a.Lines, "\n")
}

type Sink interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// Dispatcher turns reconcile events into alerts and fans them out to every sink.
type Dispatcher struct {
	sinks  []Sink
	logger *zerolog.Logger
}

func NewDispatcher(logger *zerolog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Subscribe wires the dispatcher to the bus.
func (d *Dispatcher) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventDoubleBookingDetected, d.onDoubleBooking)
	bus.Subscribe(events.EventReconcileCompleted, d.onReconcileCompleted)
}

func (d *Dispatcher) onDoubleBooking(ev *events.Event) error {
	var p events.DoubleBookingPayload
	if err := ev.Decode(&p); err != nil {
		return fmt.Errorf("decode double booking: %w", err)
	}
	return d.Dispatch(context.Background(), DoubleBookingAlert(p))
}

func (d *Dispatcher) onReconcileCompleted(ev *events.Event) error {
	var p events.ReconcileSummaryPayload
	if err := ev.Decode(&p); err != nil {
		return fmt.Errorf("decode reconcile summary: %w", err)
	}
	if p.Failed == 0 {
		return nil
	}
	return d.Dispatch(context.Background(), FixFailedAlert(p))
}

// Dispatch sends alert to every sink and returns the first failure. A failing
// sink does not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, alert Alert) error {
	var first error
	for _, s := range d.sinks {
		err := s.Send(ctx, alert)
		metrics.IncAlert(s.Name(), err)
		if err != nil {
			d.logger.Error().Err(err).Str("sink", s.Name()).Str("kind", alert.Kind).Msg("alert not delivered")
			if first == nil {
				first = err
			}
			continue
		}
		d.logger.Debug().Str("sink", s.Name()).Str("kind", alert.Kind).Msg("alert delivered")
	}
	return first
}

func DoubleBookingAlert(p events.DoubleBookingPayload) Alert {
	line := func(b events.BookingRef) string {
		return fmt.Sprintf("%s %s (%s) %s → %s", b.ReservationNumber, b.GuestName, b.Status,
			b.CheckInDate.Format(models.DateLayout), b.CheckOutDate.Format(models.DateLayout))
	}
	return Alert{
		Kind:       KindDoubleBooking,
		Severity:   models.SeverityCritical,
		TenantID:   p.TenantID,
		RoomID:     p.RoomID,
		RoomNumber: p.RoomNumber,
		Title:      fmt.Sprintf("Double booking in room %s (%s)", p.RoomNumber, p.TenantID),
		Lines:      []string{line(p.First), line(p.Second), "Resolve manually: one booking must move."},
		Payload:    p,
	}
}

func FixFailedAlert(p events.ReconcileSummaryPayload) Alert {
	var lines []string
	for _, d := range p.Details {
		if d.Applied {
			continue
		}
		lines = append(lines, fmt.Sprintf("room %s: %s → %s: %s", d.RoomNumber, d.From, d.To, d.Error))
	}
	return Alert{
		Kind:     KindFixFailed,
		Severity: models.SeverityWarning,
		TenantID: p.TenantID,
		Title:    fmt.Sprintf("%d room status correction(s) failed (%s)", p.Failed, p.TenantID),
		Lines:    lines,
		Payload:  p,
	}
}
