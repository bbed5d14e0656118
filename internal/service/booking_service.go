package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hotelsync/internal/domain"
	"hotelsync/internal/events"
	"hotelsync/internal/metrics"
	"hotelsync/internal/models"
	"hotelsync/internal/validation"

	"github.com/rs/zerolog"
)

// BookingService is the intake path for booking mutations. Every mutation is
// validated before it reaches the store and reconciles the affected rooms
// once it is stored.
type BookingService struct {
	repo      domain.Repository
	eventBus  domain.EventPublisher
	trigger   domain.ReconcileTrigger
	validator *validation.BookingValidator
	logger    *zerolog.Logger
}

func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, trigger domain.ReconcileTrigger, logger *zerolog.Logger) *BookingService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:      repo,
		eventBus:  eventBus,
		trigger:   trigger,
		validator: validation.NewBookingValidator(),
		logger:    logger,
	}
}

// CreateBooking stores a new booking. An empty status means CONFIRMED; status
// spellings are mapped to the canonical values first.
func (s *BookingService) CreateBooking(ctx context.Context, booking *models.Booking) (err error) {
	defer func() { metrics.IncBookingOp("create", err) }()

	if booking == nil {
		return &domain.ValidationError{Messages: []string{"booking is required"}}
	}
	if err := normalize(booking); err != nil {
		return err
	}
	if booking.Status.Terminal() {
		return &domain.ValidationError{Messages: []string{
			fmt.Sprintf("status must not be %s for a new booking", booking.Status),
		}}
	}
	if err := s.validator.Check(*booking); err != nil {
		return err
	}

	// Создаем бронирование с блокировкой
	if err := s.repo.CreateBookingWithLock(ctx, booking); err != nil {
		return err
	}

	s.logger.Info().
		Str("tenant", booking.TenantID).
		Int64("booking_id", booking.ID).
		Int64("room_id", booking.RoomID).
		Str("status", string(booking.Status)).
		Msg("booking created")

	s.reconcile(ctx, booking.TenantID, booking.RoomID)
	s.publishEvent(events.EventBookingCreated, booking, "")
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, tenantID string, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, tenantID, id)
}

func (s *BookingService) ListRoomBookings(ctx context.Context, tenantID string, roomID int64) ([]models.Booking, error) {
	return s.repo.GetBookings(ctx, models.BookingFilter{TenantID: tenantID, RoomID: roomID})
}

// ChangeStatus moves a booking along its lifecycle. version is the version
// the caller last read; 0 skips the check.
func (s *BookingService) ChangeStatus(ctx context.Context, tenantID string, id, version int64, status string) (_ *models.Booking, err error) {
	defer func() { metrics.IncBookingOp("change_status", err) }()

	to, err := models.ParseBookingStatus(status)
	if err != nil {
		return nil, &domain.ValidationError{Messages: []string{err.Error()}}
	}

	current, err := s.load(ctx, tenantID, id, version)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateTransition(current.Status, to); err != nil {
		return nil, err
	}
	if current.Status == to {
		return current, nil
	}

	updated := *current
	updated.Status = to
	if err := s.validator.Check(updated); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBookingWithVersion(ctx, &updated); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("tenant", tenantID).
		Int64("booking_id", id).
		Str("from", string(current.Status)).
		Str("to", string(to)).
		Msg("booking status changed")

	s.reconcile(ctx, tenantID, updated.RoomID)
	s.publishEvent(events.EventBookingStatusChanged, &updated, current.Status)
	return &updated, nil
}

func (s *BookingService) Confirm(ctx context.Context, tenantID string, id, version int64) (*models.Booking, error) {
	return s.ChangeStatus(ctx, tenantID, id, version, string(models.BookingConfirmed))
}

func (s *BookingService) CheckIn(ctx context.Context, tenantID string, id, version int64) (*models.Booking, error) {
	return s.ChangeStatus(ctx, tenantID, id, version, string(models.BookingCheckedIn))
}

func (s *BookingService) CheckOut(ctx context.Context, tenantID string, id, version int64) (*models.Booking, error) {
	return s.ChangeStatus(ctx, tenantID, id, version, string(models.BookingCheckedOut))
}

func (s *BookingService) Cancel(ctx context.Context, tenantID string, id, version int64) (*models.Booking, error) {
	return s.ChangeStatus(ctx, tenantID, id, version, string(models.BookingCancelled))
}

func (s *BookingService) MarkNoShow(ctx context.Context, tenantID string, id, version int64) (*models.Booking, error) {
	return s.ChangeStatus(ctx, tenantID, id, version, string(models.BookingNoShow))
}

// RescheduleRequest moves a stay. RoomID 0 keeps the current room.
type RescheduleRequest struct {
	TenantID     string
	BookingID    int64
	Version      int64
	RoomID       int64
	CheckInDate  time.Time
	CheckOutDate time.Time
}

// Reschedule changes the dates and optionally the room of a non-terminal
// booking. Both the old and the new room are reconciled.
func (s *BookingService) Reschedule(ctx context.Context, req RescheduleRequest) (_ *models.Booking, err error) {
	defer func() { metrics.IncBookingOp("reschedule", err) }()

	current, err := s.load(ctx, req.TenantID, req.BookingID, req.Version)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", domain.ErrTerminalBooking, current.Status)
	}

	updated := *current
	updated.CheckInDate = models.Date(req.CheckInDate)
	updated.CheckOutDate = models.Date(req.CheckOutDate)
	if req.RoomID != 0 {
		updated.RoomID = req.RoomID
	}
	if err := s.validator.Check(updated); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBookingWithVersion(ctx, &updated); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("tenant", req.TenantID).
		Int64("booking_id", req.BookingID).
		Int64("room_id", updated.RoomID).
		Str("check_in", updated.CheckInDate.Format(models.DateLayout)).
		Str("check_out", updated.CheckOutDate.Format(models.DateLayout)).
		Msg("booking rescheduled")

	s.reconcile(ctx, req.TenantID, updated.RoomID)
	if updated.RoomID != current.RoomID {
		s.reconcile(ctx, req.TenantID, current.RoomID)
	}
	s.publishEvent(events.EventBookingRescheduled, &updated, "")
	return &updated, nil
}

// AddNote appends an audit note. Notes are the only field terminal bookings accept.
func (s *BookingService) AddNote(ctx context.Context, tenantID string, id int64, note string) (_ *models.Booking, err error) {
	defer func() { metrics.IncBookingOp("add_note", err) }()

	note = strings.TrimSpace(note)
	if note == "" {
		return nil, &domain.ValidationError{Messages: []string{"note is required"}}
	}

	booking, err := s.repo.GetBooking(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if booking.Notes == "" {
		booking.Notes = note
	} else {
		booking.Notes += "\n" + note
	}
	if err := s.repo.UpdateBookingNotes(ctx, tenantID, id, booking.Notes); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) load(ctx context.Context, tenantID string, id, version int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if version != 0 && booking.Version != version {
		return nil, fmt.Errorf("booking %d has version %d, not %d: %w",
			id, booking.Version, version, domain.ErrConcurrentModification)
	}
	return booking, nil
}

func normalize(b *models.Booking) error {
	b.GuestName = strings.TrimSpace(b.GuestName)
	b.CheckInDate = models.Date(b.CheckInDate)
	b.CheckOutDate = models.Date(b.CheckOutDate)

	if b.Status == "" {
		b.Status = models.BookingConfirmed
		return nil
	}
	status, err := models.ParseBookingStatus(string(b.Status))
	if err != nil {
		return &domain.ValidationError{Messages: []string{err.Error()}}
	}
	b.Status = status
	return nil
}

// reconcile asks for the room to be re-derived. The booking is already stored,
// so a failed trigger is left to the periodic pass.
func (s *BookingService) reconcile(ctx context.Context, tenantID string, roomID int64) {
	if s.trigger == nil {
		return
	}
	if err := s.trigger.Trigger(ctx, tenantID, roomID); err != nil {
		s.logger.Warn().Err(err).Str("tenant", tenantID).Int64("room_id", roomID).Msg("reconcile trigger error")
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, previous models.BookingStatus) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingPayloadFrom(booking)
	payload.PreviousStatus = string(previous)

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
