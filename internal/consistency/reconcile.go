package consistency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotelsync/internal/domain"
	"hotelsync/internal/events"
	"hotelsync/internal/metrics"
	"hotelsync/internal/models"
	"hotelsync/internal/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Reconciler overwrites drifted room statuses with the status their bookings
// imply. Double bookings are alerted on and never repaired.
type Reconciler struct {
	rooms     domain.RoomStore
	bookings  domain.BookingStore
	locker    domain.RoomLocker
	eventBus  domain.EventPublisher
	validator *validation.BookingValidator
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewReconciler(
	rooms domain.RoomStore,
	bookings domain.BookingStore,
	locker domain.RoomLocker,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *Reconciler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Reconciler{
		rooms:     rooms,
		bookings:  bookings,
		locker:    locker,
		eventBus:  eventBus,
		validator: validation.NewBookingValidator(),
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock replaces the time source used for status derivation.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// RoomLockKey is the mutual-exclusion key of one room.
func RoomLockKey(tenantID string, roomID int64) string {
	return fmt.Sprintf("room_lock:%s:%d", tenantID, roomID)
}

// Reconcile repairs drift found in a snapshot of one tenant's rooms and
// bookings. Each room is re-read under its lock before it is written, so a
// stale snapshot never overwrites newer state.
func (r *Reconciler) Reconcile(ctx context.Context, rooms []models.Room, bookings []models.Booking) (*models.ReconcileResult, error) {
	tenantID := ""
	switch {
	case len(rooms) > 0:
		tenantID = rooms[0].TenantID
	case len(bookings) > 0:
		tenantID = bookings[0].TenantID
	}
	return r.reconcile(ctx, tenantID, rooms, bookings)
}

// ReconcileTenant loads the tenant's rooms and bookings and reconciles them.
func (r *Reconciler) ReconcileTenant(ctx context.Context, tenantID string) (*models.ReconcileResult, error) {
	rooms, err := r.rooms.GetRooms(ctx, models.RoomFilter{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	bookings, err := r.bookings.GetBookings(ctx, models.BookingFilter{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	return r.reconcile(ctx, tenantID, rooms, bookings)
}

// ReconcileRoom reconciles a single room, typically right after one of its
// bookings changed.
func (r *Reconciler) ReconcileRoom(ctx context.Context, tenantID string, roomID int64) (*models.ReconcileResult, error) {
	room, err := r.rooms.GetRoom(ctx, tenantID, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room %d: %w", roomID, err)
	}
	bookings, err := r.bookings.GetBookings(ctx, models.BookingFilter{TenantID: tenantID, RoomID: roomID})
	if err != nil {
		return nil, fmt.Errorf("load bookings of room %d: %w", roomID, err)
	}
	return r.reconcile(ctx, tenantID, []models.Room{*room}, bookings)
}

func (r *Reconciler) reconcile(ctx context.Context, tenantID string, rooms []models.Room, bookings []models.Booking) (*models.ReconcileResult, error) {
	started := r.now()
	opts := ValidateOptions{Now: started, Bookings: r.validator}

	report, err := ValidateTenant(tenantID, rooms, bookings, opts)
	if err != nil {
		metrics.IncReconcileRun("rejected")
		return nil, err
	}

	result := &models.ReconcileResult{
		RunID:     uuid.NewString(),
		TenantID:  tenantID,
		StartedAt: started,
	}
	log := r.logger.With().Str("run_id", result.RunID).Str("tenant", tenantID).Logger()

	seen := make(map[string]bool, len(report.Mismatches))
	for _, m := range report.Mismatches {
		seen[findingKey(m)] = true
	}

	for _, m := range report.Mismatches {
		switch {
		case m.Kind == models.FindingDoubleBooking:
			result.DoubleBookings = append(result.DoubleBookings, m)
			r.alertDoubleBooking(&log, result.RunID, tenantID, m)
		case m.Repairable:
			detail, changed, fresh := r.fixRoom(ctx, &log, tenantID, m, opts)
			for _, fm := range fresh {
				if seen[findingKey(fm)] {
					continue
				}
				seen[findingKey(fm)] = true
				if fm.Kind == models.FindingDoubleBooking {
					result.DoubleBookings = append(result.DoubleBookings, fm)
					r.alertDoubleBooking(&log, result.RunID, tenantID, fm)
					continue
				}
				result.Findings = append(result.Findings, fm)
			}
			if !changed {
				continue
			}
			result.Details = append(result.Details, detail)
			if detail.Applied {
				result.Fixed++
			} else {
				result.Failed++
			}
		default:
			result.Findings = append(result.Findings, m)
		}
	}

	result.FinishedAt = r.now()
	metrics.IncReconcileRun("completed")
	metrics.ObserveReconcileDuration(result.FinishedAt.Sub(result.StartedAt))

	log.Info().
		Int("rooms", len(rooms)).
		Int("fixed", result.Fixed).
		Int("failed", result.Failed).
		Int("double_bookings", len(result.DoubleBookings)).
		Int("findings", len(result.Findings)).
		Msg("reconcile finished")

	r.publish(&log, events.EventReconcileCompleted, events.ReconcileSummaryPayload{
		RunID:          result.RunID,
		TenantID:       tenantID,
		Fixed:          result.Fixed,
		Failed:         result.Failed,
		DoubleBookings: len(result.DoubleBookings),
		Details:        result.Details,
	})

	return result, nil
}

// fixRoom re-derives one room under its lock and writes the correction.
// changed is false when the fresh state no longer drifts. fresh carries the
// non-drift findings of the re-read, such as a double booking that appeared
// after the snapshot.
func (r *Reconciler) fixRoom(
	ctx context.Context,
	log *zerolog.Logger,
	tenantID string,
	m models.Mismatch,
	opts ValidateOptions,
) (detail models.FixDetail, changed bool, fresh []models.Mismatch) {
	detail = models.FixDetail{
		RoomID:           m.RoomID,
		RoomNumber:       m.RoomNumber,
		From:             m.ActualStatus,
		To:               m.ExpectedStatus,
		HousekeepingFrom: m.ActualHousekeeping,
		HousekeepingTo:   m.ExpectedHousekeeping,
		Reason:           m.Reason,
	}
	fail := func(kind models.FixErrorKind, err error) (models.FixDetail, bool, []models.Mismatch) {
		detail.Error = err.Error()
		detail.ErrorKind = kind
		metrics.IncRoomFixFailure(string(kind))
		log.Warn().Err(err).Int64("room_id", m.RoomID).Str("room", m.RoomNumber).
			Str("step", string(kind)).Msg("room not reconciled")
		return detail, true, fresh
	}

	unlock, err := r.locker.Lock(ctx, RoomLockKey(tenantID, m.RoomID))
	if err != nil {
		return fail(models.FixErrorLock, fmt.Errorf("lock room: %w", err))
	}
	defer unlock()

	current, err := r.rooms.GetRoom(ctx, tenantID, m.RoomID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fail(models.FixErrorNotFound, err)
		}
		return fail(models.FixErrorRead, fmt.Errorf("reload room: %w", err))
	}
	roomBookings, err := r.bookings.GetBookings(ctx, models.BookingFilter{TenantID: tenantID, RoomID: m.RoomID})
	if err != nil {
		return fail(models.FixErrorRead, fmt.Errorf("reload bookings: %w", err))
	}

	var drift *models.Mismatch
	for _, fm := range checkRoom(*current, roomBookings, opts) {
		if fm.Kind == models.FindingDrift {
			d := fm
			drift = &d
			continue
		}
		fresh = append(fresh, fm)
	}
	if drift == nil {
		log.Debug().Int64("room_id", m.RoomID).Int("findings", len(fresh)).Msg("room has no drift left")
		return detail, false, fresh
	}

	detail.From, detail.To = drift.ActualStatus, drift.ExpectedStatus
	detail.HousekeepingFrom, detail.HousekeepingTo = drift.ActualHousekeeping, drift.ExpectedHousekeeping
	detail.Reason = drift.Reason

	var patch models.RoomPatch
	if drift.ExpectedStatus != drift.ActualStatus {
		occ := drift.ExpectedStatus
		patch.OccupancyStatus = &occ
	}
	if drift.ExpectedHousekeeping != drift.ActualHousekeeping {
		hk := drift.ExpectedHousekeeping
		patch.HousekeepingStatus = &hk
	}

	if _, err := r.rooms.UpdateRoom(ctx, tenantID, m.RoomID, patch); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fail(models.FixErrorNotFound, err)
		}
		return fail(models.FixErrorWrite, &domain.PersistenceError{Op: "update room", Err: err})
	}

	detail.Applied = true
	metrics.IncRoomFixed()
	log.Info().
		Int64("room_id", current.ID).
		Str("room", current.Number).
		Str("from", string(detail.From)).
		Str("to", string(detail.To)).
		Str("hk_from", string(detail.HousekeepingFrom)).
		Str("hk_to", string(detail.HousekeepingTo)).
		Str("reason", detail.Reason).
		Msg("room reconciled")

	r.publish(log, events.EventRoomReconciled, events.RoomReconciledPayload{
		TenantID: tenantID,
		Detail:   detail,
	})
	return detail, true, fresh
}

// findingKey identifies a finding within one run so a re-read does not
// report it twice.
func findingKey(m models.Mismatch) string {
	var first, second int64
	if m.Conflict != nil {
		first, second = m.Conflict.First.ID, m.Conflict.Second.ID
	}
	return fmt.Sprintf("%s/%d/%d/%d/%d", m.Kind, m.RoomID, m.BookingID, first, second)
}

func (r *Reconciler) alertDoubleBooking(log *zerolog.Logger, runID, tenantID string, m models.Mismatch) {
	metrics.IncDoubleBooking()

	ev := log.Error().Int64("room_id", m.RoomID).Str("room", m.RoomNumber)
	payload := events.DoubleBookingPayload{
		RunID:      runID,
		TenantID:   tenantID,
		RoomID:     m.RoomID,
		RoomNumber: m.RoomNumber,
		Reason:     m.Reason,
	}
	if m.Conflict != nil {
		payload.First = events.BookingRefFrom(m.Conflict.First)
		payload.Second = events.BookingRefFrom(m.Conflict.Second)
		ev = ev.Int64("first_booking", m.Conflict.First.ID).Int64("second_booking", m.Conflict.Second.ID)
	}
	ev.Msg("double booking detected")

	r.publish(log, events.EventDoubleBookingDetected, payload)
}

func (r *Reconciler) publish(log *zerolog.Logger, eventType string, payload interface{}) {
	if r.eventBus == nil {
		return
	}
	if err := r.eventBus.PublishJSON(eventType, payload); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
