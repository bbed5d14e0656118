package consistency

import (
	"context"
	"testing"
	"time"

	"hotelsync/internal/events"
	"hotelsync/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(store *memStore, locker *chanLocker, bus *recordingBus, now time.Time) *Reconciler {
	logger := zerolog.Nop()
	r := NewReconciler(store, store, locker, bus, &logger)
	r.SetClock(func() time.Time { return now })
	return r
}

func TestReconcile_CheckedOutRoomBecomesAvailableDirty(t *testing.T) {
	r := room(1, "101", models.OccupancyOccupied, models.HousekeepingClean)
	z := booking(1, 1, models.BookingCheckedIn, 8, 10)
	store := newMemStore([]models.Room{r}, []models.Booking{z})
	store.setBookingStatus(1, models.BookingCheckedOut)

	bus := &recordingBus{}
	locker := newChanLocker()
	rec := newTestReconciler(store, locker, bus, day(10))

	result, err := rec.ReconcileTenant(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fixed)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Details, 1)

	d := result.Details[0]
	assert.Equal(t, models.OccupancyOccupied, d.From)
	assert.Equal(t, models.OccupancyAvailable, d.To)
	assert.Equal(t, models.HousekeepingClean, d.HousekeepingFrom)
	assert.Equal(t, models.HousekeepingDirty, d.HousekeepingTo)
	assert.Equal(t, "checked out", d.Reason)
	assert.True(t, d.Applied)

	stored := store.rooms[1]
	assert.Equal(t, models.OccupancyAvailable, stored.OccupancyStatus)
	assert.Equal(t, models.HousekeepingDirty, stored.HousekeepingStatus)

	assert.Equal(t, []string{"room_lock:grand:1"}, locker.keys)
	assert.Len(t, bus.ofType(events.EventRoomReconciled), 1)
	assert.Len(t, bus.ofType(events.EventReconcileCompleted), 1)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	rooms := []models.Room{
		room(1, "101", models.OccupancyOccupied, models.HousekeepingClean),
		room(2, "102", models.OccupancyAvailable, models.HousekeepingClean),
		room(3, "103", models.OccupancyReserved, models.HousekeepingInspected),
	}
	bookings := []models.Booking{
		booking(1, 1, models.BookingCheckedOut, 8, 10),
		booking(2, 2, models.BookingCheckedIn, 9, 12),
	}
	store := newMemStore(rooms, bookings)
	rec := newTestReconciler(store, newChanLocker(), &recordingBus{}, day(10))

	first, err := rec.ReconcileTenant(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Fixed)

	second, err := rec.ReconcileTenant(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Fixed)
	assert.Empty(t, second.Details)
	assert.Equal(t, 3, store.updates)
}

func TestReconcile_StaleSnapshotIsReRead(t *testing.T) {
	r := room(1, "101", models.OccupancyAvailable, models.HousekeepingClean)
	b := booking(1, 1, models.BookingConfirmed, 12, 14)
	store := newMemStore([]models.Room{r}, []models.Booking{b})
	rec := newTestReconciler(store, newChanLocker(), &recordingBus{}, day(10))

	snapshotRooms, _ := store.GetRooms(context.Background(), models.RoomFilter{TenantID: tenant})
	snapshotBookings, _ := store.GetBookings(context.Background(), models.BookingFilter{TenantID: tenant})

	// another writer fixes the room between the snapshot and the lock
	fixed := r
	fixed.OccupancyStatus = models.OccupancyReserved
	store.rooms[1] = fixed

	result, err := rec.Reconcile(context.Background(), snapshotRooms, snapshotBookings)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Fixed)
	assert.Empty(t, result.Details)
	assert.Equal(t, 0, store.updates)
}

func TestReconcile_FreshStateWins(t *testing.T) {
	r := room(1, "101", models.OccupancyAvailable, models.HousekeepingClean)
	b := booking(1, 1, models.BookingConfirmed, 12, 14)
	store := newMemStore([]models.Room{r}, []models.Booking{b})
	rec := newTestReconciler(store, newChanLocker(), &recordingBus{}, day(12))

	// the snapshot still shows the reservation; the guest has since checked in
	snapshot := []models.Booking{b}
	store.setBookingStatus(1, models.BookingCheckedIn)

	result, err := rec.Reconcile(context.Background(), []models.Room{r}, snapshot)
	require.NoError(t, err)
	require.Len(t, result.Details, 1)
	assert.Equal(t, models.OccupancyOccupied, result.Details[0].To)
	assert.Equal(t, ReasonCheckedIn, result.Details[0].Reason)
	assert.Equal(t, models.OccupancyOccupied, store.rooms[1].OccupancyStatus)
}

func TestReconcile_DoubleBookingIsAlertedNotFixed(t *testing.T) {
	r := room(1, "101", models.OccupancyAvailable, models.HousekeepingClean)
	store := newMemStore([]models.Room{r}, []models.Booking{
		booking(1, 1, models.BookingConfirmed, 10, 12),
		booking(2, 1, models.BookingConfirmed, 11, 13),
	})
	bus := &recordingBus{}
	rec := newTestReconciler(store, newChanLocker(), bus, day(5))

	result, err := rec.ReconcileTenant(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Fixed)
	require.Len(t, result.DoubleBookings, 1)
	assert.Equal(t, 0, store.updates)

	alerts := bus.ofType(events.EventDoubleBookingDetected)
	require.Len(t, alerts, 1)
	payload := alerts[0].Payload.(events.DoubleBookingPayload)
	assert.Equal(t, int64(1), payload.First.BookingID)
	assert.Equal(t, int64(2), payload.Second.BookingID)
	assert.Equal(t, tenant, payload.TenantID)
}

func TestReconcile_WriteFailureIsRecorded(t *testing.T) {
	rooms := []models.Room{
		room(1, "101", models.OccupancyOccupied, models.HousekeepingClean),
		room(2, "102", models.OccupancyOccupied, models.HousekeepingClean),
	}
	store := newMemStore(rooms, nil)
	store.failWrite[1] = errDiskFull
	rec := newTestReconciler(store, newChanLocker(), &recordingBus{}, day(10))

	result, err := rec.ReconcileTenant(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fixed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []int64{1}, result.FailedRoomIDs())
	assert.Contains(t, result.Details[0].Error, "disk full")
	assert.Equal(t, models.FixErrorWrite, result.Details[0].ErrorKind)
	assert.Equal(t, models.OccupancyAvailable, store.rooms[2].OccupancyStatus)
}

func TestReconcile_LockFailure(t *testing.T) {
	store := newMemStore([]models.Room{room(1, "101", models.OccupancyOccupied, models.HousekeepingClean)}, nil)
	locker := newChanLocker()
	locker.err = context.DeadlineExceeded
	rec := newTestReconciler(store, locker, &recordingBus{}, day(10))

	result, err := rec.ReconcileTenant(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Details, 1)
	assert.Equal(t, models.FixErrorLock, result.Details[0].ErrorKind)
	assert.Equal(t, 0, store.updates)
}

func TestReconcile_RoomDeletedAfterSnapshot(t *testing.T) {
	rooms := []models.Room{
		room(1, "101", models.OccupancyOccupied, models.HousekeepingClean),
		room(2, "102", models.OccupancyOccupied, models.HousekeepingClean),
	}
	store := newMemStore(rooms, nil)
	rec := newTestReconciler(store, newChanLocker(), &recordingBus{}, day(10))

	snapshot, _ := store.GetRooms(context.Background(), models.RoomFilter{TenantID: tenant})
	delete(store.rooms, 1)

	result, err := rec.Reconcile(context.Background(), snapshot, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fixed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Details, 2)

	gone := result.Details[0]
	assert.Equal(t, int64(1), gone.RoomID)
	assert.False(t, gone.Applied)
	assert.Equal(t, models.FixErrorNotFound, gone.ErrorKind)
	assert.NotEmpty(t, gone.Error)

	assert.True(t, result.Details[1].Applied)
	assert.Equal(t, models.OccupancyAvailable, store.rooms[2].OccupancyStatus)
	assert.Empty(t, result.FailedRoomIDs(), "a vanished room is not retried")
}

func TestReconcile_DoubleBookingAfterSnapshotIsAlerted(t *testing.T) {
	r := room(1, "101", models.OccupancyAvailable, models.HousekeepingClean)
	first := booking(1, 1, models.BookingConfirmed, 12, 14)
	store := newMemStore([]models.Room{r}, []models.Booking{first})
	bus := &recordingBus{}
	rec := newTestReconciler(store, newChanLocker(), bus, day(10))

	// an overlapping reservation lands after the snapshot was taken
	store.bookings = append(store.bookings, booking(2, 1, models.BookingConfirmed, 13, 15))

	result, err := rec.Reconcile(context.Background(), []models.Room{r}, []models.Booking{first})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Fixed)
	assert.Empty(t, result.Details)
	assert.Equal(t, 0, store.updates)

	require.Len(t, result.DoubleBookings, 1)
	db := result.DoubleBookings[0]
	assert.Equal(t, models.FindingDoubleBooking, db.Kind)
	require.NotNil(t, db.Conflict)
	assert.Equal(t, int64(1), db.Conflict.First.ID)
	assert.Equal(t, int64(2), db.Conflict.Second.ID)

	assert.Len(t, bus.ofType(events.EventDoubleBookingDetected), 1)
	summary := bus.ofType(events.EventReconcileCompleted)
	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].Payload.(events.ReconcileSummaryPayload).DoubleBookings)
}

func TestReconcile_ReReadFindingsAreNotDuplicated(t *testing.T) {
	r := room(1, "101", models.OccupancyOccupied, models.HousekeepingClean)
	broken := booking(1, 1, models.BookingConfirmed, 12, 14)
	broken.GuestName = ""
	store := newMemStore([]models.Room{r}, []models.Booking{broken})
	rec := newTestReconciler(store, newChanLocker(), &recordingBus{}, day(10))

	result, err := rec.ReconcileTenant(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fixed)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, models.FindingInvalidBooking, result.Findings[0].Kind)
	assert.Equal(t, int64(1), result.Findings[0].BookingID)
}

func TestReconcile_MixedTenantsRejected(t *testing.T) {
	a := room(1, "101", models.OccupancyOccupied, models.HousekeepingClean)
	b := room(2, "102", models.OccupancyOccupied, models.HousekeepingClean)
	b.TenantID = "other"
	store := newMemStore([]models.Room{a, b}, nil)
	rec := newTestReconciler(store, newChanLocker(), &recordingBus{}, day(10))

	_, err := rec.Reconcile(context.Background(), []models.Room{a, b}, nil)
	require.Error(t, err)
	assert.Equal(t, 0, store.updates)
}

func TestRoomLockKey(t *testing.T) {
	assert.Equal(t, "room_lock:grand:42", RoomLockKey("grand", 42))
}
