package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookingStatus(t *testing.T) {
	cases := map[string]BookingStatus{
		"Reserved":     BookingConfirmed,
		"CONFIRMED":    BookingConfirmed,
		"confirmed":    BookingConfirmed,
		"Checked-In":   BookingCheckedIn,
		"Checkedin":    BookingCheckedIn,
		"Checked in":   BookingCheckedIn,
		"checked_in":   BookingCheckedIn,
		" Checked-Out": BookingCheckedOut,
		"canceled":     BookingCancelled,
		"Cancelled":    BookingCancelled,
		"no-show":      BookingNoShow,
		"NO SHOW":      BookingNoShow,
		"Inquiry":      BookingInquiry,
		"pending":      BookingTentative,
	}
	for raw, want := range cases {
		got, err := ParseBookingStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseBookingStatus("teleported")
	assert.Error(t, err)
	_, err = ParseBookingStatus("")
	assert.Error(t, err)
}

func TestParseRoomStatuses(t *testing.T) {
	occ, err := ParseOccupancyStatus("Available")
	require.NoError(t, err)
	assert.Equal(t, OccupancyAvailable, occ)

	occ, err = ParseOccupancyStatus("out of service")
	require.NoError(t, err)
	assert.Equal(t, OccupancyOutOfService, occ)

	hk, err := ParseHousekeepingStatus("out-of-order")
	require.NoError(t, err)
	assert.Equal(t, HousekeepingOutOfOrder, hk)

	_, err = ParseHousekeepingStatus("sparkling")
	assert.Error(t, err)
}

func TestBookingStatusPredicates(t *testing.T) {
	assert.True(t, BookingConfirmed.Active())
	assert.True(t, BookingCheckedIn.Active())
	assert.False(t, BookingTentative.Active())
	assert.False(t, BookingCheckedOut.Active())

	assert.True(t, BookingCancelled.Terminal())
	assert.True(t, BookingNoShow.Terminal())
	assert.False(t, BookingCheckedIn.Terminal())

	assert.False(t, BookingStatus("Reserved").Valid())
	assert.True(t, BookingConfirmed.Valid())
}

func TestBookingHelpers(t *testing.T) {
	in := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	b := Booking{CheckInDate: in, CheckOutDate: in.AddDate(0, 0, 3)}
	assert.Equal(t, 3, b.Nights())
	assert.Equal(t, "R-000042", ReservationNumberFor(42))

	local := time.Date(2024, 1, 10, 23, 30, 0, 0, time.FixedZone("X", 3*3600))
	assert.Equal(t, in, Date(local))
}

func TestReportFilters(t *testing.T) {
	r := Report{Mismatches: []Mismatch{
		{Kind: FindingDrift, Severity: SeverityInfo, Repairable: true},
		{Kind: FindingDoubleBooking, Severity: SeverityCritical},
		{Kind: FindingInvalidBooking, Severity: SeverityWarning},
	}}
	assert.Len(t, r.Critical(), 1)
	assert.Len(t, r.Repairable(), 1)

	res := ReconcileResult{Details: []FixDetail{
		{RoomID: 1, Applied: true},
		{RoomID: 2, Error: "boom", ErrorKind: FixErrorWrite},
		{RoomID: 3, Error: "room 3: not found", ErrorKind: FixErrorNotFound},
		{RoomID: 4, Error: "lock timeout", ErrorKind: FixErrorLock},
	}}
	assert.Equal(t, []int64{2, 4}, res.FailedRoomIDs())
	assert.False(t, res.Details[2].Retryable())
}
