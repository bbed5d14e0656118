package consistency

import (
	"time"

	"hotelsync/internal/models"
)

const (
	ReasonCheckedIn     = "checked in"
	ReasonUpcoming      = "reservation upcoming"
	ReasonCheckedOut    = "checked out"
	ReasonNoActive      = "no active booking"
	ReasonOutOfService  = "out of service"
	ReasonDoubleBooking = "double booking"
)

// Derivation is the room state implied by its bookings.
type Derivation struct {
	Occupancy    models.OccupancyStatus
	Housekeeping models.HousekeepingStatus
	Reason       string
}

// ImpliedOccupancyStatus maps a room's active bookings to the occupancy they
// imply at now. Check-in wins over an upcoming reservation; a reservation
// whose arrival day has passed without check-in implies nothing.
func ImpliedOccupancyStatus(active []models.Booking, now time.Time) models.OccupancyStatus {
	today := models.Date(now)

	reserved := false
	for _, b := range active {
		switch b.Status {
		case models.BookingCheckedIn:
			return models.OccupancyOccupied
		case models.BookingConfirmed:
			if !models.Date(b.CheckInDate).Before(today) {
				reserved = true
			}
		}
	}
	if reserved {
		return models.OccupancyReserved
	}
	return models.OccupancyAvailable
}

// ImpliedHousekeepingStatus marks a room DIRTY when its guest has just
// checked out. It never promotes a room back to CLEAN or INSPECTED.
func ImpliedHousekeepingStatus(room models.Room, roomBookings []models.Booking, occupancy models.OccupancyStatus) models.HousekeepingStatus {
	if room.HousekeepingStatus == models.HousekeepingOutOfOrder {
		return room.HousekeepingStatus
	}
	if checkoutPending(room, roomBookings, occupancy) {
		return models.HousekeepingDirty
	}
	return room.HousekeepingStatus
}

// Derive combines both mappings with the out-of-service override.
func Derive(room models.Room, roomBookings []models.Booking, now time.Time) Derivation {
	if room.OutOfService() {
		return Derivation{
			Occupancy:    room.OccupancyStatus,
			Housekeeping: room.HousekeepingStatus,
			Reason:       ReasonOutOfService,
		}
	}

	occupancy := ImpliedOccupancyStatus(activeOnly(roomBookings), now)
	d := Derivation{
		Occupancy:    occupancy,
		Housekeeping: ImpliedHousekeepingStatus(room, roomBookings, occupancy),
	}

	switch {
	case checkoutPending(room, roomBookings, occupancy):
		d.Reason = ReasonCheckedOut
	case occupancy == models.OccupancyOccupied:
		d.Reason = ReasonCheckedIn
	case occupancy == models.OccupancyReserved:
		d.Reason = ReasonUpcoming
	default:
		d.Reason = ReasonNoActive
	}
	return d
}

// checkoutPending is true while the room still shows the departed guest.
func checkoutPending(room models.Room, roomBookings []models.Booking, occupancy models.OccupancyStatus) bool {
	if room.OccupancyStatus != models.OccupancyOccupied || occupancy == models.OccupancyOccupied {
		return false
	}
	last, ok := lastEnded(roomBookings)
	return ok && last.Status == models.BookingCheckedOut
}

// lastEnded picks the terminal booking with the latest departure.
func lastEnded(bookings []models.Booking) (models.Booking, bool) {
	var last models.Booking
	found := false
	for _, b := range bookings {
		if !b.Status.Terminal() {
			continue
		}
		if !found || b.CheckOutDate.After(last.CheckOutDate) ||
			(b.CheckOutDate.Equal(last.CheckOutDate) && b.ID > last.ID) {
			last = b
			found = true
		}
	}
	return last, found
}

func activeOnly(bookings []models.Booking) []models.Booking {
	var out []models.Booking
	for _, b := range bookings {
		if b.Status.Active() {
			out = append(out, b)
		}
	}
	return out
}
