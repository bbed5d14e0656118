package models

import (
	"fmt"
	"strings"
)

type BookingStatus string

const (
	BookingInquiry    BookingStatus = "INQUIRY"
	BookingTentative  BookingStatus = "TENTATIVE"
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingCheckedIn  BookingStatus = "CHECKED_IN"
	BookingCheckedOut BookingStatus = "CHECKED_OUT"
	BookingCancelled  BookingStatus = "CANCELLED"
	BookingNoShow     BookingStatus = "NO_SHOW"
)

type OccupancyStatus string

const (
	OccupancyAvailable    OccupancyStatus = "AVAILABLE"
	OccupancyReserved     OccupancyStatus = "RESERVED"
	OccupancyOccupied     OccupancyStatus = "OCCUPIED"
	OccupancyOutOfService OccupancyStatus = "OUT_OF_SERVICE"
)

type HousekeepingStatus string

const (
	HousekeepingClean      HousekeepingStatus = "CLEAN"
	HousekeepingDirty      HousekeepingStatus = "DIRTY"
	HousekeepingInspected  HousekeepingStatus = "INSPECTED"
	HousekeepingOutOfOrder HousekeepingStatus = "OUT_OF_ORDER"
)

// bookingStatusAliases maps normalized spellings seen across intake channels
// to the canonical status.
var bookingStatusAliases = map[string]BookingStatus{
	"INQUIRY":     BookingInquiry,
	"ENQUIRY":     BookingInquiry,
	"TENTATIVE":   BookingTentative,
	"PENDING":     BookingTentative,
	"HOLD":        BookingTentative,
	"CONFIRMED":   BookingConfirmed,
	"RESERVED":    BookingConfirmed,
	"BOOKED":      BookingConfirmed,
	"CHECKED_IN":  BookingCheckedIn,
	"CHECKEDIN":   BookingCheckedIn,
	"IN_HOUSE":    BookingCheckedIn,
	"CHECKED_OUT": BookingCheckedOut,
	"CHECKEDOUT":  BookingCheckedOut,
	"CANCELLED":   BookingCancelled,
	"CANCELED":    BookingCancelled,
	"NO_SHOW":     BookingNoShow,
	"NOSHOW":      BookingNoShow,
}

var occupancyAliases = map[string]OccupancyStatus{
	"AVAILABLE":      OccupancyAvailable,
	"VACANT":         OccupancyAvailable,
	"RESERVED":       OccupancyReserved,
	"OCCUPIED":       OccupancyOccupied,
	"OUT_OF_SERVICE": OccupancyOutOfService,
	"MAINTENANCE":    OccupancyOutOfService,
}

var housekeepingAliases = map[string]HousekeepingStatus{
	"CLEAN":        HousekeepingClean,
	"DIRTY":        HousekeepingDirty,
	"INSPECTED":    HousekeepingInspected,
	"OUT_OF_ORDER": HousekeepingOutOfOrder,
}

func normalizeStatus(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}

// ParseBookingStatus maps any known spelling of a booking status to its
// canonical value.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	if st, ok := bookingStatusAliases[normalizeStatus(raw)]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown booking status %q", raw)
}

func ParseOccupancyStatus(raw string) (OccupancyStatus, error) {
	if st, ok := occupancyAliases[normalizeStatus(raw)]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown occupancy status %q", raw)
}

func ParseHousekeepingStatus(raw string) (HousekeepingStatus, error) {
	if st, ok := housekeepingAliases[normalizeStatus(raw)]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown housekeeping status %q", raw)
}

// Valid reports whether s is one of the canonical booking statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingInquiry, BookingTentative, BookingConfirmed, BookingCheckedIn,
		BookingCheckedOut, BookingCancelled, BookingNoShow:
		return true
	}
	return false
}

// Active bookings occupy, or will occupy, their room.
func (s BookingStatus) Active() bool {
	return s == BookingConfirmed || s == BookingCheckedIn
}

func (s BookingStatus) Terminal() bool {
	return s == BookingCheckedOut || s == BookingCancelled || s == BookingNoShow
}

func (s OccupancyStatus) Valid() bool {
	switch s {
	case OccupancyAvailable, OccupancyReserved, OccupancyOccupied, OccupancyOutOfService:
		return true
	}
	return false
}

func (s HousekeepingStatus) Valid() bool {
	switch s {
	case HousekeepingClean, HousekeepingDirty, HousekeepingInspected, HousekeepingOutOfOrder:
		return true
	}
	return false
}
