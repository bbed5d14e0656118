package models

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

type Booking struct {
	ID                int64         `json:"id"`
	TenantID          string        `json:"tenant_id" validate:"required"`
	ReservationNumber string        `json:"reservation_number"`
	RoomID            int64         `json:"room_id" validate:"required"`
	RoomTypeID        int64         `json:"room_type_id,omitempty"`
	GuestName         string        `json:"guest_name" validate:"required"`
	Adults            int           `json:"adults" validate:"min=1"`
	Children          int           `json:"children" validate:"min=0"`
	CheckInDate       time.Time     `json:"check_in_date" validate:"required"`
	CheckOutDate      time.Time     `json:"check_out_date" validate:"required,gtfield=CheckInDate"`
	Status            BookingStatus `json:"status" validate:"booking_status"`
	Notes             string        `json:"notes,omitempty"`
	Version           int64         `json:"version"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Nights is the number of nights covered by the stay.
func (b Booking) Nights() int {
	return int(b.CheckOutDate.Sub(b.CheckInDate).Hours() / 24)
}

// ReservationNumberFor renders the display reservation number of a stored row.
func ReservationNumberFor(id int64) string {
	return fmt.Sprintf("R-%06d", id)
}

// Date truncates t to its calendar day in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
