package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrDoubleBooking          = errors.New("double booking")
	ErrNotFound               = errors.New("not found")
	ErrPersistence            = errors.New("persistence failed")
	ErrIllegalTransition      = errors.New("illegal status transition")
	ErrTerminalBooking        = errors.New("booking is in a terminal state")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrTenantMismatch         = errors.New("records from different tenants")
)

// ValidationError carries every field-level violation of a rejected booking.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DoubleBookingConflict names active bookings whose stays intersect on one room.
type DoubleBookingConflict struct {
	RoomID     int64
	BookingIDs []int64
}

func (e *DoubleBookingConflict) Error() string {
	return fmt.Sprintf("double booking on room %d: bookings %v", e.RoomID, e.BookingIDs)
}

func (e *DoubleBookingConflict) Is(target error) bool { return target == ErrDoubleBooking }

// PersistenceError wraps a store write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
