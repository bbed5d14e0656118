package validation

import (
	"fmt"

	"hotelsync/internal/domain"
	"hotelsync/internal/models"
)

var allowedTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingInquiry:   {models.BookingTentative, models.BookingConfirmed, models.BookingCancelled},
	models.BookingTentative: {models.BookingConfirmed, models.BookingCancelled},
	models.BookingConfirmed: {models.BookingCheckedIn, models.BookingCancelled, models.BookingNoShow},
	models.BookingCheckedIn: {models.BookingCheckedOut},
}

// ValidateTransition checks that a booking may move from one lifecycle status
// to another. Staying in the same non-terminal status is allowed.
func ValidateTransition(from, to models.BookingStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrIllegalTransition, to)
	}
	if from.Terminal() {
		return fmt.Errorf("%w: %s", domain.ErrTerminalBooking, from)
	}
	if from == to {
		return nil
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, from, to)
}
