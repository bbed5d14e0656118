package consistency

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"hotelsync/internal/domain"
	"hotelsync/internal/models"
	"hotelsync/internal/validation"
)

// ValidateOptions tune a validation pass. The zero value is usable.
type ValidateOptions struct {
	// Now is the instant statuses are derived for; defaults to time.Now().
	Now time.Time
	// Less orders rooms in the report; defaults to ascending room number.
	Less func(a, b models.Room) bool
	// Bookings checks stored bookings before they are trusted.
	Bookings *validation.BookingValidator
}

func (o ValidateOptions) withDefaults() ValidateOptions {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Less == nil {
		o.Less = RoomNumberLess
	}
	if o.Bookings == nil {
		o.Bookings = validation.NewBookingValidator()
	}
	return o
}

// RoomNumberLess orders numeric room numbers numerically, everything else
// lexically, and falls back to the id.
func RoomNumberLess(a, b models.Room) bool {
	an, aerr := strconv.Atoi(a.Number)
	bn, berr := strconv.Atoi(b.Number)
	switch {
	case aerr == nil && berr == nil && an != bn:
		return an < bn
	case aerr == nil && berr != nil:
		return true
	case aerr != nil && berr == nil:
		return false
	case a.Number != b.Number:
		return a.Number < b.Number
	}
	return a.ID < b.ID
}

// Validate compares every room's stored status with the status its bookings
// imply and reports each mismatch. It never modifies rooms or bookings.
func Validate(rooms []models.Room, bookings []models.Booking, opts ValidateOptions) models.Report {
	opts = opts.withDefaults()

	tenants := tenantsOf(rooms, bookings)
	report := models.Report{GeneratedAt: opts.Now}
	if len(tenants) > 1 {
		report.Mismatches = []models.Mismatch{{
			Kind:     models.FindingTenantMismatch,
			Severity: models.SeverityCritical,
			Reason:   fmt.Sprintf("records from tenants %v in one pass", tenants),
		}}
		return report
	}
	if len(tenants) == 1 {
		report.TenantID = tenants[0]
	}

	ordered := make([]models.Room, len(rooms))
	copy(ordered, rooms)
	sort.SliceStable(ordered, func(i, j int) bool { return opts.Less(ordered[i], ordered[j]) })

	byRoom := make(map[int64][]models.Booking)
	for _, b := range bookings {
		byRoom[b.RoomID] = append(byRoom[b.RoomID], b)
	}

	known := make(map[int64]bool, len(ordered))
	for _, room := range ordered {
		known[room.ID] = true
		report.Mismatches = append(report.Mismatches, checkRoom(room, byRoom[room.ID], opts)...)
	}

	var orphans []models.Booking
	for _, b := range bookings {
		if !known[b.RoomID] {
			orphans = append(orphans, b)
		}
	}
	sort.SliceStable(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })
	for _, b := range orphans {
		if msgs := opts.Bookings.Validate(b); len(msgs) > 0 {
			report.Mismatches = append(report.Mismatches, invalidBooking(models.Room{ID: b.RoomID}, b, msgs))
			continue
		}
		report.Mismatches = append(report.Mismatches, models.Mismatch{
			Kind:      models.FindingUnknownRoom,
			Severity:  models.SeverityWarning,
			RoomID:    b.RoomID,
			BookingID: b.ID,
			Reason:    fmt.Sprintf("booking %d references unknown room %d", b.ID, b.RoomID),
		})
	}

	return report
}

// ValidateTenant is Validate restricted to one tenant's records.
func ValidateTenant(tenantID string, rooms []models.Room, bookings []models.Booking, opts ValidateOptions) (models.Report, error) {
	if err := sameTenant(tenantID, rooms, bookings); err != nil {
		return models.Report{}, err
	}
	report := Validate(rooms, bookings, opts)
	report.TenantID = tenantID
	return report, nil
}

// CheckRoom validates one room against its bookings.
func CheckRoom(room models.Room, roomBookings []models.Booking, opts ValidateOptions) []models.Mismatch {
	return checkRoom(room, roomBookings, opts.withDefaults())
}

func checkRoom(room models.Room, roomBookings []models.Booking, opts ValidateOptions) []models.Mismatch {
	var out []models.Mismatch

	sorted := make([]models.Booking, len(roomBookings))
	copy(sorted, roomBookings)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var valid []models.Booking
	for _, b := range sorted {
		if msgs := opts.Bookings.Validate(b); len(msgs) > 0 {
			out = append(out, invalidBooking(room, b, msgs))
			continue
		}
		valid = append(valid, b)
	}

	active := activeOnly(valid)
	naive := Derive(room, valid, opts.Now)

	if pairs := DetectOverlaps(active); len(pairs) > 0 {
		for i := range pairs {
			pair := pairs[i]
			out = append(out, models.Mismatch{
				Kind:                 models.FindingDoubleBooking,
				Severity:             models.SeverityCritical,
				RoomID:               room.ID,
				RoomNumber:           room.Number,
				ActualStatus:         room.OccupancyStatus,
				ExpectedStatus:       naive.Occupancy,
				ActualHousekeeping:   room.HousekeepingStatus,
				ExpectedHousekeeping: naive.Housekeeping,
				Reason: fmt.Sprintf("%s: bookings %d and %d overlap",
					ReasonDoubleBooking, pair.First.ID, pair.Second.ID),
				Conflict: &pair,
			})
		}
		return out
	}

	if room.OutOfService() {
		if len(active) > 0 {
			out = append(out, models.Mismatch{
				Kind:           models.FindingOutOfServiceConflict,
				Severity:       models.SeverityWarning,
				RoomID:         room.ID,
				RoomNumber:     room.Number,
				ActualStatus:   room.OccupancyStatus,
				ExpectedStatus: room.OccupancyStatus,
				Reason:         fmt.Sprintf("%d active booking(s) on a room that is out of service", len(active)),
			})
		}
		return out
	}

	if naive.Occupancy != room.OccupancyStatus || naive.Housekeeping != room.HousekeepingStatus {
		out = append(out, models.Mismatch{
			Kind:                 models.FindingDrift,
			Severity:             models.SeverityInfo,
			Repairable:           true,
			RoomID:               room.ID,
			RoomNumber:           room.Number,
			ActualStatus:         room.OccupancyStatus,
			ExpectedStatus:       naive.Occupancy,
			ActualHousekeeping:   room.HousekeepingStatus,
			ExpectedHousekeeping: naive.Housekeeping,
			Reason:               naive.Reason,
		})
	}
	return out
}

func invalidBooking(room models.Room, b models.Booking, msgs []string) models.Mismatch {
	return models.Mismatch{
		Kind:       models.FindingInvalidBooking,
		Severity:   models.SeverityWarning,
		RoomID:     room.ID,
		RoomNumber: room.Number,
		BookingID:  b.ID,
		Reason:     fmt.Sprintf("booking %d excluded from status derivation", b.ID),
		Messages:   msgs,
	}
}

func tenantsOf(rooms []models.Room, bookings []models.Booking) []string {
	seen := make(map[string]bool)
	for _, r := range rooms {
		if r.TenantID != "" {
			seen[r.TenantID] = true
		}
	}
	for _, b := range bookings {
		if b.TenantID != "" {
			seen[b.TenantID] = true
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func sameTenant(tenantID string, rooms []models.Room, bookings []models.Booking) error {
	for _, r := range rooms {
		if r.TenantID != tenantID {
			return fmt.Errorf("%w: room %d belongs to %q, not %q", domain.ErrTenantMismatch, r.ID, r.TenantID, tenantID)
		}
	}
	for _, b := range bookings {
		if b.TenantID != "" && b.TenantID != tenantID {
			return fmt.Errorf("%w: booking %d belongs to %q, not %q", domain.ErrTenantMismatch, b.ID, b.TenantID, tenantID)
		}
	}
	return nil
}
