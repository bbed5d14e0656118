package models

import "time"

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

type FindingKind string

const (
	FindingDrift                FindingKind = "Drift"
	FindingDoubleBooking        FindingKind = "DoubleBooking"
	FindingOutOfServiceConflict FindingKind = "OutOfServiceConflict"
	FindingInvalidBooking       FindingKind = "InvalidBooking"
	FindingUnknownRoom          FindingKind = "UnknownRoom"
	FindingTenantMismatch       FindingKind = "TenantMismatch"
)

// BookingPair is an ordered pair of overlapping bookings; First starts no later than Second.
type BookingPair struct {
	First  Booking `json:"first"`
	Second Booking `json:"second"`
}

// Mismatch is one finding of a validation pass.
type Mismatch struct {
	Kind                 FindingKind        `json:"kind"`
	Severity             Severity           `json:"severity"`
	Repairable           bool               `json:"repairable"`
	RoomID               int64              `json:"room_id"`
	RoomNumber           string             `json:"room_number"`
	ActualStatus         OccupancyStatus    `json:"actual_status,omitempty"`
	ExpectedStatus       OccupancyStatus    `json:"expected_status,omitempty"`
	ActualHousekeeping   HousekeepingStatus `json:"actual_housekeeping,omitempty"`
	ExpectedHousekeeping HousekeepingStatus `json:"expected_housekeeping,omitempty"`
	Reason               string             `json:"reason"`
	BookingID            int64              `json:"booking_id,omitempty"`
	Conflict             *BookingPair       `json:"conflict,omitempty"`
	Messages             []string           `json:"messages,omitempty"`
}

type Report struct {
	TenantID    string     `json:"tenant_id"`
	GeneratedAt time.Time  `json:"generated_at"`
	Mismatches  []Mismatch `json:"mismatches"`
}

// Critical returns the findings that need an operator.
func (r Report) Critical() []Mismatch {
	var out []Mismatch
	for _, m := range r.Mismatches {
		if m.Severity == SeverityCritical {
			out = append(out, m)
		}
	}
	return out
}

func (r Report) Repairable() []Mismatch {
	var out []Mismatch
	for _, m := range r.Mismatches {
		if m.Repairable {
			out = append(out, m)
		}
	}
	return out
}

// FixDetail records one attempted room write.
type FixDetail struct {
	RoomID           int64              `json:"room_id"`
	RoomNumber       string             `json:"room_number"`
	From             OccupancyStatus    `json:"from"`
	To               OccupancyStatus    `json:"to"`
	HousekeepingFrom HousekeepingStatus `json:"housekeeping_from"`
	HousekeepingTo   HousekeepingStatus `json:"housekeeping_to"`
	Reason           string             `json:"reason"`
	Applied          bool               `json:"applied"`
	Error            string             `json:"error,omitempty"`
	ErrorKind        FixErrorKind       `json:"error_kind,omitempty"`
}

// FixErrorKind says which step of a room correction failed.
type FixErrorKind string

const (
	FixErrorLock     FixErrorKind = "lock"
	FixErrorRead     FixErrorKind = "read"
	FixErrorWrite    FixErrorKind = "write"
	FixErrorNotFound FixErrorKind = "not_found"
)

// Retryable is false for rooms that no longer exist.
func (d FixDetail) Retryable() bool {
	return !d.Applied && d.Error != "" && d.ErrorKind != FixErrorNotFound
}

type ReconcileResult struct {
	RunID          string      `json:"run_id"`
	TenantID       string      `json:"tenant_id"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`
	Fixed          int         `json:"fixed"`
	Failed         int         `json:"failed"`
	Details        []FixDetail `json:"details"`
	DoubleBookings []Mismatch  `json:"double_bookings,omitempty"`
	Findings       []Mismatch  `json:"findings,omitempty"`
}

// FailedRoomIDs lists rooms whose write did not go through and is worth
// another attempt. Rooms that vanished are left out.
func (r ReconcileResult) FailedRoomIDs() []int64 {
	var ids []int64
	for _, d := range r.Details {
		if d.Retryable() {
			ids = append(ids, d.RoomID)
		}
	}
	return ids
}

// ReconcileRun is the stored audit record of a ReconcileResult.
type ReconcileRun struct {
	RunID          string      `json:"run_id"`
	TenantID       string      `json:"tenant_id"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`
	Fixed          int         `json:"fixed"`
	Failed         int         `json:"failed"`
	DoubleBookings int         `json:"double_bookings"`
	Details        []FixDetail `json:"details"`
}
