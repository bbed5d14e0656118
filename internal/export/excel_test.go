package export

import (
	"path/filepath"
	"testing"
	"time"

	"hotelsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteReport(t *testing.T) {
	in := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	x := models.Booking{ID: 1, GuestName: "X", CheckInDate: in, CheckOutDate: in.AddDate(0, 0, 2)}
	y := models.Booking{ID: 2, GuestName: "Y", CheckInDate: in.AddDate(0, 0, 1), CheckOutDate: in.AddDate(0, 0, 3)}

	report := models.Report{
		TenantID:    "grand",
		GeneratedAt: in,
		Mismatches: []models.Mismatch{
			{Kind: models.FindingDoubleBooking, Severity: models.SeverityCritical, RoomNumber: "101",
				Reason: "double booking: bookings 1 and 2 overlap", Conflict: &models.BookingPair{First: x, Second: y}},
			{Kind: models.FindingDrift, Severity: models.SeverityInfo, Repairable: true, RoomNumber: "102",
				ActualStatus: models.OccupancyOccupied, ExpectedStatus: models.OccupancyAvailable, Reason: "checked out"},
			{Kind: models.FindingInvalidBooking, Severity: models.SeverityWarning, RoomNumber: "103", BookingID: 9,
				Reason: "booking 9 excluded", Messages: []string{"check_out_date must be after check_in_date"}},
		},
	}
	result := &models.ReconcileResult{
		RunID: "run-1",
		Fixed: 1,
		Details: []models.FixDetail{{RoomNumber: "102", From: models.OccupancyOccupied, To: models.OccupancyAvailable,
			Reason: "checked out", Applied: true}},
	}

	path := filepath.Join(t.TempDir(), "nested", FileName("grand", in))
	require.NoError(t, WriteReport(path, report, result))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{FindingsSheet, FixesSheet}, f.GetSheetList())

	rows, err := f.GetRows(FindingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Room", rows[1][0])
	assert.Equal(t, "101", rows[2][0])
	assert.Equal(t, "DoubleBooking", rows[2][1])
	assert.Equal(t, "no", rows[2][3])
	assert.Equal(t, "#1 X 10.01..12.01, #2 Y 11.01..13.01", rows[2][9])
	assert.Equal(t, "yes", rows[3][3])
	assert.Equal(t, "booking 9 excluded: check_out_date must be after check_in_date", rows[4][8])
	assert.Equal(t, "#9", rows[4][9])

	fixes, err := f.GetRows(FixesSheet)
	require.NoError(t, err)
	require.Len(t, fixes, 3)
	require.GreaterOrEqual(t, len(fixes[2]), 7)
	assert.Equal(t, []string{"102", "OCCUPIED", "AVAILABLE"}, fixes[2][:3])
	assert.Equal(t, "checked out", fixes[2][5])
	assert.Equal(t, "yes", fixes[2][6])
}

func TestWriteReport_WithoutFixes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteReport(path, models.Report{TenantID: "grand"}, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{FindingsSheet}, f.GetSheetList())
}

func TestFileName(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	assert.Equal(t, "consistency_grand_2024-03-05_1407.xlsx", FileName("grand", at))
}
