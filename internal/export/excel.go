package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hotelsync/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	FindingsSheet = "Findings"
	FixesSheet    = "Fixes"
)

var findingHeaders = []string{
	"Room", "Kind", "Severity", "Repairable", "Stored status", "Implied status",
	"Stored housekeeping", "Implied housekeeping", "Reason", "Bookings",
}

var fixHeaders = []string{
	"Room", "From", "To", "Housekeeping from", "Housekeeping to", "Reason", "Applied", "Error",
}

var severityColors = map[models.Severity]string{
	models.SeverityCritical: "#F8CBAD",
	models.SeverityWarning:  "#FFE699",
	models.SeverityInfo:     "#E2EFDA",
}

// FileName is the default report name for a tenant at t.
func FileName(tenantID string, t time.Time) string {
	return fmt.Sprintf("consistency_%s_%s.xlsx", tenantID, t.Format("2006-01-02_1504"))
}

// WriteReport saves the validation report, and the fixes of result when it
// is not nil, as an xlsx workbook at path.
func WriteReport(path string, report models.Report, result *models.ReconcileResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating export directory: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(FindingsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	title := fmt.Sprintf("Tenant %s, generated %s", report.TenantID, report.GeneratedAt.Format("02.01.2006 15:04"))
	if err := writeTitle(f, FindingsSheet, title, len(findingHeaders)); err != nil {
		return err
	}
	if err := writeHeaders(f, FindingsSheet, findingHeaders); err != nil {
		return err
	}
	if err := writeFindings(f, report.Mismatches); err != nil {
		return err
	}
	_ = f.SetColWidth(FindingsSheet, "A", "H", 18)
	_ = f.SetColWidth(FindingsSheet, "I", "J", 45)

	if result != nil {
		if _, err := f.NewSheet(FixesSheet); err != nil {
			return fmt.Errorf("error creating sheet: %w", err)
		}
		title := fmt.Sprintf("Run %s: %d fixed, %d failed", result.RunID, result.Fixed, result.Failed)
		if err := writeTitle(f, FixesSheet, title, len(fixHeaders)); err != nil {
			return err
		}
		if err := writeHeaders(f, FixesSheet, fixHeaders); err != nil {
			return err
		}
		if err := writeFixes(f, result.Details); err != nil {
			return err
		}
		_ = f.SetColWidth(FixesSheet, "A", "G", 18)
		_ = f.SetColWidth(FixesSheet, "H", "H", 45)
	}

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("error saving file: %w", err)
	}
	return nil
}

func writeTitle(f *excelize.File, sheet, title string, width int) error {
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(width, 1)
	_ = f.MergeCell(sheet, "A1", last)
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", "A1", style)
}

func writeHeaders(f *excelize.File, sheet string, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 2)
	return f.SetCellStyle(sheet, "A2", last, style)
}

func writeFindings(f *excelize.File, mismatches []models.Mismatch) error {
	styles := make(map[models.Severity]int)
	for sev, color := range severityColors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return err
		}
		styles[sev] = id
	}

	for i, m := range mismatches {
		row := i + 3
		values := []interface{}{
			m.RoomNumber, string(m.Kind), string(m.Severity), yesNo(m.Repairable),
			string(m.ActualStatus), string(m.ExpectedStatus),
			string(m.ActualHousekeeping), string(m.ExpectedHousekeeping),
			reasonText(m), bookingsText(m),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(FindingsSheet, start, &values); err != nil {
			return err
		}
		if id, ok := styles[m.Severity]; ok {
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			_ = f.SetCellStyle(FindingsSheet, start, end, id)
		}
	}
	return nil
}

func writeFixes(f *excelize.File, details []models.FixDetail) error {
	for i, d := range details {
		values := []interface{}{
			d.RoomNumber, string(d.From), string(d.To),
			string(d.HousekeepingFrom), string(d.HousekeepingTo),
			d.Reason, yesNo(d.Applied), d.Error,
		}
		start, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(FixesSheet, start, &values); err != nil {
			return err
		}
	}
	return nil
}

func reasonText(m models.Mismatch) string {
	if len(m.Messages) == 0 {
		return m.Reason
	}
	return m.Reason + ": " + strings.Join(m.Messages, "; ")
}

func bookingsText(m models.Mismatch) string {
	switch {
	case m.Conflict != nil:
		return fmt.Sprintf("%s, %s", describe(m.Conflict.First), describe(m.Conflict.Second))
	case m.BookingID != 0:
		return fmt.Sprintf("#%d", m.BookingID)
	}
	return ""
}

func describe(b models.Booking) string {
	return fmt.Sprintf("#%d %s %s..%s", b.ID, b.GuestName,
		b.CheckInDate.Format("02.01"), b.CheckOutDate.Format("02.01"))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
