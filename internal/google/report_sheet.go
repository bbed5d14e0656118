package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"hotelsync/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	runsSheet  = "Runs"
	fixesSheet = "Fixes"

	timestampLayout = "2006-01-02 15:04:05"
)

// ReportSheet appends a line per reconcile run, and a line per attempted
// room write, to a spreadsheet shared with the operations team.
type ReportSheet struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewReportSheet(ctx context.Context, credentialsFile, spreadsheetID string) (*ReportSheet, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return NewReportSheetWithService(srv, spreadsheetID), nil
}

// NewReportSheetWithService wraps an already configured Sheets client.
func NewReportSheetWithService(srv *sheets.Service, spreadsheetID string) *ReportSheet {
	return &ReportSheet{service: srv, spreadsheetID: spreadsheetID}
}

// TestConnection проверяет доступ к таблице
func (s *ReportSheet) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, runsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail returns the address the spreadsheet must be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// RecordRun appends the summary of result and its fix details.
func (s *ReportSheet) RecordRun(ctx context.Context, result *models.ReconcileResult) error {
	if result == nil {
		return fmt.Errorf("reconcile result is nil")
	}

	if err := s.appendRows(ctx, runsSheet, [][]interface{}{runRowValues(result)}); err != nil {
		return fmt.Errorf("append run: %w", err)
	}

	if len(result.Details) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(result.Details))
	for _, d := range result.Details {
		rows = append(rows, fixRowValues(result, d))
	}
	if err := s.appendRows(ctx, fixesSheet, rows); err != nil {
		return fmt.Errorf("append fixes: %w", err)
	}
	return nil
}

func (s *ReportSheet) appendRows(ctx context.Context, sheet string, rows [][]interface{}) error {
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, sheet+"!A:A", &sheets.ValueRange{
		Values: rows,
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func runRowValues(r *models.ReconcileResult) []interface{} {
	return []interface{}{
		r.RunID,
		r.TenantID,
		r.StartedAt.Format(timestampLayout),
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
		r.Fixed,
		r.Failed,
		len(r.DoubleBookings),
		len(r.Findings),
	}
}

func fixRowValues(r *models.ReconcileResult, d models.FixDetail) []interface{} {
	return []interface{}{
		r.RunID,
		r.TenantID,
		d.RoomNumber,
		string(d.From),
		string(d.To),
		string(d.HousekeepingFrom),
		string(d.HousekeepingTo),
		d.Reason,
		d.Applied,
		d.Error,
	}
}
