package database

import (
	"context"
	"fmt"

	"hotelsync/internal/models"
)

// SaveReconcileRun stores a run summary with one row per attempted room write.
func (db *DB) SaveReconcileRun(ctx context.Context, result *models.ReconcileResult) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO reconcile_runs
			(run_id, tenant_id, started_at, finished_at, fixed, failed, double_bookings)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.TenantID, result.StartedAt, result.FinishedAt,
		result.Fixed, result.Failed, len(result.DoubleBookings))
	if err != nil {
		return fmt.Errorf("failed to save reconcile run: %w", err)
	}

	for _, d := range result.Details {
		_, err := tx.ExecContext(ctx, `INSERT INTO reconcile_details
				(run_id, room_id, room_number, from_status, to_status, housekeeping_from, housekeeping_to, reason, applied, error, error_kind)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.RunID, d.RoomID, d.RoomNumber, string(d.From), string(d.To),
			string(d.HousekeepingFrom), string(d.HousekeepingTo), d.Reason, d.Applied, d.Error, string(d.ErrorKind))
		if err != nil {
			return fmt.Errorf("failed to save reconcile detail: %w", err)
		}
	}

	return tx.Commit()
}

// RecentReconcileRuns returns the latest runs of a tenant, newest first, with
// their details. Double-booking findings are not stored, only counted.
func (db *DB) RecentReconcileRuns(ctx context.Context, tenantID string, limit int) ([]models.ReconcileRun, error) {
	rows, err := db.QueryContext(ctx, `SELECT run_id, tenant_id, started_at, finished_at, fixed, failed, double_bookings
		FROM reconcile_runs WHERE tenant_id = ? ORDER BY started_at DESC, run_id LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get reconcile runs: %w", err)
	}

	var runs []models.ReconcileRun
	for rows.Next() {
		var r models.ReconcileRun
		if err := rows.Scan(&r.RunID, &r.TenantID, &r.StartedAt, &r.FinishedAt, &r.Fixed, &r.Failed, &r.DoubleBookings); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan reconcile run: %w", err)
		}
		runs = append(runs, r)
	}
	// the single connection must be free before the detail queries
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		details, err := db.reconcileDetails(ctx, runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].Details = details
	}
	return runs, nil
}

func (db *DB) reconcileDetails(ctx context.Context, runID string) ([]models.FixDetail, error) {
	rows, err := db.QueryContext(ctx, `SELECT room_id, room_number, from_status, to_status,
			housekeeping_from, housekeeping_to, reason, applied, error, error_kind
		FROM reconcile_details WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reconcile details: %w", err)
	}
	defer rows.Close()

	var details []models.FixDetail
	for rows.Next() {
		var d models.FixDetail
		var from, to, hkFrom, hkTo, kind string
		if err := rows.Scan(&d.RoomID, &d.RoomNumber, &from, &to, &hkFrom, &hkTo, &d.Reason, &d.Applied, &d.Error, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan reconcile detail: %w", err)
		}
		d.From, d.To = models.OccupancyStatus(from), models.OccupancyStatus(to)
		d.HousekeepingFrom, d.HousekeepingTo = models.HousekeepingStatus(hkFrom), models.HousekeepingStatus(hkTo)
		d.ErrorKind = models.FixErrorKind(kind)
		details = append(details, d)
	}
	return details, rows.Err()
}
