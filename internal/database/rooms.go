package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotelsync/internal/domain"
	"hotelsync/internal/models"
)

const roomColumns = `id, tenant_id, number, floor, room_type_id, occupancy_status,
	housekeeping_status, version, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row scanner) (models.Room, error) {
	var r models.Room
	var occ, hk string
	err := row.Scan(&r.ID, &r.TenantID, &r.Number, &r.Floor, &r.RoomTypeID, &occ, &hk,
		&r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	// legacy spellings are mapped on the way in; unknown values pass through and surface as drift
	if parsed, perr := models.ParseOccupancyStatus(occ); perr == nil {
		r.OccupancyStatus = parsed
	} else {
		r.OccupancyStatus = models.OccupancyStatus(occ)
	}
	if parsed, perr := models.ParseHousekeepingStatus(hk); perr == nil {
		r.HousekeepingStatus = parsed
	} else {
		r.HousekeepingStatus = models.HousekeepingStatus(hk)
	}
	return r, nil
}

func (db *DB) GetRooms(ctx context.Context, filter models.RoomFilter) ([]models.Room, error) {
	var where []string
	var args []interface{}
	if filter.TenantID != "" {
		where = append(where, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if len(filter.RoomIDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(filter.RoomIDs))+")")
		for _, id := range filter.RoomIDs {
			args = append(args, id)
		}
	}

	query := `SELECT ` + roomColumns + ` FROM rooms`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get rooms: %w", err)
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func (db *DB) GetRoom(ctx context.Context, tenantID string, id int64) (*models.Room, error) {
	row := db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ? AND tenant_id = ?`, id, tenantID)
	r, err := scanRoom(row)
	if err != nil {
		return nil, notFound(err, "room", id)
	}
	return &r, nil
}

// GetRoomByNumber looks a room up by its display number.
func (db *DB) GetRoomByNumber(ctx context.Context, tenantID, number string) (*models.Room, error) {
	row := db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE tenant_id = ? AND number = ?`, tenantID, number)
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", number, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", number, err)
	}
	return &r, nil
}

// UpdateRoom writes the non-nil fields of patch and bumps the version.
func (db *DB) UpdateRoom(ctx context.Context, tenantID string, id int64, patch models.RoomPatch) (*models.Room, error) {
	if patch.Empty() {
		return db.GetRoom(ctx, tenantID, id)
	}

	sets := []string{"version = version + 1", "updated_at = ?"}
	args := []interface{}{time.Now()}
	if patch.OccupancyStatus != nil {
		sets = append(sets, "occupancy_status = ?")
		args = append(args, string(*patch.OccupancyStatus))
	}
	if patch.HousekeepingStatus != nil {
		sets = append(sets, "housekeeping_status = ?")
		args = append(args, string(*patch.HousekeepingStatus))
	}
	args = append(args, id, tenantID)

	result, err := db.ExecContext(ctx,
		`UPDATE rooms SET `+strings.Join(sets, ", ")+` WHERE id = ? AND tenant_id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update room %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("room %d: %w", id, domain.ErrNotFound)
	}
	return db.GetRoom(ctx, tenantID, id)
}

// SyncRooms upserts inventory by (tenant, number). Descriptive fields are
// overwritten; statuses of existing rooms are left to the reconciler.
func (db *DB) SyncRooms(ctx context.Context, rooms []models.Room) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rooms (tenant_id, number, floor, room_type_id, occupancy_status, housekeeping_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, number) DO UPDATE SET
			floor = excluded.floor,
			room_type_id = excluded.room_type_id,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare room sync: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range rooms {
		occ := r.OccupancyStatus
		if !occ.Valid() {
			occ = models.OccupancyAvailable
		}
		hk := r.HousekeepingStatus
		if !hk.Valid() {
			hk = models.HousekeepingClean
		}
		if _, err := stmt.ExecContext(ctx, r.TenantID, r.Number, r.Floor, r.RoomTypeID, string(occ), string(hk), now, now); err != nil {
			return fmt.Errorf("failed to sync room %s/%s: %w", r.TenantID, r.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit room sync: %w", err)
	}
	db.logger.Info().Int("rooms", len(rooms)).Msg("Room inventory synced")
	return nil
}
