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

const bookingColumns = `id, tenant_id, reservation_number, room_id, room_type_id, guest_name,
	adults, children, check_in_date, check_out_date, status, notes, version, created_at, updated_at`

// activeStatuses are the statuses that hold a room.
var activeStatuses = []interface{}{string(models.BookingConfirmed), string(models.BookingCheckedIn)}

func scanBooking(row scanner) (models.Booking, error) {
	var b models.Booking
	var checkIn, checkOut, status string
	err := row.Scan(&b.ID, &b.TenantID, &b.ReservationNumber, &b.RoomID, &b.RoomTypeID, &b.GuestName,
		&b.Adults, &b.Children, &checkIn, &checkOut, &status, &b.Notes, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return b, err
	}

	// битая дата остается нулевой: валидатор исключит бронь и сообщит о ней,
	// остальные комнаты тенанта все равно сверяются
	if d, perr := models.ParseDate(checkIn); perr == nil {
		b.CheckInDate = d
	}
	if d, perr := models.ParseDate(checkOut); perr == nil {
		b.CheckOutDate = d
	}

	// rows written by older clients may carry alias spellings
	if parsed, perr := models.ParseBookingStatus(status); perr == nil {
		b.Status = parsed
	} else {
		b.Status = models.BookingStatus(status)
	}
	return b, nil
}

func dateArg(t time.Time) string {
	return models.Date(t).Format(models.DateLayout)
}

func (db *DB) GetBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var where []string
	var args []interface{}
	if filter.TenantID != "" {
		where = append(where, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.RoomID != 0 {
		where = append(where, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) GetBooking(ctx context.Context, tenantID string, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? AND tenant_id = ?`, id, tenantID)
	b, err := scanBooking(row)
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

// overlapping lists active bookings on the room that intersect [in, out),
// ignoring excludeID.
func overlapping(ctx context.Context, tx *sql.Tx, b *models.Booking, excludeID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM bookings
		WHERE tenant_id = ? AND room_id = ? AND id != ?
		  AND status IN (?, ?)
		  AND check_in_date < ? AND check_out_date > ?
		ORDER BY check_in_date, id`,
		b.TenantID, b.RoomID, excludeID, activeStatuses[0], activeStatuses[1],
		dateArg(b.CheckOutDate), dateArg(b.CheckInDate))
	if err != nil {
		return nil, fmt.Errorf("failed to check overlaps in tx: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func roomExists(ctx context.Context, tx *sql.Tx, tenantID string, roomID int64) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ? AND tenant_id = ?`, roomID, tenantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("room %d: %w", roomID, domain.ErrNotFound)
	}
	return err
}

// CreateBookingWithLock inserts the booking unless an active booking already
// holds the room for an overlapping stay. Both steps share one transaction.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := roomExists(ctx, tx, booking.TenantID, booking.RoomID); err != nil {
		return err
	}

	if booking.Status.Active() {
		ids, err := overlapping(ctx, tx, booking, 0)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			return &domain.DoubleBookingConflict{RoomID: booking.RoomID, BookingIDs: ids}
		}
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx, `INSERT INTO bookings (
				tenant_id, reservation_number, room_id, room_type_id, guest_name, adults, children,
				check_in_date, check_out_date, status, notes, version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.TenantID,
		booking.ReservationNumber,
		booking.RoomID,
		booking.RoomTypeID,
		booking.GuestName,
		booking.Adults,
		booking.Children,
		dateArg(booking.CheckInDate),
		dateArg(booking.CheckOutDate),
		string(booking.Status),
		booking.Notes,
		1,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	if booking.ReservationNumber == "" {
		booking.ReservationNumber = models.ReservationNumberFor(id)
		if _, err := tx.ExecContext(ctx, `UPDATE bookings SET reservation_number = ? WHERE id = ?`,
			booking.ReservationNumber, id); err != nil {
			return fmt.Errorf("failed to set reservation number: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.CheckInDate = models.Date(booking.CheckInDate)
	booking.CheckOutDate = models.Date(booking.CheckOutDate)
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

// UpdateBookingWithVersion stores booking if its version is still current and
// an active booking does not collide with another one on the room.
func (db *DB) UpdateBookingWithVersion(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := roomExists(ctx, tx, booking.TenantID, booking.RoomID); err != nil {
		return err
	}

	if booking.Status.Active() {
		ids, err := overlapping(ctx, tx, booking, booking.ID)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			return &domain.DoubleBookingConflict{RoomID: booking.RoomID, BookingIDs: append([]int64{booking.ID}, ids...)}
		}
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx, `UPDATE bookings SET
			room_id = ?, room_type_id = ?, guest_name = ?, adults = ?, children = ?,
			check_in_date = ?, check_out_date = ?, status = ?, notes = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND version = ?`,
		booking.RoomID, booking.RoomTypeID, booking.GuestName, booking.Adults, booking.Children,
		dateArg(booking.CheckInDate), dateArg(booking.CheckOutDate), string(booking.Status), booking.Notes,
		now, booking.ID, booking.TenantID, booking.Version)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ? AND tenant_id = ?`,
			booking.ID, booking.TenantID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("booking %d: %w", booking.ID, domain.ErrNotFound)
		}
		return domain.ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking update: %w", err)
	}
	booking.Version++
	booking.UpdatedAt = now
	return nil
}

func (db *DB) UpdateBookingNotes(ctx context.Context, tenantID string, id int64, notes string) error {
	result, err := db.ExecContext(ctx, `UPDATE bookings SET notes = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`,
		notes, time.Now(), id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update booking notes: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
