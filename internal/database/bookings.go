package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cabanas/internal/models"
)

// Ranges are half-open [start, end): two ranges overlap when
// a.start < b.end AND a.end > b.start. Dates are stored as YYYY-MM-DD
// text, timestamps in UTC.

const bookingColumns = `id, unit_id, unit_name, start_date, end_date, party_size,
        jacuzzi_days, towels, status,
        price_nights, price_base, price_extra_guests, price_jacuzzi, price_towels, price_total,
        customer_name, customer_email, customer_phone,
        expires_at, paid_at, canceled_at, flow_order_id, payment_token, gateway_status,
        created_at, updated_at`

// CreateHold inserts a pending booking after re-checking overlap inside
// the same transaction. The earlier availability read in the service
// layer is advisory only; this re-check under SQLite's serialized writer
// is what actually prevents two customers from holding the same dates.
func (db *DB) CreateHold(ctx context.Context, booking *models.Booking, now time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	startStr := booking.StartDate.Format(models.DateLayout)
	endStr := booking.EndDate.Format(models.DateLayout)

	var conflicts int
	queryConflicts := `SELECT COUNT(*) FROM bookings
        WHERE unit_id = ? AND start_date < ? AND end_date > ?
          AND (status = ? OR (status = ? AND expires_at > ?))`
	err = tx.QueryRowContext(ctx, queryConflicts,
		booking.UnitID, endStr, startStr,
		models.StatusPaid, models.StatusPending, now.UTC()).Scan(&conflicts)
	if err != nil {
		return fmt.Errorf("failed to check booking overlap in tx: %w", err)
	}
	if conflicts > 0 {
		return ErrDatesUnavailable
	}

	var blocked int
	queryBlocked := `SELECT COUNT(*) FROM admin_blocks
        WHERE unit_id = ? AND start_date < ? AND end_date > ?`
	err = tx.QueryRowContext(ctx, queryBlocked, booking.UnitID, endStr, startStr).Scan(&blocked)
	if err != nil {
		return fmt.Errorf("failed to check block overlap in tx: %w", err)
	}
	if blocked > 0 {
		return ErrDatesUnavailable
	}

	jacuzziDays, err := json.Marshal(booking.JacuzziDays)
	if err != nil {
		return fmt.Errorf("failed to encode jacuzzi days: %w", err)
	}

	nowUTC := now.UTC()
	queryInsert := `INSERT INTO bookings (
            id, unit_id, unit_name, start_date, end_date, party_size,
            jacuzzi_days, towels, status,
            price_nights, price_base, price_extra_guests, price_jacuzzi, price_towels, price_total,
            customer_name, customer_email, customer_phone,
            expires_at, flow_order_id, payment_token, gateway_status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', '', ?, ?)`
	_, err = tx.ExecContext(ctx, queryInsert,
		booking.ID, booking.UnitID, booking.UnitName, startStr, endStr, booking.PartySize,
		string(jacuzziDays), booking.Towels, models.StatusPending,
		booking.Price.Nights, booking.Price.Base, booking.Price.ExtraGuests,
		booking.Price.Jacuzzi, booking.Price.Towels, booking.Price.Total,
		booking.CustomerName, booking.CustomerEmail, booking.CustomerPhone,
		booking.ExpiresAt.UTC(), nowUTC, nowUTC,
	)
	if err != nil {
		return fmt.Errorf("failed to insert hold in tx: %w", err)
	}

	booking.Status = models.StatusPending
	booking.CreatedAt = nowUTC
	booking.UpdatedAt = nowUTC

	return tx.Commit()
}

// ExpireStaleHolds flips every lapsed pending hold for the unit to
// expired. Idempotent and safe against a concurrent paid transition: both
// sides condition on status='pending', whoever commits first wins and the
// loser matches zero rows.
func (db *DB) ExpireStaleHolds(ctx context.Context, unitID int64, now time.Time) (int64, error) {
	query := `UPDATE bookings SET status = ?, updated_at = ?
        WHERE unit_id = ? AND status = ? AND expires_at IS NOT NULL AND expires_at < ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusExpired, now.UTC(), unitID, models.StatusPending, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale holds: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// ExpireAllStaleHolds is the cross-unit variant used by the sweep job.
func (db *DB) ExpireAllStaleHolds(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE bookings SET status = ?, updated_at = ?
        WHERE status = ? AND expires_at IS NOT NULL AND expires_at < ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusExpired, now.UTC(), models.StatusPending, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale holds: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// MarkPaid performs the conditional pending→paid transition. Zero rows
// affected means another entry point got there first (or the booking is
// unknown); the caller must not repeat side effects like the
// confirmation email.
func (db *DB) MarkPaid(ctx context.Context, id string, paidAt time.Time, payload string) error {
	query := `UPDATE bookings SET status = ?, expires_at = NULL, paid_at = ?, gateway_status = ?, updated_at = ?
        WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusPaid, paidAt.UTC(), payload, paidAt.UTC(), id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark booking paid: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return db.classifyZeroRows(ctx, id)
	}
	return nil
}

// MarkCanceled performs pending→canceled and clears the gateway order id
// so a fresh payment attempt can be made on a new hold.
func (db *DB) MarkCanceled(ctx context.Context, id string, canceledAt time.Time, payload string) error {
	query := `UPDATE bookings SET status = ?, expires_at = NULL, canceled_at = ?, flow_order_id = '', gateway_status = ?, updated_at = ?
        WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query,
		models.StatusCanceled, canceledAt.UTC(), payload, canceledAt.UTC(), id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark booking canceled: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return db.classifyZeroRows(ctx, id)
	}
	return nil
}

// RecordGatewayStatus attaches the latest raw gateway payload without
// touching status. Used for REJECTED (retry allowed) and for enriching
// terminal bookings with late metadata.
func (db *DB) RecordGatewayStatus(ctx context.Context, id string, payload string, now time.Time) error {
	query := `UPDATE bookings SET gateway_status = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, payload, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record gateway status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetFlowOrder records the gateway order id and polling token created
// for a hold. The conditional WHERE keeps a late create-order callback
// from reviving a booking that already reached a terminal state.
func (db *DB) SetFlowOrder(ctx context.Context, id string, flowOrderID, paymentToken string, now time.Time) error {
	query := `UPDATE bookings SET flow_order_id = ?, payment_token = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, flowOrderID, paymentToken, now.UTC(), id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to set flow order: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return db.classifyZeroRows(ctx, id)
	}
	return nil
}

func (db *DB) classifyZeroRows(ctx context.Context, id string) error {
	var status string
	err := db.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load booking status: %w", err)
	}
	return fmt.Errorf("booking %s is %s: %w", id, status, ErrAlreadyProcessed)
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// BookingsIntersecting returns pending and paid bookings whose range
// intersects [from, to) for one unit. Lapsed holds are included; the
// caller classifies them against its own "now".
func (db *DB) BookingsIntersecting(ctx context.Context, unitID int64, from, to time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
        WHERE unit_id = ? AND status IN (?, ?) AND start_date < ? AND end_date > ?
        ORDER BY start_date ASC`
	rows, err := db.QueryContext(ctx, query,
		unitID, models.StatusPending, models.StatusPaid,
		to.Format(models.DateLayout), from.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get intersecting bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// PendingWithOrder returns pending bookings holding a gateway order id
// untouched since before the cutoff, bounded by limit. This is the
// reconcile sweep's work list.
func (db *DB) PendingWithOrder(ctx context.Context, cutoff time.Time, limit int) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
        WHERE status = ? AND flow_order_id != '' AND updated_at < ?
        ORDER BY updated_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, models.StatusPending, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending bookings for reconcile: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListBookings returns bookings of any status intersecting [from, to)
// across all units, for the admin console and exports.
func (db *DB) ListBookings(ctx context.Context, from, to time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
        WHERE start_date < ? AND end_date > ?
        ORDER BY start_date ASC, created_at ASC`
	rows, err := db.QueryContext(ctx, query,
		to.Format(models.DateLayout), from.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var startStr, endStr, jacuzziDays string
	var expiresAt, paidAt, canceledAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.UnitID, &b.UnitName, &startStr, &endStr, &b.PartySize,
		&jacuzziDays, &b.Towels, &b.Status,
		&b.Price.Nights, &b.Price.Base, &b.Price.ExtraGuests, &b.Price.Jacuzzi, &b.Price.Towels, &b.Price.Total,
		&b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
		&expiresAt, &paidAt, &canceledAt, &b.FlowOrderID, &b.PaymentToken, &b.GatewayStatus,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if b.StartDate, err = time.Parse(models.DateLayout, startStr); err != nil {
		return nil, fmt.Errorf("failed to parse start date %s: %w", startStr, err)
	}
	if b.EndDate, err = time.Parse(models.DateLayout, endStr); err != nil {
		return nil, fmt.Errorf("failed to parse end date %s: %w", endStr, err)
	}
	if err := json.Unmarshal([]byte(jacuzziDays), &b.JacuzziDays); err != nil {
		return nil, fmt.Errorf("failed to parse jacuzzi days: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		b.ExpiresAt = &t
	}
	if paidAt.Valid {
		t := paidAt.Time
		b.PaidAt = &t
	}
	if canceledAt.Valid {
		t := canceledAt.Time
		b.CanceledAt = &t
	}
	return b, nil
}

func collectBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}
