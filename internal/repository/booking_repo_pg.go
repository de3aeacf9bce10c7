package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Domenick1991/studiobooking/internal/domain"
)

// BookingFilter holds equality filters for List. Zero values are ignored.
// From/To select bookings intersecting [From, To).
type BookingFilter struct {
	UserID     string
	EngineerID string
	Status     domain.BookingStatus
	From       time.Time
	To         time.Time
	Limit      int
}

type BookingRepository interface {
	CreateNoOverlap(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	ListActiveBetween(ctx context.Context, from, to time.Time) ([]domain.Booking, error)
	Update(ctx context.Context, id string, expected []domain.BookingStatus, patch domain.BookingPatch) (*domain.Booking, error)
	FindOverlaps(ctx context.Context) ([]domain.Overlap, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

// calendarLockKey serialises booking inserts across the whole calendar.
const calendarLockKey int64 = 0x53545544494f

const bookingColumns = `b.id, b.start_at, b.end_at, b.created_at, b.updated_at,
	b.user_id, COALESCE(u.name, ''), COALESCE(u.email, ''), b.engineer_id, b.producer_name,
	b.service_id, b.service_type, b.service_name, b.total_price, b.song_count, b.beat_license,
	b.payment_intent_id, b.deposit_amount, b.deposit_captured, b.deposit_captured_at,
	b.final_payment_intent_id, b.final_amount, b.final_payment_captured, b.final_payment_captured_at,
	b.refund_id, b.refund_status, b.status, b.notes, b.session_details`

const bookingFrom = ` FROM bookings b LEFT JOIN users u ON u.id = b.user_id`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b       domain.Booking
		details []byte
	)
	err := row.Scan(&b.ID, &b.Start, &b.End, &b.CreatedAt, &b.UpdatedAt,
		&b.UserID, &b.UserName, &b.UserEmail, &b.EngineerID, &b.ProducerName,
		&b.ServiceID, &b.ServiceType, &b.ServiceName, &b.TotalPrice, &b.SongCount, &b.BeatLicense,
		&b.PaymentIntentID, &b.DepositAmount, &b.DepositCaptured, &b.DepositCapturedAt,
		&b.FinalPaymentIntentID, &b.FinalAmount, &b.FinalPaymentCaptured, &b.FinalPaymentCapturedAt,
		&b.RefundID, &b.RefundStatus, &b.Status, &b.Notes, &details)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		b.SessionDetails = &domain.SessionDetails{}
		if err := json.Unmarshal(details, b.SessionDetails); err != nil {
			return nil, fmt.Errorf("decode session details: %w", err)
		}
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]domain.Booking, error) {
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func statusStrings(statuses []domain.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// CreateNoOverlap inserts booking unless an active booking already occupies
// part of its interval. The check and the insert run under one advisory lock.
func (r *PGBookingRepository) CreateNoOverlap(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, calendarLockKey); err != nil {
		return err
	}

	var conflictID string
	err = tx.QueryRow(ctx, `SELECT id FROM bookings WHERE start_at < $2 AND end_at > $1 AND status <> ALL($3) LIMIT 1`,
		booking.Start, booking.End, statusStrings(domain.FreeingStatuses)).Scan(&conflictID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrOverlap, conflictID)
	case !errors.Is(err, pgx.ErrNoRows):
		return err
	}

	var details []byte
	if booking.SessionDetails != nil {
		if details, err = json.Marshal(booking.SessionDetails); err != nil {
			return err
		}
	}

	err = tx.QueryRow(ctx, `INSERT INTO bookings (id, start_at, end_at, user_id, engineer_id, producer_name,
		service_id, service_type, service_name, total_price, song_count, beat_license, status, notes, session_details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`,
		booking.ID, booking.Start, booking.End, booking.UserID, booking.EngineerID, booking.ProducerName,
		booking.ServiceID, booking.ServiceType, booking.ServiceName, booking.TotalPrice, booking.SongCount,
		booking.BeatLicense, booking.Status, booking.Notes, details).
		Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgExclusionViolation {
			return ErrOverlap
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+bookingFrom+` WHERE b.id=$1`, id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (r *PGBookingRepository) List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error) {
	query, args := buildListQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func buildListQuery(filter BookingFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("b.user_id = $%d", filter.UserID)
	}
	if filter.EngineerID != "" {
		add("b.engineer_id = $%d", filter.EngineerID)
	}
	if filter.Status != "" {
		add("b.status = $%d", string(filter.Status))
	}
	if !filter.To.IsZero() {
		add("b.start_at < $%d", filter.To)
	}
	if !filter.From.IsZero() {
		add("b.end_at > $%d", filter.From)
	}

	query := `SELECT ` + bookingColumns + bookingFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.start_at"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return query, args
}

// ListActiveBetween returns bookings that still occupy the calendar and intersect [from, to).
func (r *PGBookingRepository) ListActiveBetween(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+bookingFrom+`
		WHERE b.start_at < $2 AND b.end_at > $1 AND b.status <> ALL($3) ORDER BY b.start_at`,
		from, to, statusStrings(domain.FreeingStatuses))
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// Update applies patch only while the booking is in one of the expected
// statuses. An empty expected list applies the patch unconditionally.
func (r *PGBookingRepository) Update(ctx context.Context, id string, expected []domain.BookingStatus, patch domain.BookingPatch) (*domain.Booking, error) {
	sets, args, err := buildPatch(patch)
	if err != nil {
		return nil, err
	}
	args = append([]any{id}, args...)
	query := `UPDATE bookings SET ` + strings.Join(sets, ", ") + ` WHERE id=$1`
	if len(expected) > 0 {
		args = append(args, statusStrings(expected))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}

	res, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStaleStatus
	}
	return r.GetByID(ctx, id)
}

// buildPatch renders the SET list for patch. Placeholders start at $2 since
// $1 is the booking id.
func buildPatch(patch domain.BookingPatch) ([]string, []any, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)+1))
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.PaymentIntentID != nil {
		set("payment_intent_id", *patch.PaymentIntentID)
	}
	if patch.DepositAmount != nil {
		set("deposit_amount", *patch.DepositAmount)
	}
	if patch.DepositCaptured != nil {
		set("deposit_captured", *patch.DepositCaptured)
	}
	if patch.DepositCapturedAt != nil {
		set("deposit_captured_at", *patch.DepositCapturedAt)
	}
	if patch.FinalPaymentIntentID != nil {
		set("final_payment_intent_id", *patch.FinalPaymentIntentID)
	}
	if patch.FinalAmount != nil {
		set("final_amount", *patch.FinalAmount)
	}
	if patch.FinalPaymentCaptured != nil {
		set("final_payment_captured", *patch.FinalPaymentCaptured)
	}
	if patch.FinalPaymentCapturedAt != nil {
		set("final_payment_captured_at", *patch.FinalPaymentCapturedAt)
	}
	if patch.RefundID != nil {
		set("refund_id", *patch.RefundID)
	}
	if patch.RefundStatus != nil {
		set("refund_status", *patch.RefundStatus)
	}
	if patch.SessionDetails != nil {
		raw, err := json.Marshal(patch.SessionDetails)
		if err != nil {
			return nil, nil, err
		}
		set("session_details", raw)
	}
	if len(sets) == 0 {
		return nil, nil, errors.New("empty booking patch")
	}
	sets = append(sets, "updated_at=now()")
	return sets, args, nil
}

// FindOverlaps lists pairs of active bookings whose intervals intersect. With
// the exclusion constraint in place this only reports rows written before it existed
// or by a writer that bypassed it.
func (r *PGBookingRepository) FindOverlaps(ctx context.Context) ([]domain.Overlap, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, c.id FROM bookings a
		JOIN bookings c ON a.id < c.id AND a.start_at < c.end_at AND a.end_at > c.start_at
		WHERE a.status <> ALL($1) AND c.status <> ALL($1)
		ORDER BY a.start_at`, statusStrings(domain.FreeingStatuses))
	if err != nil {
		return nil, err
	}
	var pairs [][2]string
	for rows.Next() {
		var pair [2]string
		if err := rows.Scan(&pair[0], &pair[1]); err != nil {
			rows.Close()
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	overlaps := make([]domain.Overlap, 0, len(pairs))
	for _, pair := range pairs {
		first, err := r.GetByID(ctx, pair[0])
		if err != nil {
			return nil, err
		}
		second, err := r.GetByID(ctx, pair[1])
		if err != nil {
			return nil, err
		}
		overlaps = append(overlaps, domain.Overlap{First: *first, Second: *second})
	}
	return overlaps, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
