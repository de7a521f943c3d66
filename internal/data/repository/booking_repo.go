package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"service-marketplace/internal/data/entity"
	"service-marketplace/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// scheduleTxAttempts bounds retries of a schedule unit on deadlock or serialization failure.
const scheduleTxAttempts = 3

type BookingFilter struct {
	Status     *entity.BookingStatus
	CustomerID *uuid.UUID
	ProviderID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

type BookingRepository interface {
	// WithinSchedule runs fn as one atomic unit for the provider's date. Reads and writes
	// made through ctx inside fn see no concurrent booking for the same partition.
	WithinSchedule(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error

	Create(ctx context.Context, booking *entity.Booking, change *entity.StatusChange) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindActiveByProviderAndDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]*entity.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]*entity.Booking, error)
	Count(ctx context.Context, filter BookingFilter) (int64, error)

	// UpdateStatus writes the lifecycle fields of booking only while the stored status is
	// still from, and records change with it. It reports false when the row moved on.
	UpdateStatus(ctx context.Context, booking *entity.Booking, from entity.BookingStatus, change *entity.StatusChange) (bool, error)
	// UpdateNotes writes the note fields while the booking is not terminal. It reports
	// false when the booking is missing or already completed or cancelled.
	UpdateNotes(ctx context.Context, booking *entity.Booking) (bool, error)
	// ResolveDispute records a resolution once on a disputed booking.
	ResolveDispute(ctx context.Context, id uuid.UUID, resolution string, resolvedBy uuid.UUID, at time.Time) (bool, error)
	FindHistory(ctx context.Context, bookingID uuid.UUID) ([]*entity.StatusChange, error)
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `
	id, customer_id, provider_id, service_id, scheduled_date, start_minute, duration_minutes,
	status, service_price, materials_cost, taxes, fees, total, currency, payment_status,
	address, notes, customer_notes, provider_notes, completed_at, cancelled_at, cancellation_reason,
	dispute_reason, disputed_at, dispute_resolution, dispute_resolved_by, dispute_resolved_at,
	created_at, updated_at`

func (r *bookingRepository) WithinSchedule(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := entity.ScheduleKey(providerID, date)

	// The lock is the first statement so every later read in the unit runs on a
	// snapshot taken after the previous holder committed.
	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	return database.RunWithRetry(ctx, r.db, opts, scheduleTxAttempts, func(ctx context.Context) error {
		if _, err := database.Conn(ctx, r.db).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			r.log.Error("Failed to take schedule lock", zap.Error(err), zap.String("key", key))
			return fmt.Errorf("lock schedule %s: %w", key, err)
		}
		return fn(ctx)
	})
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking, change *entity.StatusChange) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
	`

	return database.RunInTx(ctx, r.db, pgx.TxOptions{}, func(ctx context.Context) error {
		_, err := database.Conn(ctx, r.db).Exec(ctx, query,
			booking.ID,
			booking.CustomerID,
			booking.ProviderID,
			booking.ServiceID,
			booking.ScheduledDate,
			booking.StartMinute,
			booking.DurationMinutes,
			booking.Status,
			booking.Price.ServicePrice,
			booking.Price.MaterialsCost,
			booking.Price.Taxes,
			booking.Price.Fees,
			booking.Price.Total,
			booking.Price.Currency,
			booking.PaymentStatus,
			booking.Address,
			booking.Notes,
			booking.CustomerNotes,
			booking.ProviderNotes,
			booking.CompletedAt,
			booking.CancelledAt,
			booking.CancellationReason,
			booking.DisputeReason,
			booking.DisputedAt,
			booking.DisputeResolution,
			booking.DisputeResolvedBy,
			booking.DisputeResolvedAt,
			booking.CreatedAt,
			booking.UpdatedAt,
		)
		if err != nil {
			r.log.Error("Failed to create booking",
				zap.Error(err),
				zap.String("booking_id", booking.ID.String()),
				zap.String("provider_id", booking.ProviderID.String()),
			)
			return fmt.Errorf("create booking %s: %w", booking.ID, err)
		}

		return r.insertChange(ctx, change)
	})
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(database.Conn(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID", zap.Error(err), zap.String("booking_id", id.String()))
		return nil, fmt.Errorf("find booking %s: %w", id, err)
	}

	return booking, nil
}

func (r *bookingRepository) FindActiveByProviderAndDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE provider_id = $1 AND scheduled_date = $2 AND status = ANY($3)
		ORDER BY start_minute
	`

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, providerID, date, activeStatusStrings())
	if err != nil {
		r.log.Error("Failed to find active bookings",
			zap.Error(err),
			zap.String("provider_id", providerID.String()),
			zap.String("date", date.Format(entity.DateLayout)),
		)
		return nil, fmt.Errorf("find active bookings for provider %s: %w", providerID, err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *bookingRepository) List(ctx context.Context, filter BookingFilter) ([]*entity.Booking, error) {
	where, args := filterClause(filter)
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM bookings
		%s
		ORDER BY scheduled_date DESC, start_minute DESC, created_at DESC
		LIMIT NULLIF($%d::bigint, 0) OFFSET $%d
	`, bookingColumns, where, len(args)-1, len(args))

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list bookings", zap.Error(err))
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *bookingRepository) Count(ctx context.Context, filter BookingFilter) (int64, error) {
	where, args := filterClause(filter)
	query := `SELECT COUNT(*) FROM bookings ` + where

	var count int64
	if err := database.Conn(ctx, r.db).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings", zap.Error(err))
		return 0, fmt.Errorf("count bookings: %w", err)
	}

	return count, nil
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, booking *entity.Booking, from entity.BookingStatus, change *entity.StatusChange) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $2,
		    updated_at = $3,
		    completed_at = $4,
		    cancelled_at = $5,
		    cancellation_reason = $6,
		    disputed_at = $7,
		    dispute_reason = $8
		WHERE id = $1 AND status = $9
	`

	applied := false
	err := database.RunInTx(ctx, r.db, pgx.TxOptions{}, func(ctx context.Context) error {
		tag, err := database.Conn(ctx, r.db).Exec(ctx, query,
			booking.ID,
			booking.Status,
			booking.UpdatedAt,
			booking.CompletedAt,
			booking.CancelledAt,
			booking.CancellationReason,
			booking.DisputedAt,
			booking.DisputeReason,
			from,
		)
		if err != nil {
			return fmt.Errorf("update booking status %s: %w", booking.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		applied = true
		return r.insertChange(ctx, change)
	})
	if err != nil {
		r.log.Error("Failed to update booking status",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("status", string(booking.Status)),
		)
		return false, err
	}

	return applied, nil
}

func (r *bookingRepository) UpdateNotes(ctx context.Context, booking *entity.Booking) (bool, error) {
	query := `
		UPDATE bookings
		SET customer_notes = $2, provider_notes = $3, cancellation_reason = $4, updated_at = $5
		WHERE id = $1 AND status NOT IN ($6, $7)
	`

	tag, err := database.Conn(ctx, r.db).Exec(ctx, query,
		booking.ID,
		booking.CustomerNotes,
		booking.ProviderNotes,
		booking.CancellationReason,
		booking.UpdatedAt,
		entity.BookingStatusCompleted,
		entity.BookingStatusCancelled,
	)
	if err != nil {
		r.log.Error("Failed to update booking notes", zap.Error(err), zap.String("booking_id", booking.ID.String()))
		return false, fmt.Errorf("update notes for booking %s: %w", booking.ID, err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *bookingRepository) ResolveDispute(ctx context.Context, id uuid.UUID, resolution string, resolvedBy uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET dispute_resolution = $2, dispute_resolved_by = $3, dispute_resolved_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5 AND dispute_resolution IS NULL
	`

	tag, err := database.Conn(ctx, r.db).Exec(ctx, query, id, resolution, resolvedBy, at, entity.BookingStatusDisputed)
	if err != nil {
		r.log.Error("Failed to resolve dispute", zap.Error(err), zap.String("booking_id", id.String()))
		return false, fmt.Errorf("resolve dispute %s: %w", id, err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *bookingRepository) FindHistory(ctx context.Context, bookingID uuid.UUID) ([]*entity.StatusChange, error) {
	query := `
		SELECT id, booking_id, from_status, to_status, actor_id, actor_role, reason, created_at
		FROM booking_status_changes
		WHERE booking_id = $1
		ORDER BY created_at, seq
	`

	rows, err := database.Conn(ctx, r.db).Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find booking history", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("find history for booking %s: %w", bookingID, err)
	}
	defer rows.Close()

	var changes []*entity.StatusChange
	for rows.Next() {
		var c entity.StatusChange
		if err := rows.Scan(
			&c.ID,
			&c.BookingID,
			&c.FromStatus,
			&c.ToStatus,
			&c.ActorID,
			&c.ActorRole,
			&c.Reason,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		changes = append(changes, &c)
	}

	return changes, rows.Err()
}

func (r *bookingRepository) insertChange(ctx context.Context, change *entity.StatusChange) error {
	if change == nil {
		return nil
	}

	query := `
		INSERT INTO booking_status_changes (id, booking_id, from_status, to_status, actor_id, actor_role, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := database.Conn(ctx, r.db).Exec(ctx, query,
		change.ID,
		change.BookingID,
		change.FromStatus,
		change.ToStatus,
		change.ActorID,
		change.ActorRole,
		change.Reason,
		change.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record status change for booking %s: %w", change.BookingID, err)
	}

	return nil
}

func filterClause(filter BookingFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.CustomerID != nil {
		add("customer_id = $%d", *filter.CustomerID)
	}
	if filter.ProviderID != nil {
		add("provider_id = $%d", *filter.ProviderID)
	}
	if filter.From != nil {
		add("scheduled_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("scheduled_date <= $%d", *filter.To)
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func activeStatusStrings() []string {
	statuses := make([]string, len(entity.ActiveBookingStatuses))
	for i, s := range entity.ActiveBookingStatuses {
		statuses[i] = string(s)
	}
	return statuses
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.CustomerID,
		&b.ProviderID,
		&b.ServiceID,
		&b.ScheduledDate,
		&b.StartMinute,
		&b.DurationMinutes,
		&b.Status,
		&b.Price.ServicePrice,
		&b.Price.MaterialsCost,
		&b.Price.Taxes,
		&b.Price.Fees,
		&b.Price.Total,
		&b.Price.Currency,
		&b.PaymentStatus,
		&b.Address,
		&b.Notes,
		&b.CustomerNotes,
		&b.ProviderNotes,
		&b.CompletedAt,
		&b.CancelledAt,
		&b.CancellationReason,
		&b.DisputeReason,
		&b.DisputedAt,
		&b.DisputeResolution,
		&b.DisputeResolvedBy,
		&b.DisputeResolvedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]*entity.Booking, error) {
	var bookings []*entity.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}
