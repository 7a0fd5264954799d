package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/coachbook/server/internal/domain/bookings"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ bookings.Repository = (*BookingRepository)(nil)

type BookingRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *BookingRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const bookingColumns = `b.id, b.coach_id, b.coachee_id, b.date, b.start_time, b.end_time, b.method, b.batch,
       b.status, b.topic, b.notes, b.feedback, b.next_action, b.coachee_rating, b.coachee_feedback,
       b.created_at, b.updated_at`

type bookingRow struct {
	booking         bookings.Booking
	method          string
	status          string
	startTime       *string
	endTime         *string
	batch           *string
	notes           *string
	feedback        *string
	nextAction      *string
	coacheeFeedback *string
}

func (row *bookingRow) targets() []any {
	b := &row.booking
	return []any{
		&b.ID, &b.CoachID, &b.CoacheeID, &b.Date, &row.startTime, &row.endTime, &row.method, &row.batch,
		&row.status, &b.Topic, &row.notes, &row.feedback, &row.nextAction, &b.CoacheeRating, &row.coacheeFeedback,
		&b.CreatedAt, &b.UpdatedAt,
	}
}

func (row *bookingRow) result() bookings.Booking {
	b := row.booking
	b.Date = b.Date.UTC()
	b.Method = bookings.Method(row.method)
	b.Status = bookings.Status(row.status)
	b.StartTime = derefString(row.startTime)
	b.EndTime = derefString(row.endTime)
	b.Batch = derefString(row.batch)
	b.Notes = derefString(row.notes)
	b.Feedback = derefString(row.feedback)
	b.NextAction = derefString(row.nextAction)
	b.CoacheeFeedback = derefString(row.coacheeFeedback)
	return b
}

func scanBooking(row pgx.Row) (*bookings.Booking, error) {
	var br bookingRow
	if err := row.Scan(br.targets()...); err != nil {
		return nil, err
	}
	b := br.result()
	return &b, nil
}

func (r *BookingRepository) Create(ctx context.Context, booking bookings.Booking) (*bookings.Booking, error) {
	status := booking.Status
	if status == "" {
		status = bookings.StatusPending
	}
	row := r.queryer().QueryRow(ctx, `
WITH b AS (
INSERT INTO bookings (id, coach_id, coachee_id, date, start_time, end_time, method, batch, status, topic, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING *
)
SELECT `+bookingColumns+` FROM b`,
		booking.ID, booking.CoachID, booking.CoacheeID, booking.Date.UTC(),
		nullString(booking.StartTime), nullString(booking.EndTime), string(booking.Method),
		nullString(booking.Batch), string(status), booking.Topic, nullString(booking.Notes),
	)
	created, err := scanBooking(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, bookings.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return created, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*bookings.Booking, error) {
	booking, err := scanBooking(r.queryer().QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, bookings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status bookings.Status) (*bookings.Booking, error) {
	return r.update(ctx, "update booking status", `status = $2`, id, string(status))
}

func (r *BookingRepository) UpdateCoachReport(ctx context.Context, id string, params bookings.ReportParams) (*bookings.Booking, error) {
	return r.update(ctx, "update coach report",
		`feedback = $2, next_action = $3, status = $4`,
		id, nullString(params.Feedback), nullString(params.NextAction), string(params.Status),
	)
}

func (r *BookingRepository) UpdateCoacheeFeedback(ctx context.Context, id string, params bookings.FeedbackParams) (*bookings.Booking, error) {
	return r.update(ctx, "update coachee feedback",
		`coachee_rating = $2, coachee_feedback = $3`,
		id, params.Rating, nullString(params.Feedback),
	)
}

func (r *BookingRepository) update(ctx context.Context, op, set string, args ...any) (*bookings.Booking, error) {
	row := r.queryer().QueryRow(ctx, `
WITH b AS (
UPDATE bookings SET `+set+`, updated_at = now()
 WHERE id = $1
RETURNING *
)
SELECT `+bookingColumns+` FROM b`, args...)
	booking, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, bookings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return booking, nil
}

func (r *BookingRepository) ListForCoach(ctx context.Context, coachID string) ([]bookings.View, error) {
	return r.list(ctx, `
SELECT `+bookingColumns+`,
       u.id, u.name, u.email, u.image, p.name
  FROM bookings b
  JOIN users u ON u.id = b.coachee_id
  LEFT JOIN positions p ON p.id = u.position_id
 WHERE b.coach_id = $1
 ORDER BY b.date DESC, b.created_at DESC`, coachID)
}

func (r *BookingRepository) ListForCoachee(ctx context.Context, coacheeID string) ([]bookings.View, error) {
	return r.list(ctx, `
SELECT `+bookingColumns+`,
       u.id, u.name, u.email, u.image, p.name
  FROM bookings b
  JOIN users u ON u.id = b.coach_id
  LEFT JOIN positions p ON p.id = u.position_id
 WHERE b.coachee_id = $1
 ORDER BY b.date DESC, b.created_at DESC`, coacheeID)
}

func (r *BookingRepository) list(ctx context.Context, query, userID string) ([]bookings.View, error) {
	rows, err := r.queryer().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var views []bookings.View
	for rows.Next() {
		var (
			br           bookingRow
			counterpart  bookings.Participant
			image        *string
			positionName *string
		)
		targets := append(br.targets(), &counterpart.ID, &counterpart.Name, &counterpart.Email, &image, &positionName)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		counterpart.Image = derefString(image)
		counterpart.PositionName = derefString(positionName)
		views = append(views, bookings.View{Booking: br.result(), Counterpart: counterpart})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return views, nil
}
