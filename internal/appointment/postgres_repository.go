package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docktorek/docktorek-api/internal/events"
	"github.com/docktorek/docktorek-api/internal/interval"
)

type txQuerier interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database. Booking
// writes run in serializable transactions with a bounded retry, so the
// overlap check and the insert act as one atomic step.
type PostgresRepository struct {
	q          txQuerier
	outbox     *events.Store
	maxRetries int
}

// NewPostgresRepository initializes a repo backed by pgxpool. The outbox
// store is optional; without it no events are appended.
func NewPostgresRepository(pool *pgxpool.Pool, outbox *events.Store) *PostgresRepository {
	if pool == nil {
		panic("appointment: pgx pool required")
	}
	return &PostgresRepository{q: pool, outbox: outbox, maxRetries: 3}
}

func newPostgresRepositoryWithQuerier(q txQuerier, outbox *events.Store) *PostgresRepository {
	return &PostgresRepository{q: q, outbox: outbox, maxRetries: 3}
}

// WithMaxRetries bounds the serialization-failure retry loop.
func (r *PostgresRepository) WithMaxRetries(n int) *PostgresRepository {
	if n > 0 {
		r.maxRetries = n
	}
	return r
}

const appointmentColumns = `id, patient_id, doctor_id, date, start_time, end_time, status, reason, notes, receipt_token, created_at, updated_at`

// FindByID fetches one appointment.
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	a, err := scanAppointment(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageErr("select appointment", err)
	}
	return a, nil
}

// ListActiveForDay returns the busy set for a doctor and date.
func (r *PostgresRepository) ListActiveForDay(ctx context.Context, doctorID uuid.UUID, date Date) ([]*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND date = $2
		  AND status IN ('scheduled', 'confirmed', 'in_progress')
		ORDER BY start_time
	`
	rows, err := r.q.Query(ctx, query, doctorID, date.Time())
	if err != nil {
		return nil, storageErr("list active appointments", err)
	}
	return collectAppointments(rows)
}

// List returns appointments matching the filter, newest date first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE ($1::uuid IS NULL OR patient_id = $1)
		  AND ($2::uuid IS NULL OR doctor_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		  AND ($4::date IS NULL OR date = $4)
		ORDER BY date DESC, start_time
	`
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	var date any
	if filter.Date != nil {
		date = filter.Date.Time()
	}
	rows, err := r.q.Query(ctx, query, filter.PatientID, filter.DoctorID, status, date)
	if err != nil {
		return nil, storageErr("list appointments", err)
	}
	return collectAppointments(rows)
}

// Create inserts the appointment, audit entry and outbox event atomically.
func (r *PostgresRepository) Create(ctx context.Context, w Write) error {
	return r.inSerializableTx(ctx, func(tx pgx.Tx) error {
		conflict, err := r.overlapExists(ctx, tx, w.Appointment, uuid.Nil)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotConflict
		}
		appt := w.Appointment
		query := `
			INSERT INTO appointments (id, patient_id, doctor_id, date, start_time, end_time, status, reason, notes, receipt_token)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`
		if err := tx.QueryRow(ctx, query,
			appt.ID,
			appt.PatientID,
			appt.DoctorID,
			appt.Date.Time(),
			timeOfDayToPg(appt.Start),
			timeOfDayToPg(appt.End),
			string(appt.Status),
			appt.Reason,
			appt.Notes,
			appt.ReceiptToken,
		).Scan(&appt.CreatedAt, &appt.UpdatedAt); err != nil {
			return storageErr("insert appointment", err)
		}
		return r.writeSideEffects(ctx, tx, w)
	})
}

// Update rewrites the mutable appointment fields together with the audit
// entry and outbox event.
func (r *PostgresRepository) Update(ctx context.Context, w Write, recheckOverlap bool) error {
	return r.inSerializableTx(ctx, func(tx pgx.Tx) error {
		if recheckOverlap {
			conflict, err := r.overlapExists(ctx, tx, w.Appointment, w.Appointment.ID)
			if err != nil {
				return err
			}
			if conflict {
				return ErrSlotConflict
			}
		}
		appt := w.Appointment
		query := `
			UPDATE appointments
			SET date = $2, start_time = $3, end_time = $4, status = $5, reason = $6, notes = $7, receipt_token = $8, updated_at = now()
			WHERE id = $1
			RETURNING updated_at
		`
		err := tx.QueryRow(ctx, query,
			appt.ID,
			appt.Date.Time(),
			timeOfDayToPg(appt.Start),
			timeOfDayToPg(appt.End),
			string(appt.Status),
			appt.Reason,
			appt.Notes,
			appt.ReceiptToken,
		).Scan(&appt.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return storageErr("update appointment", err)
		}
		return r.writeSideEffects(ctx, tx, w)
	})
}

// ListAudit returns the audit trail for an appointment, oldest first.
func (r *PostgresRepository) ListAudit(ctx context.Context, appointmentID uuid.UUID) ([]*AuditEntry, error) {
	query := `
		SELECT id, appointment_id, actor_id, previous_status, new_status, note, created_at
		FROM appointment_audit
		WHERE appointment_id = $1
		ORDER BY created_at
	`
	rows, err := r.q.Query(ctx, query, appointmentID)
	if err != nil {
		return nil, storageErr("list audit", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var (
			e          AuditEntry
			prev, next string
		)
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.ActorID, &prev, &next, &e.Note, &e.CreatedAt); err != nil {
			return nil, storageErr("scan audit", err)
		}
		e.PrevStatus = Status(prev)
		e.NewStatus = Status(next)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *PostgresRepository) writeSideEffects(ctx context.Context, tx pgx.Tx, w Write) error {
	if w.Audit != nil {
		a := w.Audit
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		query := `
			INSERT INTO appointment_audit (id, appointment_id, actor_id, previous_status, new_status, note)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.Exec(ctx, query,
			a.ID, a.AppointmentID, a.ActorID, string(a.PrevStatus), string(a.NewStatus), a.Note,
		); err != nil {
			return storageErr("insert audit", err)
		}
	}
	if w.EventType != "" && r.outbox != nil {
		if _, err := r.outbox.Insert(ctx, tx, w.EventType, w.Event); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) overlapExists(ctx context.Context, tx pgx.Tx, appt *Appointment, excludeID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND date = $2
			  AND status IN ('scheduled', 'confirmed', 'in_progress')
			  AND id <> $3
			  AND start_time < $5 AND end_time > $4
		)
	`
	var exists bool
	err := tx.QueryRow(ctx, query,
		appt.DoctorID,
		appt.Date.Time(),
		excludeID,
		timeOfDayToPg(appt.Start),
		timeOfDayToPg(appt.End),
	).Scan(&exists)
	if err != nil {
		return false, storageErr("check overlap", err)
	}
	return exists, nil
}

// inSerializableTx runs fn in a serializable transaction, retrying
// serialization failures up to maxRetries. Losers of a booking race re-run
// the overlap check against the winner's committed row and surface
// ErrSlotConflict.
func (r *PostgresRepository) inSerializableTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		tx, err := r.q.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return storageErr("begin", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			if isSerializationFailure(err) {
				lastErr = err
				continue
			}
			return storageErr("commit", err)
		}
		return nil
	}
	return fmt.Errorf("%w: serialization retries exhausted: %v", ErrUnavailable, lastErr)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

// storageErr classifies driver failures: timeouts and cancellations become
// the retryable ErrUnavailable, everything else is wrapped as-is.
func storageErr(action string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, action, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return err
	}
	return fmt.Errorf("appointment: %s: %w", action, err)
}

func timeOfDayToPg(t interval.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * 60 * 1_000_000, Valid: true}
}

func timeOfDayFromPg(t pgtype.Time) interval.TimeOfDay {
	return interval.TimeOfDay(t.Microseconds / (60 * 1_000_000))
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, storageErr("scan appointment", err)
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a          Appointment
		date       pgtype.Date
		start, end pgtype.Time
		status     string
	)
	if err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&date,
		&start,
		&end,
		&status,
		&a.Reason,
		&a.Notes,
		&a.ReceiptToken,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Date = DateOf(date.Time)
	a.Start = timeOfDayFromPg(start)
	a.End = timeOfDayFromPg(end)
	a.Status = Status(status)
	return &a, nil
}
