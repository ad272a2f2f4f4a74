package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, appt_date, start_time, end_time, status, reason, notes,
	created_at, updated_at, created_by, cancelled_by, cancel_reason`

const diagnosisColumns = `id, appointment_id, patient_id, doctor_id, summary, symptoms, treatment, medications, notes, created_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a            Appointment
		date         time.Time
		start, end   pgtype.Time
		notes        *string
		cancelReason *string
	)

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&date,
		&start,
		&end,
		&a.Status,
		&a.Reason,
		&notes,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CreatedBy,
		&a.CancelledBy,
		&cancelReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = availability.DateOf(date)
	a.Start = availability.FromPgTime(start)
	a.End = availability.FromPgTime(end)
	if notes != nil {
		a.Notes = *notes
	}
	if cancelReason != nil {
		a.CancelReason = *cancelReason
	}
	return &a, nil
}

func scanDiagnosis(row pgx.Row) (*Diagnosis, error) {
	var (
		d         Diagnosis
		symptoms  *string
		treatment *string
		notes     *string
	)

	err := row.Scan(
		&d.ID,
		&d.AppointmentID,
		&d.PatientID,
		&d.DoctorID,
		&d.Summary,
		&symptoms,
		&treatment,
		&d.Medications,
		&notes,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDiagnosisNotFound
		}
		return nil, err
	}

	d.Symptoms = deref(symptoms)
	d.Treatment = deref(treatment)
	d.Notes = deref(notes)
	return &d, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) FindAppointments(ctx context.Context, doctorID uuid.UUID, date availability.Date) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND appt_date = $2
		ORDER BY start_time, created_at
	`, doctorID, date.Time())
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// InsertAppointment relies on the partial unique index over live appointments
// to reject a second booking of the same start time.
func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULL, NULL)
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.DoctorID, a.Date.Time(),
		availability.ToPgTime(a.Start), availability.ToPgTime(a.End),
		a.Status, a.Reason, nullableString(a.Notes),
		a.CreatedAt, a.UpdatedAt, a.CreatedBy)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotAlreadyBooked
		}
		return err
	}

	*a = *created
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from Status, change StatusChange) (*Appointment, error) {
	return updateStatus(ctx, r.pool, id, from, change)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func updateStatus(ctx context.Context, q queryRower, id uuid.UUID, from Status, change StatusChange) (*Appointment, error) {
	row := q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = $4,
		    cancelled_by = COALESCE($5, cancelled_by),
		    cancel_reason = COALESCE($6, cancel_reason)
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, change.To, from, change.At, change.ActorID, nullableString(change.Reason))

	updated, err := scanAppointment(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, err
	}

	// no row matched: either the id is unknown or another writer moved it first
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrStatusChanged
	}
	return nil, ErrAppointmentNotFound
}

func (r *PgRepository) CompleteWithDiagnosis(ctx context.Context, d *Diagnosis, completedAt time.Time) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	completed, err := updateStatus(ctx, tx, d.AppointmentID, StatusConfirmed, StatusChange{
		To: StatusCompleted,
		At: completedAt,
	})
	if err != nil {
		return nil, err
	}

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	medications := d.Medications
	if medications == nil {
		medications = []string{}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO diagnoses (`+diagnosisColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+diagnosisColumns,
		d.ID, d.AppointmentID, d.PatientID, d.DoctorID, d.Summary,
		nullableString(d.Symptoms), nullableString(d.Treatment), medications,
		nullableString(d.Notes), d.CreatedAt)

	stored, err := scanDiagnosis(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDiagnosisExists
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	*d = *stored
	return completed, nil
}

func (r *PgRepository) FindDiagnosis(ctx context.Context, appointmentID uuid.UUID) (*Diagnosis, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+diagnosisColumns+`
		FROM diagnoses
		WHERE appointment_id = $1
	`, appointmentID)
	return scanDiagnosis(row)
}

func (r *PgRepository) FindOpenUntil(ctx context.Context, date availability.Date) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('PROGRAMADA', 'CONFIRMADA')
		  AND appt_date <= $1
		ORDER BY appt_date, start_time
	`, date.Time())
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
