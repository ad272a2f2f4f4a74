package availability

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

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const templateColumns = `id, doctor_id, weekday, start_time, end_time, slot_minutes, active, exception_dates, version, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var (
		t          Template
		weekday    int16
		slot       int16
		start, end pgtype.Time
		exceptions []time.Time
	)

	err := row.Scan(
		&t.ID,
		&t.DoctorID,
		&weekday,
		&start,
		&end,
		&slot,
		&t.Active,
		&exceptions,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	t.Weekday = time.Weekday(weekday)
	t.SlotMinutes = int(slot)
	t.Start = FromPgTime(start)
	t.End = FromPgTime(end)
	for _, d := range exceptions {
		t.ExceptionDates = append(t.ExceptionDates, DateOf(d))
	}
	return &t, nil
}

func (r *PgRepository) CreateTemplate(ctx context.Context, t *Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Version == 0 {
		t.Version = 1
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+templateColumns,
		t.ID, t.DoctorID, int16(t.Weekday), ToPgTime(t.Start), ToPgTime(t.End),
		int16(t.SlotMinutes), t.Active, dateTimes(t.ExceptionDates), t.Version, t.CreatedAt, t.UpdatedAt)

	created, err := scanTemplate(row)
	if err != nil {
		return translateTemplateErr(err)
	}
	*t = *created
	return nil
}

func (r *PgRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM availability_templates
		WHERE id = $1
	`, id)
	return scanTemplate(row)
}

func (r *PgRepository) UpdateTemplate(ctx context.Context, t *Template) error {
	row := r.pool.QueryRow(ctx, `
		UPDATE availability_templates
		SET active = $2,
		    exception_dates = $3,
		    updated_at = $4,
		    version = version + 1
		WHERE id = $1 AND version = $5
		RETURNING `+templateColumns,
		t.ID, t.Active, dateTimes(t.ExceptionDates), t.UpdatedAt, t.Version)

	updated, err := scanTemplate(row)
	if errors.Is(err, ErrTemplateNotFound) {
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM availability_templates WHERE id = $1)`, t.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check template: %w", err)
		}
		if exists {
			return ErrTemplateModified
		}
		return ErrTemplateNotFound
	}
	if err != nil {
		return translateTemplateErr(err)
	}
	*t = *updated
	return nil
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM availability_templates
		WHERE doctor_id = $1
		ORDER BY weekday, start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	return result, rows.Err()
}

func (r *PgRepository) FindActiveTemplate(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*Template, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM availability_templates
		WHERE doctor_id = $1 AND weekday = $2 AND active
	`, doctorID, int16(weekday))
	return scanTemplate(row)
}

func translateTemplateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return ErrActiveTemplateExists
		case checkViolation:
			return apperr.Wrap(apperr.ErrValidation, err)
		}
	}
	if errors.Is(err, ErrTemplateNotFound) {
		return err
	}
	return fmt.Errorf("store template: %w", err)
}

// ToPgTime converts t to the pgx representation of a SQL time column.
func ToPgTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Minute/time.Microsecond), Valid: true}
}

// FromPgTime is the inverse of ToPgTime.
func FromPgTime(t pgtype.Time) TimeOfDay {
	return TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}

func dateTimes(ds []Date) []time.Time {
	out := make([]time.Time, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Time())
	}
	return out
}
