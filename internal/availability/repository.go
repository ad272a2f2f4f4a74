package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

var (
	ErrTemplateNotFound     = apperr.New(apperr.ErrNotFound, "availability template not found")
	ErrActiveTemplateExists = apperr.New(apperr.ErrConflict, "doctor already has an active template for this weekday")
	ErrTemplateModified     = apperr.New(apperr.ErrConflict, "availability template was modified concurrently")
)

// Repository persists availability templates. Implementations must reject a
// second active template for the same (doctor, weekday) with ErrActiveTemplateExists.
//
// UpdateTemplate only applies when t.Version still matches the stored row; on
// success it bumps t.Version, otherwise it returns ErrTemplateModified.
type Repository interface {
	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error)
	UpdateTemplate(ctx context.Context, t *Template) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Template, error)
	FindActiveTemplate(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*Template, error)
}
