package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/clock"
)

var ErrNotTemplateOwner = apperr.New(apperr.ErrForbidden, "only the owning doctor may change this template")

// maxUpdateAttempts bounds how often a template edit is reapplied after
// losing a version race.
const maxUpdateAttempts = 5

// NewTemplate is the input for CreateTemplate.
type NewTemplate struct {
	DoctorID    uuid.UUID
	Weekday     time.Weekday
	Start       TimeOfDay
	End         TimeOfDay
	SlotMinutes int
}

// Service manages doctors' weekly templates. Templates are only ever mutated
// by the doctor that owns them.
type Service struct {
	repo  Repository
	clock clock.Clock
	log   zerolog.Logger
}

func NewService(repo Repository, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		clock: clk,
		log:   logger.With().Str("component", "availability").Logger(),
	}
}

func (s *Service) CreateTemplate(ctx context.Context, actorID uuid.UUID, in NewTemplate) (*Template, error) {
	if actorID != in.DoctorID {
		return nil, ErrNotTemplateOwner
	}

	now := s.clock.Now()
	t := &Template{
		DoctorID:    in.DoctorID,
		Weekday:     in.Weekday,
		Start:       in.Start,
		End:         in.End,
		SlotMinutes: in.SlotMinutes,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.log.Info().
		Str("template_id", t.ID.String()).
		Str("doctor_id", t.DoctorID.String()).
		Str("weekday", t.Weekday.String()).
		Int("slots", t.SlotCount()).
		Msg("availability template created")

	return t, nil
}

// SetActive activates or soft-deactivates a template.
func (s *Service) SetActive(ctx context.Context, actorID, id uuid.UUID, active bool) (*Template, error) {
	return s.update(ctx, actorID, id, func(t *Template) bool {
		if t.Active == active {
			return false
		}
		t.Active = active
		return true
	})
}

// AddExceptionDate marks a single calendar day as unavailable. Adding a day
// that is already excluded is a no-op.
func (s *Service) AddExceptionDate(ctx context.Context, actorID, id uuid.UUID, date Date) (*Template, error) {
	return s.update(ctx, actorID, id, func(t *Template) bool {
		return t.AddExceptionDate(date)
	})
}

// update reloads the template and reapplies change until the write lands on
// the version it was read at. change reports whether it modified anything.
func (s *Service) update(ctx context.Context, actorID, id uuid.UUID, change func(t *Template) bool) (*Template, error) {
	for attempt := 1; ; attempt++ {
		t, err := s.ownedTemplate(ctx, actorID, id)
		if err != nil {
			return nil, err
		}
		if !change(t) {
			return t, nil
		}

		t.UpdatedAt = s.clock.Now()
		err = s.repo.UpdateTemplate(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrTemplateModified) || attempt == maxUpdateAttempts {
			return nil, fmt.Errorf("update template: %w", err)
		}
		s.log.Debug().
			Str("template_id", id.String()).
			Int("attempt", attempt).
			Msg("template changed underneath update, retrying")
	}
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Template, error) {
	templates, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

func (s *Service) FindActiveTemplate(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) (*Template, error) {
	return s.repo.FindActiveTemplate(ctx, doctorID, weekday)
}

func (s *Service) ownedTemplate(ctx context.Context, actorID, id uuid.UUID) (*Template, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if t.DoctorID != actorID {
		return nil, ErrNotTemplateOwner
	}
	return t, nil
}
