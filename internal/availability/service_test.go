package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/clock"
)

func newTestService() (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	clk := clock.NewFixed(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	return NewService(repo, clk, zerolog.Nop()), repo
}

func mondayMorning(doctorID uuid.UUID) NewTemplate {
	return NewTemplate{
		DoctorID:    doctorID,
		Weekday:     time.Monday,
		Start:       NewTimeOfDay(8, 0),
		End:         NewTimeOfDay(12, 0),
		SlotMinutes: 30,
	}
}

func TestService_CreateTemplate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	doctor := uuid.New()

	tpl, err := svc.CreateTemplate(ctx, doctor, mondayMorning(doctor))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tpl.ID == uuid.Nil || !tpl.Active {
		t.Errorf("expected an active template with an ID, got %+v", tpl)
	}

	found, err := svc.FindActiveTemplate(ctx, doctor, time.Monday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != tpl.ID {
		t.Errorf("expected to find template %s, got %s", tpl.ID, found.ID)
	}
}

func TestService_CreateTemplate_Validation(t *testing.T) {
	svc, _ := newTestService()
	doctor := uuid.New()

	in := mondayMorning(doctor)
	in.SlotMinutes = 31
	if _, err := svc.CreateTemplate(context.Background(), doctor, in); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	in = mondayMorning(doctor)
	in.End = in.Start
	if _, err := svc.CreateTemplate(context.Background(), doctor, in); !errors.Is(err, ErrInvalidTimeRange) {
		t.Errorf("expected ErrInvalidTimeRange, got %v", err)
	}
}

func TestService_CreateTemplate_OnlyOwner(t *testing.T) {
	svc, _ := newTestService()
	doctor := uuid.New()

	_, err := svc.CreateTemplate(context.Background(), uuid.New(), mondayMorning(doctor))
	if !errors.Is(err, ErrNotTemplateOwner) {
		t.Errorf("expected ErrNotTemplateOwner, got %v", err)
	}
}

func TestService_OneActiveTemplatePerWeekday(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	doctor := uuid.New()

	first, err := svc.CreateTemplate(ctx, doctor, mondayMorning(doctor))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	afternoon := mondayMorning(doctor)
	afternoon.Start = NewTimeOfDay(14, 0)
	afternoon.End = NewTimeOfDay(18, 0)
	if _, err := svc.CreateTemplate(ctx, doctor, afternoon); !errors.Is(err, ErrActiveTemplateExists) {
		t.Fatalf("expected ErrActiveTemplateExists, got %v", err)
	}

	// Another doctor is unaffected.
	other := uuid.New()
	if _, err := svc.CreateTemplate(ctx, other, mondayMorning(other)); err != nil {
		t.Fatalf("unexpected error for second doctor: %v", err)
	}

	// Deactivating the first frees the weekday.
	if _, err := svc.SetActive(ctx, doctor, first.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	second, err := svc.CreateTemplate(ctx, doctor, afternoon)
	if err != nil {
		t.Fatalf("expected afternoon template to be accepted, got %v", err)
	}

	// Re-activating the first would create two active templates.
	if _, err := svc.SetActive(ctx, doctor, first.ID, true); !errors.Is(err, ErrActiveTemplateExists) {
		t.Errorf("expected ErrActiveTemplateExists on reactivation, got %v", err)
	}

	active, err := svc.FindActiveTemplate(ctx, doctor, time.Monday)
	if err != nil || active.ID != second.ID {
		t.Errorf("expected the afternoon template to be active, got %v, %v", active, err)
	}
}

func TestService_AddExceptionDate(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	doctor := uuid.New()

	tpl, err := svc.CreateTemplate(ctx, doctor, mondayMorning(doctor))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	holiday := NewDate(2024, time.June, 3)
	if _, err := svc.AddExceptionDate(ctx, uuid.New(), tpl.ID, holiday); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for non-owner, got %v", err)
	}

	if _, err := svc.AddExceptionDate(ctx, doctor, tpl.ID, holiday); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.AddExceptionDate(ctx, doctor, tpl.ID, holiday); err != nil {
		t.Fatalf("duplicate exception should be a no-op, got %v", err)
	}

	stored, err := repo.GetTemplate(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored.ExceptionDates) != 1 || stored.IsAvailableOn(holiday) {
		t.Errorf("expected exactly one stored exception, got %v", stored.ExceptionDates)
	}
}

func TestService_SetActive_UnknownTemplate(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.SetActive(context.Background(), uuid.New(), uuid.New(), false)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

// interleavingRepository runs a competing write just before the first
// UpdateTemplate call goes through.
type interleavingRepository struct {
	*MemoryRepository
	once       sync.Once
	interleave func()
}

func (r *interleavingRepository) UpdateTemplate(ctx context.Context, t *Template) error {
	r.once.Do(r.interleave)
	return r.MemoryRepository.UpdateTemplate(ctx, t)
}

func TestMemoryRepository_UpdateTemplate_StaleVersion(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	doctor := uuid.New()

	tpl := &Template{DoctorID: doctor, Weekday: time.Monday, Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(12, 0), SlotMinutes: 30, Active: true}
	if err := repo.CreateTemplate(ctx, tpl); err != nil {
		t.Fatalf("create: %v", err)
	}

	a, _ := repo.GetTemplate(ctx, tpl.ID)
	b, _ := repo.GetTemplate(ctx, tpl.ID)

	a.AddExceptionDate(NewDate(2024, time.June, 3))
	if err := repo.UpdateTemplate(ctx, a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if a.Version != 2 {
		t.Errorf("expected version 2 after update, got %d", a.Version)
	}

	b.AddExceptionDate(NewDate(2024, time.June, 10))
	err := repo.UpdateTemplate(ctx, b)
	if !errors.Is(err, ErrTemplateModified) {
		t.Fatalf("expected ErrTemplateModified, got %v", err)
	}
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected a conflict kind, got %v", err)
	}
}

func TestService_AddExceptionDate_KeepsCompetingWrite(t *testing.T) {
	ctx := context.Background()
	doctor := uuid.New()
	clk := clock.NewFixed(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

	repo := &interleavingRepository{MemoryRepository: NewMemoryRepository()}
	svc := NewService(repo, clk, zerolog.Nop())

	tpl, err := svc.CreateTemplate(ctx, doctor, mondayMorning(doctor))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := NewDate(2024, time.June, 3)
	second := NewDate(2024, time.June, 10)
	repo.interleave = func() {
		competing, err := repo.MemoryRepository.GetTemplate(ctx, tpl.ID)
		if err != nil {
			t.Errorf("load: %v", err)
			return
		}
		competing.AddExceptionDate(first)
		if err := repo.MemoryRepository.UpdateTemplate(ctx, competing); err != nil {
			t.Errorf("competing update: %v", err)
		}
	}

	updated, err := svc.AddExceptionDate(ctx, doctor, tpl.ID, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.IsAvailableOn(first) || updated.IsAvailableOn(second) {
		t.Errorf("expected both exception dates to survive, got %v", updated.ExceptionDates)
	}
	if updated.Version != 3 {
		t.Errorf("expected version 3, got %d", updated.Version)
	}
}

func TestService_AddExceptionDate_Concurrent(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	doctor := uuid.New()

	tpl, err := svc.CreateTemplate(ctx, doctor, mondayMorning(doctor))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dates := []Date{
		NewDate(2024, time.June, 3),
		NewDate(2024, time.June, 10),
		NewDate(2024, time.June, 17),
		NewDate(2024, time.June, 24),
	}

	var wg sync.WaitGroup
	for _, d := range dates {
		wg.Add(1)
		go func(d Date) {
			defer wg.Done()
			if _, err := svc.AddExceptionDate(ctx, doctor, tpl.ID, d); err != nil {
				t.Errorf("add %s: %v", d, err)
			}
		}(d)
	}
	wg.Wait()

	stored, err := repo.GetTemplate(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored.ExceptionDates) != len(dates) {
		t.Errorf("expected %d exception dates, got %v", len(dates), stored.ExceptionDates)
	}
}
