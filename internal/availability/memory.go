package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps templates in process memory.
type MemoryRepository struct {
	mu        sync.RWMutex
	templates map[uuid.UUID]Template
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{templates: make(map[uuid.UUID]Template)}
}

func (r *MemoryRepository) CreateTemplate(_ context.Context, t *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	if t.Active && r.hasOtherActive(t) {
		return ErrActiveTemplateExists
	}
	r.templates[t.ID] = t.clone()
	return nil
}

func (r *MemoryRepository) GetTemplate(_ context.Context, id uuid.UUID) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	c := t.clone()
	return &c, nil
}

func (r *MemoryRepository) UpdateTemplate(_ context.Context, t *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.templates[t.ID]
	if !ok {
		return ErrTemplateNotFound
	}
	if stored.Version != t.Version {
		return ErrTemplateModified
	}
	if t.Active && r.hasOtherActive(t) {
		return ErrActiveTemplateExists
	}
	t.Version++
	r.templates[t.ID] = t.clone()
	return nil
}

func (r *MemoryRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Template
	for _, t := range r.templates {
		if t.DoctorID == doctorID {
			result = append(result, t.clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Weekday != result[j].Weekday {
			return result[i].Weekday < result[j].Weekday
		}
		return result[i].Start < result[j].Start
	})
	return result, nil
}

func (r *MemoryRepository) FindActiveTemplate(_ context.Context, doctorID uuid.UUID, weekday time.Weekday) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.templates {
		if t.DoctorID == doctorID && t.Weekday == weekday && t.Active {
			c := t.clone()
			return &c, nil
		}
	}
	return nil, ErrTemplateNotFound
}

func (r *MemoryRepository) hasOtherActive(t *Template) bool {
	for id, other := range r.templates {
		if id != t.ID && other.Active && other.DoctorID == t.DoctorID && other.Weekday == t.Weekday {
			return true
		}
	}
	return false
}
