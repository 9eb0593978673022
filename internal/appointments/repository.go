package appointments

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository persists appointments. UpdateIfStatus only writes when the
// stored status still equals expected, otherwise it returns ErrStaleState.
type Repository interface {
	Insert(ctx context.Context, appt Appointment) (Appointment, error)
	Get(ctx context.Context, id string) (Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]Appointment, error)
	UpdateIfStatus(ctx context.Context, next Appointment, expected Status) (Appointment, error)
}

// MemoryRepository keeps appointments in process. Used by tests and local runs.
type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]Appointment
	now   func() time.Time
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]Appointment), now: time.Now}
}

// Insert implements Repository.
func (r *MemoryRepository) Insert(_ context.Context, appt Appointment) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[appt.ID]; exists {
		return Appointment{}, ErrWriteRejected
	}
	ts := r.now().UTC()
	appt.CreatedAt = ts
	appt.UpdatedAt = ts
	r.items[appt.ID] = appt.clone()
	return appt.clone(), nil
}

// Get implements Repository.
func (r *MemoryRepository) Get(_ context.Context, id string) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.items[id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return appt.clone(), nil
}

// ListByPatient implements Repository. Results are ordered by start time.
func (r *MemoryRepository) ListByPatient(_ context.Context, patientID string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, appt := range r.items {
		if appt.PatientID == patientID {
			out = append(out, appt.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// UpdateIfStatus implements Repository.
func (r *MemoryRepository) UpdateIfStatus(_ context.Context, next Appointment, expected Status) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[next.ID]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	if current.Status != expected {
		return Appointment{}, ErrStaleState
	}
	current.Status = next.Status
	current.StartTime = next.StartTime
	current.EndTime = next.EndTime
	current.PreviousStartTime = next.PreviousStartTime
	current.UpdatedAt = r.now().UTC()
	r.items[next.ID] = current.clone()
	return current.clone(), nil
}

// SetStatus overwrites the stored status without checks. It stands in for the
// clinic side confirming or completing appointments.
func (r *MemoryRepository) SetStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	appt.Status = status
	r.items[id] = appt
	return nil
}
