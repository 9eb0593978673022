package appointments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu      sync.Mutex
	intents []Intent
	err     error
}

func (r *recordingSink) Handle(_ context.Context, intent Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
	return r.err
}

func newTestService(t *testing.T, opts ...Option) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	repo.now = func() time.Time { return testNow }
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(repo, nil, opts...), repo
}

func TestRequestCreatesUpcomingAppointment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	appt, err := svc.Request(ctx, "patient-1", RequestInput{StartTime: start, Reason: "checkup"})
	require.NoError(t, err)
	assert.Equal(t, StatusRequested, appt.Status)
	assert.True(t, appt.StartTime.Equal(start))
	assert.Equal(t, "checkup", appt.Reason)
	assert.Equal(t, defaultTitle, appt.Title)

	upcoming, err := svc.List(ctx, "patient-1", PartitionUpcoming)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, appt.ID, upcoming[0].ID)

	past, err := svc.List(ctx, "patient-1", PartitionPast)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestRequestValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	start := testNow.Add(48 * time.Hour)
	before := start.Add(-time.Hour)

	tests := []struct {
		name string
		in   RequestInput
		want error
	}{
		{"missing start", RequestInput{}, ErrInvalidStartTime},
		{"past start", RequestInput{StartTime: testNow.Add(-time.Hour)}, ErrInvalidStartTime},
		{"end before start", RequestInput{StartTime: start, EndTime: &before}, ErrInvalidTimeRange},
		{"end equals start", RequestInput{StartTime: start, EndTime: &start}, ErrInvalidTimeRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Request(ctx, "patient-1", tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := svc.Request(ctx, "", RequestInput{StartTime: start})
	assert.ErrorIs(t, err, ErrPatientRequired)
}

func TestRequestAcceptsCurrentMinute(t *testing.T) {
	ctx := context.Background()
	now := testNow.Add(40 * time.Second)
	svc, _ := newTestService(t, WithClock(func() time.Time { return now }))

	atNow, err := svc.Request(ctx, "patient-1", RequestInput{StartTime: now})
	require.NoError(t, err)
	earlier, err := svc.Request(ctx, "patient-1", RequestInput{StartTime: testNow.Add(10 * time.Second)})
	require.NoError(t, err, "seconds already past in this minute are accepted")

	_, err = svc.Request(ctx, "patient-1", RequestInput{StartTime: testNow.Add(-time.Second)})
	assert.ErrorIs(t, err, ErrInvalidStartTime)

	// Partitions compare against the exact instant, so the earlier request
	// is already history.
	upcoming, err := svc.List(ctx, "patient-1", PartitionUpcoming)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, atNow.ID, upcoming[0].ID)

	past, err := svc.List(ctx, "patient-1", PartitionPast)
	require.NoError(t, err)
	require.Len(t, past, 1)
	assert.Equal(t, earlier.ID, past[0].ID)
}

func TestRescheduleKeepsPreviousStart(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	start := testNow.Add(24 * time.Hour)
	end := start.Add(30 * time.Minute)
	appt, err := svc.Request(ctx, "patient-1", RequestInput{StartTime: start, EndTime: &end})
	require.NoError(t, err)

	newStart := start.Add(72 * time.Hour)
	updated, err := svc.RequestReschedule(ctx, "patient-1", appt.ID, newStart)
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduleRequested, updated.Status)
	assert.True(t, updated.StartTime.Equal(newStart))
	require.NotNil(t, updated.PreviousStartTime)
	assert.True(t, updated.PreviousStartTime.Equal(start))
	require.NotNil(t, updated.EndTime)
	assert.Equal(t, 30*time.Minute, updated.EndTime.Sub(updated.StartTime))

	// A pending reschedule cannot be rescheduled again.
	_, err = svc.RequestReschedule(ctx, "patient-1", appt.ID, newStart.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRescheduleRejections(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	start := testNow.Add(24 * time.Hour)
	appt, err := svc.Request(ctx, "patient-1", RequestInput{StartTime: start})
	require.NoError(t, err)

	_, err = svc.RequestReschedule(ctx, "patient-1", appt.ID, start)
	assert.ErrorIs(t, err, ErrInvalidStartTime)

	_, err = svc.RequestReschedule(ctx, "patient-1", appt.ID, testNow.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidStartTime)

	_, err = svc.RequestReschedule(ctx, "patient-2", appt.ID, start.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.RequestReschedule(ctx, "patient-1", "missing", start.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SetStatus(appt.ID, StatusCompleted))
	_, err = svc.RequestReschedule(ctx, "patient-1", appt.ID, start.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancellation(t *testing.T) {
	ctx := context.Background()
	start := testNow.Add(24 * time.Hour)

	t.Run("requested cancels directly", func(t *testing.T) {
		svc, _ := newTestService(t)
		appt, err := svc.Request(ctx, "patient-1", RequestInput{StartTime: start})
		require.NoError(t, err)

		out, err := svc.RequestCancellation(ctx, "patient-1", appt.ID, CancellationRequest{Confirmed: true})
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, out.Status)

		_, err = svc.RequestCancellation(ctx, "patient-1", appt.ID, CancellationRequest{Confirmed: true})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("confirmed needs clinic acknowledgement", func(t *testing.T) {
		svc, repo := newTestService(t)
		appt, err := svc.Request(ctx, "patient-1", RequestInput{StartTime: start})
		require.NoError(t, err)
		require.NoError(t, repo.SetStatus(appt.ID, StatusConfirmed))

		out, err := svc.RequestCancellation(ctx, "patient-1", appt.ID, CancellationRequest{Confirmed: true})
		require.NoError(t, err)
		assert.Equal(t, StatusCancellationRequested, out.Status)
	})

	t.Run("unconfirmed writes nothing", func(t *testing.T) {
		svc, repo := newTestService(t)
		appt, err := svc.Request(ctx, "patient-1", RequestInput{StartTime: start})
		require.NoError(t, err)

		_, err = svc.RequestCancellation(ctx, "patient-1", appt.ID, CancellationRequest{})
		assert.ErrorIs(t, err, ErrConfirmationRequired)

		stored, err := repo.Get(ctx, appt.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusRequested, stored.Status)
	})
}

type staleRepository struct {
	*MemoryRepository
}

func (r staleRepository) UpdateIfStatus(ctx context.Context, next Appointment, expected Status) (Appointment, error) {
	// Simulate the clinic confirming between read and write.
	if err := r.SetStatus(next.ID, StatusConfirmed); err != nil {
		return Appointment{}, err
	}
	return r.MemoryRepository.UpdateIfStatus(ctx, next, expected)
}

func TestConcurrentChangeReportsStaleState(t *testing.T) {
	mem := NewMemoryRepository()
	sink := &recordingSink{}
	svc := NewService(staleRepository{mem}, nil,
		WithClock(func() time.Time { return testNow }),
		WithIntentSink("test", sink))
	ctx := context.Background()

	appt, err := svc.Request(ctx, "patient-1", RequestInput{StartTime: testNow.Add(time.Hour)})
	require.NoError(t, err)

	_, err = svc.RequestCancellation(ctx, "patient-1", appt.ID, CancellationRequest{Confirmed: true})
	require.ErrorIs(t, err, ErrStaleState)
	assert.True(t, IsRetryable(err))

	stored, err := mem.Get(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, stored.Status)
	assert.Len(t, sink.intents, 1, "only the original request is announced")
}

func TestIntentSinkFailureDoesNotFailMutation(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("queue down")}
	svc, _ := newTestService(t, WithIntentSink("failing", failing), WithIntentSink("ok", ok))
	ctx := context.Background()

	appt, err := svc.Request(ctx, "patient-1", RequestInput{StartTime: testNow.Add(time.Hour)})
	require.NoError(t, err)
	_, err = svc.RequestCancellation(ctx, "patient-1", appt.ID, CancellationRequest{Confirmed: true})
	require.NoError(t, err)

	require.Len(t, ok.intents, 2)
	assert.Equal(t, ActionRequest, ok.intents[0].Action)
	assert.Equal(t, ActionCancel, ok.intents[1].Action)
	assert.Equal(t, StatusCancelled, ok.intents[1].Appointment.Status)
	assert.Len(t, failing.intents, 2)
}

func TestListPartitions(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	for _, offset := range []time.Duration{-48 * time.Hour, 72 * time.Hour, -2 * time.Hour, 24 * time.Hour} {
		_, err := repo.Insert(ctx, Appointment{
			ID: "appt-" + offset.String(), PatientID: "patient-1",
			StartTime: testNow.Add(offset), Status: StatusConfirmed,
		})
		require.NoError(t, err)
	}
	_, err := repo.Insert(ctx, Appointment{ID: "other", PatientID: "patient-2", StartTime: testNow.Add(time.Hour)})
	require.NoError(t, err)

	upcoming, err := svc.List(ctx, "patient-1", PartitionUpcoming)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.True(t, upcoming[0].StartTime.Before(upcoming[1].StartTime))

	past, err := svc.List(ctx, "patient-1", PartitionPast)
	require.NoError(t, err)
	require.Len(t, past, 2)
	assert.True(t, past[0].StartTime.After(past[1].StartTime))
	assert.Equal(t, testNow.Add(-2*time.Hour), past[0].StartTime)
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	appt, err := svc.Request(ctx, "patient-1", RequestInput{StartTime: testNow.Add(time.Hour)})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "patient-1", appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)

	_, err = svc.Get(ctx, "patient-2", appt.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
}
