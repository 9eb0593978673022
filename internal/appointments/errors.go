package appointments

import "errors"

var (
	// ErrNotFound is returned when the appointment does not exist.
	ErrNotFound = errors.New("appointments: appointment not found")

	// ErrNotOwner is returned when the appointment belongs to another patient.
	ErrNotOwner = errors.New("appointments: appointment belongs to another patient")

	// ErrPatientRequired is returned when no resolved patient scopes the call.
	ErrPatientRequired = errors.New("appointments: patient id is required")

	// ErrInvalidTransition is returned when the requested action is not
	// allowed from the appointment's current status.
	ErrInvalidTransition = errors.New("appointments: invalid transition request")

	// ErrInvalidStartTime is returned for missing, past or unchanged start times.
	ErrInvalidStartTime = errors.New("appointments: invalid start time")

	// ErrInvalidTimeRange is returned when the end time is not after the start time.
	ErrInvalidTimeRange = errors.New("appointments: end time must be after start time")

	// ErrConfirmationRequired is returned when a cancellation was not confirmed.
	ErrConfirmationRequired = errors.New("appointments: cancellation must be confirmed")

	// ErrStaleState is returned when the stored status changed between read
	// and conditional write, e.g. the clinic confirmed it meanwhile.
	ErrStaleState = errors.New("appointments: appointment changed, reload and retry")

	// ErrWriteRejected is returned when the store refused a write (constraint violation).
	ErrWriteRejected = errors.New("appointments: write rejected by store")

	// ErrStoreUnavailable is returned when the store cannot be reached.
	ErrStoreUnavailable = errors.New("appointments: store unavailable")
)

// IsRetryable reports whether the caller may re-invoke the operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStaleState) ||
		errors.Is(err, ErrWriteRejected) ||
		errors.Is(err, ErrStoreUnavailable)
}
