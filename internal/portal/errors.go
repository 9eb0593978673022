package portal

import (
	"errors"
	"net/http"

	"github.com/wolfman30/patient-portal/internal/appointments"
	"github.com/wolfman30/patient-portal/internal/conversation"
	"github.com/wolfman30/patient-portal/internal/documents"
	"github.com/wolfman30/patient-portal/internal/identity"
)

type publicError struct {
	target  error
	status  int
	message string
}

// Order matters: the first match wins.
var publicErrors = []publicError{
	{ErrNoSession, http.StatusUnauthorized, "Please sign in again."},
	{identity.ErrNotFound, http.StatusUnauthorized, "We could not find a patient with these details."},
	{identity.ErrAmbiguous, http.StatusUnauthorized, "We could not find a patient with these details."},
	{identity.ErrStoreUnavailable, http.StatusServiceUnavailable, "The portal is temporarily unavailable. Please try again shortly."},
	{appointments.ErrNotFound, http.StatusNotFound, "Appointment not found."},
	{appointments.ErrNotOwner, http.StatusNotFound, "Appointment not found."},
	{appointments.ErrPatientRequired, http.StatusUnauthorized, "Please sign in again."},
	{appointments.ErrInvalidTransition, http.StatusConflict, "This appointment can no longer be changed that way."},
	{appointments.ErrInvalidStartTime, http.StatusBadRequest, "Please choose a future date and time."},
	{appointments.ErrInvalidTimeRange, http.StatusBadRequest, "The end time must be after the start time."},
	{appointments.ErrConfirmationRequired, http.StatusBadRequest, "Please confirm the cancellation."},
	{appointments.ErrStaleState, http.StatusConflict, "This appointment was just updated by the clinic. Please reload and try again."},
	{appointments.ErrWriteRejected, http.StatusServiceUnavailable, "We could not save your request. Please try again."},
	{appointments.ErrStoreUnavailable, http.StatusServiceUnavailable, "The portal is temporarily unavailable. Please try again shortly."},
	{documents.ErrStoreUnavailable, http.StatusServiceUnavailable, "Documents are temporarily unavailable."},
	{conversation.ErrEmptyInput, http.StatusBadRequest, "Please type a message."},
	{conversation.ErrTurnInProgress, http.StatusConflict, "Please wait for the current answer."},
	{conversation.ErrSessionNotFound, http.StatusUnauthorized, "Your chat session has expired. Please sign in again."},
	{conversation.ErrStoreUnavailable, http.StatusServiceUnavailable, "The chat is temporarily unavailable."},
}

// PublicMessage maps an error to the status and text shown to patients.
// Internal details never leave the core.
func PublicMessage(err error) (int, string) {
	for _, pe := range publicErrors {
		if errors.Is(err, pe.target) {
			return pe.status, pe.message
		}
	}
	return http.StatusInternalServerError, "Something went wrong. Please try again."
}
