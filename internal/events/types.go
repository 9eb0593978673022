package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/patient-portal/internal/appointments"
)

// AppointmentIntentV1 is published whenever a patient asks the clinic to
// create, move or cancel an appointment.
type AppointmentIntentV1 struct {
	IntentID          string     `json:"intent_id"`
	Action            string     `json:"action"`
	PatientID         string     `json:"patient_id"`
	AppointmentID     string     `json:"appointment_id"`
	Title             string     `json:"title,omitempty"`
	Status            string     `json:"status"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	PreviousStartTime *time.Time `json:"previous_start_time,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	OccurredAt        time.Time  `json:"occurred_at"`
}

// EventType implements Event.
func (e AppointmentIntentV1) EventType() string {
	return "portal.appointment." + e.Action + ".v1"
}

// AppointmentIntentFrom flattens an intent into its wire form.
func AppointmentIntentFrom(in appointments.Intent) AppointmentIntentV1 {
	appt := in.Appointment
	return AppointmentIntentV1{
		IntentID:          in.ID,
		Action:            string(in.Action),
		PatientID:         in.PatientID,
		AppointmentID:     appt.ID,
		Title:             appt.Title,
		Status:            string(appt.Status),
		StartTime:         appt.StartTime,
		EndTime:           appt.EndTime,
		PreviousStartTime: appt.PreviousStartTime,
		Reason:            appt.Reason,
		OccurredAt:        in.OccurredAt,
	}
}

// envelopeFor wraps an intent. The intent ID doubles as the event ID.
func envelopeFor(in appointments.Intent) (Envelope, error) {
	id, err := uuid.Parse(in.ID)
	if err != nil {
		id = uuid.Nil
	}
	return seal("patient:"+in.PatientID, in.Appointment.ID, AppointmentIntentFrom(in), id, in.OccurredAt)
}
