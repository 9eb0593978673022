package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/patient-portal/internal/appointments"
	"github.com/wolfman30/patient-portal/pkg/logging"
)

// StaffConfig controls who hears about patient requests.
type StaffConfig struct {
	ClinicName string
	Recipients []string
	// Location renders appointment times for staff. Defaults to UTC.
	Location *time.Location
}

// StaffNotifier emails clinic staff whenever a patient asks for an
// appointment change. It implements appointments.IntentSink.
type StaffNotifier struct {
	email  EmailSender
	cfg    StaffConfig
	logger *logging.Logger
}

// NewStaffNotifier creates a StaffNotifier.
func NewStaffNotifier(email EmailSender, cfg StaffConfig, logger *logging.Logger) *StaffNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &StaffNotifier{email: email, cfg: cfg, logger: logger}
}

// Handle implements appointments.IntentSink.
func (n *StaffNotifier) Handle(ctx context.Context, intent appointments.Intent) error {
	if n.email == nil || len(n.cfg.Recipients) == 0 {
		n.logger.Debug("notify: staff email not configured, skipping", "intent_id", intent.ID)
		return nil
	}

	msg := n.compose(intent)
	var errs []error
	for _, recipient := range n.cfg.Recipients {
		msg.To = recipient
		if err := n.email.Send(ctx, msg); err != nil {
			n.logger.Error("notify: failed to send staff email", "error", err, "intent_id", intent.ID)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d of %d staff emails failed: %w", len(errs), len(n.cfg.Recipients), errors.Join(errs...))
	}
	n.logger.Info("notify: staff notified", "intent_id", intent.ID, "action", intent.Action, "recipients", len(n.cfg.Recipients))
	return nil
}

func (n *StaffNotifier) compose(intent appointments.Intent) EmailMessage {
	appt := intent.Appointment
	when := n.format(appt.StartTime)

	var headline string
	switch intent.Action {
	case appointments.ActionRequest:
		headline = "New appointment request"
	case appointments.ActionReschedule:
		headline = "Reschedule request"
	case appointments.ActionCancel:
		if appt.Status == appointments.StatusCancelled {
			headline = "Appointment request withdrawn"
		} else {
			headline = "Cancellation request"
		}
	default:
		headline = "Appointment update"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", headline)
	fmt.Fprintf(&b, "Patient ID: %s\n", intent.PatientID)
	fmt.Fprintf(&b, "Appointment ID: %s\n", appt.ID)
	if appt.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", appt.Title)
	}
	fmt.Fprintf(&b, "Time: %s\n", when)
	if appt.PreviousStartTime != nil {
		fmt.Fprintf(&b, "Previously: %s\n", n.format(*appt.PreviousStartTime))
	}
	if appt.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", appt.Reason)
	}
	fmt.Fprintf(&b, "Status: %s\n", appt.Status)
	if appt.Status != appointments.StatusCancelled {
		b.WriteString("\nPlease review and confirm with the patient.\n")
	}
	if n.cfg.ClinicName != "" {
		fmt.Fprintf(&b, "\n%s patient portal\n", n.cfg.ClinicName)
	}

	return EmailMessage{
		Subject: fmt.Sprintf("%s - %s", headline, when),
		Body:    b.String(),
	}
}

func (n *StaffNotifier) format(t time.Time) string {
	return t.In(n.cfg.Location).Format("Monday, January 2 at 3:04 PM")
}
