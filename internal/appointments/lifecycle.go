package appointments

import "fmt"

// Action is a patient-initiated lifecycle request.
type Action string

const (
	ActionRequest    Action = "request"
	ActionReschedule Action = "reschedule"
	ActionCancel     Action = "cancel"
)

// transitions lists, per action, the statuses it may start from and the
// status it leaves the appointment in.
var transitions = map[Action]map[Status]Status{
	ActionReschedule: {
		StatusRequested: StatusRescheduleRequested,
		StatusConfirmed: StatusRescheduleRequested,
	},
	ActionCancel: {
		// Nothing was committed by the clinic yet.
		StatusRequested: StatusCancelled,
		// Clinic must acknowledge.
		StatusConfirmed:           StatusCancellationRequested,
		StatusRescheduleRequested: StatusCancellationRequested,
	},
}

// NextStatus returns the status produced by applying action to from.
func NextStatus(action Action, from Status) (Status, error) {
	allowed, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	to, ok := allowed[from]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s an appointment that is %s", ErrInvalidTransition, action, from)
	}
	return to, nil
}

// Allowed reports whether action may be applied from status.
func Allowed(action Action, from Status) bool {
	_, err := NextStatus(action, from)
	return err == nil
}
