// Package appointments owns the patient-initiated appointment lifecycle.
package appointments

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the closed set of appointment states.
type Status string

const (
	StatusRequested             Status = "requested"
	StatusConfirmed             Status = "confirmed"
	StatusRescheduleRequested   Status = "reschedule_requested"
	StatusCancellationRequested Status = "cancellation_requested"
	StatusCancelled             Status = "cancelled"
	StatusCompleted             Status = "completed"
)

var knownStatuses = map[Status]struct{}{
	StatusRequested:             {},
	StatusConfirmed:             {},
	StatusRescheduleRequested:   {},
	StatusCancellationRequested: {},
	StatusCancelled:             {},
	StatusCompleted:             {},
}

// ParseStatus validates a stored status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if _, ok := knownStatuses[s]; !ok {
		return "", fmt.Errorf("appointments: unknown status %q", raw)
	}
	return s, nil
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Appointment belongs to exactly one patient.
type Appointment struct {
	ID                string     `json:"id"`
	PatientID         string     `json:"patient_id"`
	Title             string     `json:"title"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	Status            Status     `json:"status"`
	Reason            string     `json:"reason,omitempty"`
	PreviousStartTime *time.Time `json:"previous_start_time,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// clone returns a deep copy so callers never share pointers with the store.
func (a Appointment) clone() Appointment {
	out := a
	if a.EndTime != nil {
		end := *a.EndTime
		out.EndTime = &end
	}
	if a.PreviousStartTime != nil {
		prev := *a.PreviousStartTime
		out.PreviousStartTime = &prev
	}
	return out
}

// Partition selects upcoming or past appointments relative to now.
type Partition string

const (
	PartitionUpcoming Partition = "upcoming"
	PartitionPast     Partition = "past"
)

// ParsePartition defaults to upcoming when raw is blank.
func ParsePartition(raw string) (Partition, error) {
	switch Partition(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PartitionUpcoming:
		return PartitionUpcoming, nil
	case PartitionPast:
		return PartitionPast, nil
	default:
		return "", fmt.Errorf("appointments: unknown partition %q", raw)
	}
}

// Apply filters and orders appts. Upcoming holds start >= now ascending;
// past holds start < now, most recent first. Comparison is on absolute time.
func (p Partition) Apply(appts []Appointment, now time.Time) []Appointment {
	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		upcoming := !a.StartTime.Before(now)
		if upcoming == (p == PartitionUpcoming) {
			out = append(out, a.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if p == PartitionPast {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// RequestInput describes a new appointment request.
type RequestInput struct {
	Title     string     `json:"title"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// CancellationRequest carries the patient's explicit confirmation.
type CancellationRequest struct {
	Confirmed bool `json:"confirm"`
}
