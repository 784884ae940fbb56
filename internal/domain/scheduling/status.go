package scheduling

import (
	"fmt"

	"github.com/medcrm/clinic/internal/domain"
)

// transitions lists status changes allowed through an edit. Completion is
// only reachable by recording a payment.
var transitions = map[Status][]Status{
	StatusQueue:     {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CheckTransition validates an edit from one status to another.
func CheckTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if !to.Valid() {
		return domain.Invalid("status", fmt.Sprintf("unknown status %q", to))
	}
	if to == StatusCompleted {
		return domain.Invalid("status", "an appointment is completed by recording its payment")
	}
	if from.Terminal() {
		return domain.Invalid("status", fmt.Sprintf("%s appointment cannot change status", from))
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return domain.Invalid("status", fmt.Sprintf("cannot change status from %s to %s", from, to))
}

// InitialStatus resolves the status of a new appointment.
func InitialStatus(s Status) (Status, error) {
	switch s {
	case "":
		return StatusQueue, nil
	case StatusQueue, StatusConfirmed:
		return s, nil
	}
	return "", domain.Invalid("status", "a new appointment must be queue or confirmed")
}
