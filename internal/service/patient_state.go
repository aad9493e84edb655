package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
)

// PatientEvent is a staff action that moves a visit forward.
type PatientEvent string

const (
	EventStartConsultation    PatientEvent = "StartConsultation"
	EventCompleteConsultation PatientEvent = "CompleteConsultation"
)

// transitions lists the only two legal edges of the visit lifecycle.
var transitions = map[PatientEvent]struct {
	from models.PatientStatus
	to   models.PatientStatus
}{
	EventStartConsultation:    {from: models.PatientStatusWaiting, to: models.PatientStatusInConsultation},
	EventCompleteConsultation: {from: models.PatientStatusInConsultation, to: models.PatientStatusCompleted},
}

// Transition returns a copy of record with event applied. Completing stamps
// the time out with now. Repeating an event is rejected, not ignored.
func Transition(record models.PatientRecord, event PatientEvent, now time.Time) (models.PatientRecord, error) {
	edge, ok := transitions[event]
	if !ok {
		return record, appErrors.Clone(appErrors.ErrIllegalTransition, fmt.Sprintf("unknown event %q", event))
	}
	if record.Status != edge.from {
		return record, appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("cannot %s patient %s: status is %q, want %q", eventVerb(event), record.Token, record.Status, edge.from))
	}

	next := record
	next.Status = edge.to
	if edge.to == models.PatientStatusCompleted {
		out := now
		next.TimeOut = &out
	}
	return next, nil
}

// transitionSource returns the status an event must start from.
func transitionSource(event PatientEvent) models.PatientStatus {
	return transitions[event].from
}

func eventVerb(event PatientEvent) string {
	switch event {
	case EventStartConsultation:
		return "start consultation for"
	case EventCompleteConsultation:
		return "complete consultation for"
	default:
		return string(event)
	}
}
