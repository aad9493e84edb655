package models

import "time"

// PatientStatus is the lifecycle state of a visit. The values are the literal
// strings stored in the database and returned to polling clients.
type PatientStatus string

const (
	PatientStatusWaiting        PatientStatus = "Waiting"
	PatientStatusInConsultation PatientStatus = "In Consultation"
	PatientStatusCompleted      PatientStatus = "Completed"
)

// Valid reports whether s is one of the three lifecycle states.
func (s PatientStatus) Valid() bool {
	switch s {
	case PatientStatusWaiting, PatientStatusInConsultation, PatientStatusCompleted:
		return true
	default:
		return false
	}
}

// PatientRecord is one walk-in visit.
type PatientRecord struct {
	ID         string        `db:"id" json:"id"`
	Token      string        `db:"token_no" json:"token"`
	Name       string        `db:"name" json:"name"`
	Department string        `db:"department" json:"department"`
	Symptoms   string        `db:"symptoms" json:"symptoms"`
	Status     PatientStatus `db:"status" json:"status"`
	TimeIn     time.Time     `db:"time_in" json:"timeIn"`
	TimeOut    *time.Time    `db:"time_out" json:"timeOut"`
}

// PatientFilter constrains queue listings.
type PatientFilter struct {
	Department string
	Status     []PatientStatus
	From       *time.Time
	To         *time.Time
}

// QueueStats backs the staff dashboard counters.
type QueueStats struct {
	Waiting         int `db:"waiting" json:"waiting"`
	InConsultation  int `db:"in_consultation" json:"inConsultation"`
	CompletedToday  int `db:"completed_today" json:"completedToday"`
	RegisteredToday int `db:"registered_today" json:"registeredToday"`
}
