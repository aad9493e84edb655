package dto

import "github.com/noah-isme/clinic-queue-api/internal/models"

// RegisterPatientRequest is the registration desk payload.
type RegisterPatientRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Department string `json:"department" validate:"required,max=50"`
	Symptoms   string `json:"symptoms" validate:"required,max=2000"`
}

// QueueSnapshotItem is the flat record consumed by polling clients.
type QueueSnapshotItem struct {
	ID         string               `json:"id"`
	Token      string               `json:"token"`
	Name       string               `json:"name"`
	Department string               `json:"department"`
	Symptoms   string               `json:"symptoms"`
	Status     models.PatientStatus `json:"status"`
	TimeIn     string               `json:"timeIn"`
	TimeOut    *string              `json:"timeOut"`
}

// QueueQuery filters the display listing.
type QueueQuery struct {
	Department string
}

// Dashboard is the staff overview: who is in the room, who is next, counters.
type Dashboard struct {
	Current *models.PatientRecord `json:"current"`
	Next    *models.PatientRecord `json:"next"`
	Stats   models.QueueStats     `json:"stats"`
}
