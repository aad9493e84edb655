package service

import (
	"sort"

	"github.com/noah-isme/clinic-queue-api/internal/models"
)

func displayRank(status models.PatientStatus) int {
	switch status {
	case models.PatientStatusInConsultation:
		return 1
	case models.PatientStatusWaiting:
		return 2
	case models.PatientStatusCompleted:
		return 3
	default:
		return 4
	}
}

// OrderForDisplay sorts records for viewers: the patient in consultation,
// then waiting patients newest first, then completed patients newest first.
// This is not service order; see SelectNext. The input is left untouched.
func OrderForDisplay(records []models.PatientRecord) []models.PatientRecord {
	ordered := append([]models.PatientRecord(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := displayRank(ordered[i].Status), displayRank(ordered[j].Status)
		if ri != rj {
			return ri < rj
		}
		if !ordered[i].TimeIn.Equal(ordered[j].TimeIn) {
			return ordered[i].TimeIn.After(ordered[j].TimeIn)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

// SelectNext picks the waiting patient registered earliest, ties broken by
// id. It returns nil when no one is waiting.
func SelectNext(records []models.PatientRecord) *models.PatientRecord {
	var next *models.PatientRecord
	for i := range records {
		r := &records[i]
		if r.Status != models.PatientStatusWaiting {
			continue
		}
		if next == nil || r.TimeIn.Before(next.TimeIn) || (r.TimeIn.Equal(next.TimeIn) && r.ID < next.ID) {
			next = r
		}
	}
	if next == nil {
		return nil
	}
	selected := *next
	return &selected
}

// OrderCompleted keeps completed records, most recent time out first, and
// truncates to limit when limit is positive.
func OrderCompleted(records []models.PatientRecord, limit int) []models.PatientRecord {
	completed := make([]models.PatientRecord, 0, len(records))
	for _, r := range records {
		if r.Status == models.PatientStatusCompleted && r.TimeOut != nil {
			completed = append(completed, r)
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		if !completed[i].TimeOut.Equal(*completed[j].TimeOut) {
			return completed[i].TimeOut.After(*completed[j].TimeOut)
		}
		return completed[i].ID < completed[j].ID
	})
	if limit > 0 && len(completed) > limit {
		completed = completed[:limit]
	}
	return completed
}
