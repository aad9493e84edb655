package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
)

func TestTransitionForwardOnly(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	waiting := models.PatientRecord{ID: "p", Token: "CARDI-001", Status: models.PatientStatusWaiting, TimeIn: now.Add(-time.Hour)}

	inRoom, err := Transition(waiting, EventStartConsultation, now)
	require.NoError(t, err)
	assert.Equal(t, models.PatientStatusInConsultation, inRoom.Status)
	assert.Nil(t, inRoom.TimeOut)
	assert.Equal(t, models.PatientStatusWaiting, waiting.Status)

	done, err := Transition(inRoom, EventCompleteConsultation, now)
	require.NoError(t, err)
	assert.Equal(t, models.PatientStatusCompleted, done.Status)
	require.NotNil(t, done.TimeOut)
	assert.Equal(t, now, *done.TimeOut)
	assert.Nil(t, inRoom.TimeOut)
}

func TestTransitionRejectsIllegalEdges(t *testing.T) {
	now := time.Now().UTC()
	out := now
	cases := []struct {
		name   string
		status models.PatientStatus
		event  PatientEvent
	}{
		{"complete waiting", models.PatientStatusWaiting, EventCompleteConsultation},
		{"restart consultation", models.PatientStatusInConsultation, EventStartConsultation},
		{"start completed", models.PatientStatusCompleted, EventStartConsultation},
		{"complete twice", models.PatientStatusCompleted, EventCompleteConsultation},
		{"unknown event", models.PatientStatusWaiting, PatientEvent("Cancel")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := models.PatientRecord{ID: "p", Status: tc.status}
			if tc.status == models.PatientStatusCompleted {
				record.TimeOut = &out
			}
			got, err := Transition(record, tc.event, now)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrIllegalTransition))
			assert.Equal(t, record, got)
		})
	}
}
