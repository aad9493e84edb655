package service

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-queue-api/internal/dto"
	"github.com/noah-isme/clinic-queue-api/internal/repository"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
)

func TestQueueServiceMalformedIDIsNotFound(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "postgres")
	defer db.Close()

	sequences := newMemorySequences()
	svc := NewQueueService(QueueServiceParams{
		Patients:  repository.NewPatientRepository(db),
		Sequences: sequences,
		Allocator: NewTokenAllocator(sequences),
	})

	for range []string{"get", "complete"} {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, token_no")).
			WithArgs("abc").
			WillReturnError(&pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`})
	}

	_, err = svc.Get(context.Background(), "abc")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Complete(context.Background(), "abc")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewQueueServiceLeavesCallerValidatorAlone(t *testing.T) {
	own := validator.New()
	NewQueueService(QueueServiceParams{Validator: own})

	err := own.Struct(dto.RegisterPatientRequest{})
	var fieldErrs validator.ValidationErrors
	require.True(t, errors.As(err, &fieldErrs))
	assert.Equal(t, "Name", fieldErrs[0].Field())

	err = NewValidator().Struct(dto.RegisterPatientRequest{})
	require.True(t, errors.As(err, &fieldErrs))
	assert.Equal(t, "name", fieldErrs[0].Field())
}
