package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/clinic-queue-api/internal/models"
)

const (
	// queueLockKey names the advisory lock guarding call-next across instances.
	queueLockKey int64 = 0x436c696e6943

	singleConsultationIndex = "patients_single_consultation"
	uniqueViolation         = "23505"

	// invalidTextRepresentation is raised when an id is not a UUID.
	invalidTextRepresentation = "22P02"
)

var (
	// ErrDuplicate reports a unique constraint violation.
	ErrDuplicate = errors.New("duplicate patient record")
	// ErrActiveConsultation reports that the single-consultation index rejected a write.
	ErrActiveConsultation = errors.New("another patient is already in consultation")
)

const patientColumns = `id, token_no, name, department, symptoms, status, time_in, time_out`

// PatientQueries is the set of reads and writes available both on the pool
// and inside the queue lock.
type PatientQueries interface {
	GetByID(ctx context.Context, id string) (*models.PatientRecord, error)
	List(ctx context.Context, filter models.PatientFilter) ([]models.PatientRecord, error)
	CountByStatus(ctx context.Context, status models.PatientStatus) (int, error)
	UpdateStatus(ctx context.Context, params UpdatePatientStatusParams) error
}

// UpdatePatientStatusParams describes a guarded status change: the row is
// only written while it still holds From.
type UpdatePatientStatusParams struct {
	ID      string
	From    models.PatientStatus
	To      models.PatientStatus
	TimeOut *time.Time
}

type patientQueries struct {
	ext sqlx.ExtContext
}

// PatientRepository persists patient visits.
type PatientRepository struct {
	patientQueries
	db *sqlx.DB
}

// NewPatientRepository constructs the repository.
func NewPatientRepository(db *sqlx.DB) *PatientRepository {
	return &PatientRepository{patientQueries: patientQueries{ext: db}, db: db}
}

// WithQueueLock runs fn inside a transaction holding the clinic-wide queue
// lock. The lock is released on commit or rollback, including when ctx
// expires.
func (r *PatientRepository) WithQueueLock(ctx context.Context, fn func(ctx context.Context, q PatientQueries) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin queue transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, queueLockKey); err != nil {
		return fmt.Errorf("acquire queue lock: %w", err)
	}
	if err = fn(ctx, patientQueries{ext: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit queue transaction: %w", err)
	}
	return nil
}

// Create inserts a new visit, assigning id, status and time_in when unset.
func (q patientQueries) Create(ctx context.Context, record *models.PatientRecord) error {
	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate patient id: %w", err)
		}
		record.ID = id.String()
	}
	if record.Status == "" {
		record.Status = models.PatientStatusWaiting
	}
	if record.TimeIn.IsZero() {
		record.TimeIn = time.Now().UTC()
	}
	const query = `INSERT INTO patients (` + patientColumns + `)
VALUES (:id, :token_no, :name, :department, :symptoms, :status, :time_in, :time_out)`
	if _, err := sqlx.NamedExecContext(ctx, q.ext, query, record); err != nil {
		return fmt.Errorf("create patient: %w", translate(err))
	}
	return nil
}

// GetByID fetches a visit; sql.ErrNoRows when absent or when id cannot be
// a record id at all.
func (q patientQueries) GetByID(ctx context.Context, id string) (*models.PatientRecord, error) {
	const query = `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	var record models.PatientRecord
	if err := sqlx.GetContext(ctx, q.ext, &record, query, id); err != nil {
		if isMalformedID(err) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &record, nil
}

// List returns visits matching filter ordered oldest registration first.
func (q patientQueries) List(ctx context.Context, filter models.PatientFilter) ([]models.PatientRecord, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + patientColumns + ` FROM patients`)

	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("time_in >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("time_in < $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY time_in ASC, id ASC")

	var records []models.PatientRecord
	if err := sqlx.SelectContext(ctx, q.ext, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return records, nil
}

// ListCompleted returns the most recently completed visits first.
func (q patientQueries) ListCompleted(ctx context.Context, limit int) ([]models.PatientRecord, error) {
	const query = `SELECT ` + patientColumns + ` FROM patients
WHERE status = $1
ORDER BY time_out DESC, id ASC
LIMIT $2`
	var records []models.PatientRecord
	if err := sqlx.SelectContext(ctx, q.ext, &records, query, models.PatientStatusCompleted, limit); err != nil {
		return nil, fmt.Errorf("list completed patients: %w", err)
	}
	return records, nil
}

// CountByStatus counts visits currently in status.
func (q patientQueries) CountByStatus(ctx context.Context, status models.PatientStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM patients WHERE status = $1`
	var count int
	if err := sqlx.GetContext(ctx, q.ext, &count, query, status); err != nil {
		return 0, fmt.Errorf("count patients by status: %w", err)
	}
	return count, nil
}

// UpdateStatus applies a guarded transition. It returns sql.ErrNoRows when
// the row is missing or no longer holds params.From.
func (q patientQueries) UpdateStatus(ctx context.Context, params UpdatePatientStatusParams) error {
	const query = `UPDATE patients SET status = $1, time_out = $2 WHERE id = $3 AND status = $4`
	result, err := q.ext.ExecContext(ctx, query, params.To, params.TimeOut, params.ID, params.From)
	if err != nil {
		if isMalformedID(err) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("update patient status: %w", translate(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check patient update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Stats aggregates dashboard counters; the day window is [dayStart, dayEnd).
func (q patientQueries) Stats(ctx context.Context, dayStart, dayEnd time.Time) (*models.QueueStats, error) {
	const query = `SELECT
	COUNT(*) FILTER (WHERE status = 'Waiting') AS waiting,
	COUNT(*) FILTER (WHERE status = 'In Consultation') AS in_consultation,
	COUNT(*) FILTER (WHERE status = 'Completed' AND time_out >= $1 AND time_out < $2) AS completed_today,
	COUNT(*) FILTER (WHERE time_in >= $1 AND time_in < $2) AS registered_today
FROM patients`
	var stats models.QueueStats
	if err := sqlx.GetContext(ctx, q.ext, &stats, query, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return &stats, nil
}

func isMalformedID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == invalidTextRepresentation
}

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		if pqErr.Constraint == singleConsultationIndex {
			return fmt.Errorf("%w: %v", ErrActiveConsultation, err)
		}
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
