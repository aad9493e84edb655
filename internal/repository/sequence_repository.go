package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinic-queue-api/internal/models"
)

// SequenceRepository owns the per-department token counters.
type SequenceRepository struct {
	db *sqlx.DB
}

// NewSequenceRepository constructs the repository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next increments the department counter and returns the new value in a
// single statement, creating the counter at 1 on first use. Concurrent
// callers for the same department serialize on the row lock taken by the
// upsert and never observe the same value.
func (r *SequenceRepository) Next(ctx context.Context, department string) (int64, error) {
	const query = `INSERT INTO department_sequences (department, last_issued, updated_at)
VALUES ($1, 1, $2)
ON CONFLICT (department) DO UPDATE
SET last_issued = department_sequences.last_issued + 1, updated_at = EXCLUDED.updated_at
RETURNING last_issued`
	var next int64
	if err := r.db.QueryRowxContext(ctx, query, department, time.Now().UTC()).Scan(&next); err != nil {
		return 0, fmt.Errorf("advance department sequence %q: %w", department, err)
	}
	return next, nil
}

// Get returns the counter for department; an unseen department reports zero.
func (r *SequenceRepository) Get(ctx context.Context, department string) (*models.DepartmentSequence, error) {
	const query = `SELECT department, last_issued, updated_at FROM department_sequences WHERE department = $1`
	var seq models.DepartmentSequence
	if err := r.db.GetContext(ctx, &seq, query, department); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.DepartmentSequence{Department: department}, nil
		}
		return nil, fmt.Errorf("get department sequence: %w", err)
	}
	return &seq, nil
}

// List returns every department counter ordered by department.
func (r *SequenceRepository) List(ctx context.Context) ([]models.DepartmentSequence, error) {
	const query = `SELECT department, last_issued, updated_at FROM department_sequences ORDER BY department`
	var seqs []models.DepartmentSequence
	if err := r.db.SelectContext(ctx, &seqs, query); err != nil {
		return nil, fmt.Errorf("list department sequences: %w", err)
	}
	return seqs, nil
}
