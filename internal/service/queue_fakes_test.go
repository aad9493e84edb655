package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/internal/repository"
)

// memoryPatients mimics the Postgres store: guarded updates, ordered reads
// and a queue lock that serializes WithQueueLock callers.
type memoryPatients struct {
	mu      sync.Mutex
	queueMu sync.Mutex
	seq     int
	records map[string]models.PatientRecord

	createErr error
	listErr   error
	lockErr   error
}

func newMemoryPatients() *memoryPatients {
	return &memoryPatients{records: make(map[string]models.PatientRecord)}
}

func (m *memoryPatients) Create(_ context.Context, record *models.PatientRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if record.ID == "" {
		m.seq++
		record.ID = fmt.Sprintf("p-%04d", m.seq)
	}
	m.records[record.ID] = *record
	return nil
}

// seed stores a record as-is, used to set up explicit timestamps.
func (m *memoryPatients) seed(records ...models.PatientRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r
	}
}

func (m *memoryPatients) GetByID(_ context.Context, id string) (*models.PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &record, nil
}

func (m *memoryPatients) List(_ context.Context, filter models.PatientFilter) ([]models.PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.PatientRecord
	for _, r := range m.records {
		if filter.Department != "" && r.Department != filter.Department {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, r.Status) {
			continue
		}
		if filter.From != nil && r.TimeIn.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !r.TimeIn.Before(*filter.To) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TimeIn.Equal(out[j].TimeIn) {
			return out[i].TimeIn.Before(out[j].TimeIn)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryPatients) ListCompleted(ctx context.Context, limit int) ([]models.PatientRecord, error) {
	all, err := m.List(ctx, models.PatientFilter{Status: []models.PatientStatus{models.PatientStatusCompleted}})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].TimeOut.After(*all[j].TimeOut) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memoryPatients) CountByStatus(_ context.Context, status models.PatientStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, r := range m.records {
		if r.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *memoryPatients) UpdateStatus(_ context.Context, params repository.UpdatePatientStatusParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[params.ID]
	if !ok || record.Status != params.From {
		return sql.ErrNoRows
	}
	if params.To == models.PatientStatusInConsultation {
		for _, r := range m.records {
			if r.Status == models.PatientStatusInConsultation {
				return repository.ErrActiveConsultation
			}
		}
	}
	record.Status = params.To
	record.TimeOut = params.TimeOut
	m.records[params.ID] = record
	return nil
}

func (m *memoryPatients) Stats(_ context.Context, dayStart, dayEnd time.Time) (*models.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.QueueStats{}
	within := func(t time.Time) bool { return !t.Before(dayStart) && t.Before(dayEnd) }
	for _, r := range m.records {
		switch r.Status {
		case models.PatientStatusWaiting:
			stats.Waiting++
		case models.PatientStatusInConsultation:
			stats.InConsultation++
		case models.PatientStatusCompleted:
			if within(*r.TimeOut) {
				stats.CompletedToday++
			}
		}
		if within(r.TimeIn) {
			stats.RegisteredToday++
		}
	}
	return stats, nil
}

func (m *memoryPatients) WithQueueLock(ctx context.Context, fn func(ctx context.Context, q repository.PatientQueries) error) error {
	if m.lockErr != nil {
		return m.lockErr
	}
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	return fn(ctx, m)
}

func (m *memoryPatients) all() []models.PatientRecord {
	records, _ := m.List(context.Background(), models.PatientFilter{})
	return records
}

func containsStatus(statuses []models.PatientStatus, status models.PatientStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// memorySequences is a mutex-guarded counter table.
type memorySequences struct {
	mu       sync.Mutex
	counters map[string]int64
	err      error
	block    bool
}

func newMemorySequences() *memorySequences {
	return &memorySequences{counters: make(map[string]int64)}
}

func (m *memorySequences) Next(ctx context.Context, department string) (int64, error) {
	if m.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.counters[department]++
	return m.counters[department], nil
}

func (m *memorySequences) List(context.Context) ([]models.DepartmentSequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seqs := make([]models.DepartmentSequence, 0, len(m.counters))
	for dept, n := range m.counters {
		seqs = append(seqs, models.DepartmentSequence{Department: dept, LastIssued: n})
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i].Department < seqs[j].Department })
	return seqs, nil
}
