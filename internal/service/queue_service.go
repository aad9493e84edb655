package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-queue-api/internal/dto"
	"github.com/noah-isme/clinic-queue-api/internal/models"
	"github.com/noah-isme/clinic-queue-api/internal/repository"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
	"github.com/noah-isme/clinic-queue-api/pkg/logger"
)

const (
	snapshotCacheKey       = "queue:snapshot"
	idempotencyKeyPrefix   = "idem:register:"
	maxCompletedLimit      = 100
	defaultCompletedLimit  = 10
	defaultOperationBudget = 5 * time.Second
	snapshotTimeLayout     = "2006-01-02 15:04:05"
)

type patientStore interface {
	Create(ctx context.Context, record *models.PatientRecord) error
	GetByID(ctx context.Context, id string) (*models.PatientRecord, error)
	List(ctx context.Context, filter models.PatientFilter) ([]models.PatientRecord, error)
	ListCompleted(ctx context.Context, limit int) ([]models.PatientRecord, error)
	UpdateStatus(ctx context.Context, params repository.UpdatePatientStatusParams) error
	Stats(ctx context.Context, dayStart, dayEnd time.Time) (*models.QueueStats, error)
	WithQueueLock(ctx context.Context, fn func(ctx context.Context, q repository.PatientQueries) error) error
}

type sequenceLister interface {
	List(ctx context.Context) ([]models.DepartmentSequence, error)
}

type tokenAllocator interface {
	Allocate(ctx context.Context, department string) (string, error)
}

// QueueServiceConfig tunes the queue engine.
type QueueServiceConfig struct {
	// Departments restricts registration when non-empty; matching is
	// case-insensitive and the configured spelling is stored.
	Departments      []string
	OperationTimeout time.Duration
	CompletedLimit   int
	Location         *time.Location
	SnapshotCache    bool
	SnapshotCacheTTL time.Duration
	IdempotencyTTL   time.Duration
}

// QueueServiceParams groups constructor dependencies.
type QueueServiceParams struct {
	Patients  patientStore
	Sequences sequenceLister
	Allocator tokenAllocator
	Cache     *CacheService
	Metrics   *MetricsService
	// Validator should come from NewValidator so field errors carry JSON
	// names; nil builds one.
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    QueueServiceConfig
}

// QueueService is the single entry point for queue mutations and reads.
type QueueService struct {
	patients  patientStore
	sequences sequenceLister
	allocator tokenAllocator
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	cfg       QueueServiceConfig

	// callSlot admits one CallNext per process; the advisory lock taken in
	// WithQueueLock extends the section across instances.
	callSlot chan struct{}
}

// idempotencyEntry is what a registration key holds in the cache: empty
// while the first attempt runs, the created record afterwards.
type idempotencyEntry struct {
	Record *models.PatientRecord `json:"record,omitempty"`
}

// NewQueueService constructs the engine with defaults filled in.
func NewQueueService(params QueueServiceParams) *QueueService {
	cfg := params.Config
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationBudget
	}
	if cfg.CompletedLimit <= 0 {
		cfg.CompletedLimit = defaultCompletedLimit
	}
	if cfg.CompletedLimit > maxCompletedLimit {
		cfg.CompletedLimit = maxCompletedLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SnapshotCacheTTL <= 0 {
		cfg.SnapshotCacheTTL = 2 * time.Second
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}

	validate := params.Validator
	if validate == nil {
		validate = NewValidator()
	}

	log := params.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &QueueService{
		patients:  params.Patients,
		sequences: params.Sequences,
		allocator: params.Allocator,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: validate,
		logger:    log,
		now:       time.Now,
		cfg:       cfg,
		callSlot:  make(chan struct{}, 1),
	}
}

func (s *QueueService) log(ctx context.Context) *zap.Logger {
	return logger.With(ctx, s.logger)
}

// Location is the clinic timezone used for rendering and day windows.
func (s *QueueService) Location() *time.Location {
	return s.cfg.Location
}

// Register validates the request, mints a department token and stores a
// Waiting visit. A non-empty idempotencyKey makes retries return the
// original visit instead of minting a second token.
func (s *QueueService) Register(ctx context.Context, req dto.RegisterPatientRequest, idempotencyKey string) (record *models.PatientRecord, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQueueOperation("register", outcome(err), time.Since(start)) }()

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	req, err = s.normalizeRegistration(req)
	if err != nil {
		return nil, err
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	reserved := false
	if idempotencyKey != "" && s.cache.Enabled() {
		replay, ok, err := s.reserveIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			s.log(ctx).Info("registration replayed",
				zap.String("patient_id", replay.ID),
				zap.String("token", replay.Token))
			return replay, nil
		}
		reserved = ok
		if reserved {
			defer func() {
				if err != nil {
					s.releaseIdempotencyKey(idempotencyKey)
				}
			}()
		}
	}

	token, err := s.allocator.Allocate(ctx, req.Department)
	if err != nil {
		s.log(ctx).Error("token allocation failed", zap.String("department", req.Department), zap.Error(err))
		return nil, err
	}

	record = &models.PatientRecord{
		Token:      token,
		Name:       req.Name,
		Department: req.Department,
		Symptoms:   req.Symptoms,
		Status:     models.PatientStatusWaiting,
		TimeIn:     s.clock(),
	}
	if err := s.patients.Create(ctx, record); err != nil {
		s.log(ctx).Error("persist registration failed", zap.String("token", token), zap.Error(err))
		return nil, s.storageError(ctx, err, "failed to register patient")
	}

	if reserved {
		s.storeIdempotentRecord(ctx, idempotencyKey, record)
	}
	s.invalidateSnapshot(ctx)
	s.metrics.RecordRegistration(record.Department)
	s.log(ctx).Info("patient registered",
		zap.String("patient_id", record.ID),
		zap.String("token", record.Token),
		zap.String("department", record.Department))
	return record, nil
}

// Get returns one visit by id.
func (s *QueueService) Get(ctx context.Context, id string) (*models.PatientRecord, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Field("id", "id is required")
	}
	record, err := s.patients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, s.storageError(ctx, err, "failed to load patient")
	}
	return record, nil
}

// PeekNext reports who CallNext would pick without changing anything.
func (s *QueueService) PeekNext(ctx context.Context) (*models.PatientRecord, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	waiting, err := s.patients.List(ctx, models.PatientFilter{Status: []models.PatientStatus{models.PatientStatusWaiting}})
	if err != nil {
		return nil, s.storageError(ctx, err, "failed to load waiting patients")
	}
	return SelectNext(waiting), nil
}

// Current returns the patient in consultation, or nil.
func (s *QueueService) Current(ctx context.Context) (*models.PatientRecord, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	active, err := s.patients.List(ctx, models.PatientFilter{Status: []models.PatientStatus{models.PatientStatusInConsultation}})
	if err != nil {
		return nil, s.storageError(ctx, err, "failed to load current patient")
	}
	if len(active) == 0 {
		return nil, nil
	}
	return &active[0], nil
}

// CallNext moves the longest-waiting patient into consultation. It returns
// nil when nobody is waiting and a conflict while someone is still in
// consultation. Calls are serialized across the whole clinic.
func (s *QueueService) CallNext(ctx context.Context) (called *models.PatientRecord, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQueueOperation("call_next", outcome(err), time.Since(start)) }()

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	select {
	case s.callSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, s.storageError(ctx, ctx.Err(), "failed to enter the queue section")
	}
	defer func() { <-s.callSlot }()

	err = s.patients.WithQueueLock(ctx, func(ctx context.Context, q repository.PatientQueries) error {
		active, err := q.CountByStatus(ctx, models.PatientStatusInConsultation)
		if err != nil {
			return err
		}
		if active > 0 {
			return appErrors.Clone(appErrors.ErrConflict, "a patient is already in consultation")
		}

		waiting, err := q.List(ctx, models.PatientFilter{Status: []models.PatientStatus{models.PatientStatusWaiting}})
		if err != nil {
			return err
		}
		next := SelectNext(waiting)
		if next == nil {
			return nil
		}

		updated, err := Transition(*next, EventStartConsultation, s.clock())
		if err != nil {
			return err
		}
		if err := q.UpdateStatus(ctx, repository.UpdatePatientStatusParams{
			ID:      updated.ID,
			From:    transitionSource(EventStartConsultation),
			To:      updated.Status,
			TimeOut: updated.TimeOut,
		}); err != nil {
			return err
		}
		called = &updated
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrConflict, "next patient changed while calling")
		}
		return nil, s.storageError(ctx, err, "failed to call next patient")
	}
	if called == nil {
		s.log(ctx).Debug("call next on empty queue")
		return nil, nil
	}

	s.invalidateSnapshot(ctx)
	s.metrics.RecordTransition(string(EventStartConsultation))
	s.log(ctx).Info("patient called",
		zap.String("patient_id", called.ID),
		zap.String("token", called.Token))
	return called, nil
}

// Complete ends the consultation of the given visit.
func (s *QueueService) Complete(ctx context.Context, id string) (completed *models.PatientRecord, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQueueOperation("complete", outcome(err), time.Since(start)) }()

	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	updated, err := Transition(*record, EventCompleteConsultation, s.clock())
	if err != nil {
		return nil, err
	}
	if err := s.patients.UpdateStatus(ctx, repository.UpdatePatientStatusParams{
		ID:      updated.ID,
		From:    transitionSource(EventCompleteConsultation),
		To:      updated.Status,
		TimeOut: updated.TimeOut,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "patient is no longer in consultation")
		}
		return nil, s.storageError(ctx, err, "failed to complete consultation")
	}

	s.invalidateSnapshot(ctx)
	s.metrics.RecordTransition(string(EventCompleteConsultation))
	s.log(ctx).Info("consultation completed",
		zap.String("patient_id", updated.ID),
		zap.String("token", updated.Token))
	return &updated, nil
}

// ListQueue returns every visit, optionally for one department, in display
// order.
func (s *QueueService) ListQueue(ctx context.Context, query dto.QueueQuery) ([]models.PatientRecord, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	filter := models.PatientFilter{}
	if department := strings.TrimSpace(query.Department); department != "" {
		canonical, err := s.canonicalDepartment(department)
		if err != nil {
			return nil, err
		}
		filter.Department = canonical
	}

	records, err := s.patients.List(ctx, filter)
	if err != nil {
		return nil, s.storageError(ctx, err, "failed to list queue")
	}
	return OrderForDisplay(records), nil
}

// ListCompleted returns the latest completed visits. A non-positive limit
// uses the configured default; limits above 100 are capped.
func (s *QueueService) ListCompleted(ctx context.Context, limit int) ([]models.PatientRecord, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if limit <= 0 {
		limit = s.cfg.CompletedLimit
	}
	if limit > maxCompletedLimit {
		limit = maxCompletedLimit
	}
	records, err := s.patients.ListCompleted(ctx, limit)
	if err != nil {
		return nil, s.storageError(ctx, err, "failed to list completed patients")
	}
	return OrderCompleted(records, limit), nil
}

// VisitsOn lists the visits registered on the clinic-local day containing
// day, oldest first.
func (s *QueueService) VisitsOn(ctx context.Context, day time.Time, department string) ([]models.PatientRecord, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	from, to := s.dayWindow(day)
	filter := models.PatientFilter{From: &from, To: &to}
	if department = strings.TrimSpace(department); department != "" {
		canonical, err := s.canonicalDepartment(department)
		if err != nil {
			return nil, err
		}
		filter.Department = canonical
	}
	records, err := s.patients.List(ctx, filter)
	if err != nil {
		return nil, s.storageError(ctx, err, "failed to list visits")
	}
	return records, nil
}

// Snapshot returns the display-ordered queue flattened for polling clients.
func (s *QueueService) Snapshot(ctx context.Context) ([]dto.QueueSnapshotItem, error) {
	useCache := s.cfg.SnapshotCache && s.cache.Enabled()
	if useCache {
		var cached []dto.QueueSnapshotItem
		if hit, err := s.cache.Get(ctx, snapshotCacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	records, err := s.ListQueue(ctx, dto.QueueQuery{})
	if err != nil {
		return nil, err
	}
	items := make([]dto.QueueSnapshotItem, 0, len(records))
	for _, record := range records {
		items = append(items, s.snapshotItem(record))
	}

	// A write landing between the read above and this Set can leave a
	// snapshot that is stale for at most SnapshotCacheTTL.
	if useCache {
		if err := s.cache.Set(ctx, snapshotCacheKey, items, s.cfg.SnapshotCacheTTL); err != nil {
			s.log(ctx).Warn("cache queue snapshot failed", zap.Error(err))
		}
	}
	return items, nil
}

// Dashboard composes the staff overview for the current clinic day.
func (s *QueueService) Dashboard(ctx context.Context) (*dto.Dashboard, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	next, err := s.PeekNext(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	dayStart, dayEnd := s.dayWindow(s.clock())
	stats, err := s.patients.Stats(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, s.storageError(ctx, err, "failed to load queue stats")
	}
	s.metrics.SetQueueDepth(stats.Waiting, stats.InConsultation)
	return &dto.Dashboard{Current: current, Next: next, Stats: *stats}, nil
}

// Sequences lists the department counters.
func (s *QueueService) Sequences(ctx context.Context) ([]models.DepartmentSequence, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	seqs, err := s.sequences.List(ctx)
	if err != nil {
		return nil, s.storageError(ctx, err, "failed to list department sequences")
	}
	return seqs, nil
}

// FormatTime renders a timestamp the way polling clients expect.
func (s *QueueService) FormatTime(t time.Time) string {
	return t.In(s.cfg.Location).Format(snapshotTimeLayout)
}

func (s *QueueService) snapshotItem(record models.PatientRecord) dto.QueueSnapshotItem {
	item := dto.QueueSnapshotItem{
		ID:         record.ID,
		Token:      record.Token,
		Name:       record.Name,
		Department: record.Department,
		Symptoms:   record.Symptoms,
		Status:     record.Status,
		TimeIn:     s.FormatTime(record.TimeIn),
	}
	if record.TimeOut != nil {
		out := s.FormatTime(*record.TimeOut)
		item.TimeOut = &out
	}
	return item
}

func (s *QueueService) normalizeRegistration(req dto.RegisterPatientRequest) (dto.RegisterPatientRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Department = strings.TrimSpace(req.Department)
	req.Symptoms = strings.TrimSpace(req.Symptoms)

	if err := s.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return req, validationMessage(fieldErrs[0])
		}
		return req, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	department, err := s.canonicalDepartment(req.Department)
	if err != nil {
		return req, err
	}
	req.Department = department
	return req, nil
}

func (s *QueueService) canonicalDepartment(department string) (string, error) {
	if len(s.cfg.Departments) == 0 {
		return department, nil
	}
	for _, allowed := range s.cfg.Departments {
		if strings.EqualFold(allowed, department) {
			return allowed, nil
		}
	}
	return "", appErrors.Field("department", fmt.Sprintf("unknown department %q", department))
}

// reserveIdempotencyKey claims key for one in-flight attempt. The claim
// expires with the operation budget, so a crashed attempt frees the key on
// its own. When the cache cannot answer, registration proceeds without
// idempotency: ok is false and no error is returned.
func (s *QueueService) reserveIdempotencyKey(ctx context.Context, key string) (replay *models.PatientRecord, ok bool, err error) {
	cacheKey := idempotencyKeyPrefix + key
	reserved, err := s.cache.Reserve(ctx, cacheKey, idempotencyEntry{}, s.cfg.OperationTimeout)
	if err != nil {
		s.log(ctx).Warn("idempotency unavailable, registering without it", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	if reserved {
		return nil, true, nil
	}

	var entry idempotencyEntry
	hit, err := s.cache.Get(ctx, cacheKey, &entry)
	if err != nil {
		s.log(ctx).Warn("idempotency unavailable, registering without it", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	if hit && entry.Record != nil {
		return entry.Record, false, nil
	}
	return nil, false, appErrors.Clone(appErrors.ErrConflict, "a registration with this idempotency key is in progress")
}

// storeIdempotentRecord replaces the in-flight claim with the created record
// for the full idempotency TTL. If the record cannot be stored the claim is
// dropped, so a retry registers again instead of waiting on a placeholder.
func (s *QueueService) storeIdempotentRecord(ctx context.Context, key string, record *models.PatientRecord) {
	cacheKey := idempotencyKeyPrefix + key
	entry := idempotencyEntry{Record: record}
	err := s.cache.Set(ctx, cacheKey, entry, s.cfg.IdempotencyTTL)
	if err == nil {
		return
	}

	detached, cancel := s.detached()
	defer cancel()
	if err = s.cache.Set(detached, cacheKey, entry, s.cfg.IdempotencyTTL); err == nil {
		return
	}
	s.log(ctx).Warn("store idempotent registration failed, releasing key",
		zap.String("key", key),
		zap.String("token", record.Token),
		zap.Error(err))
	if err := s.cache.Delete(detached, cacheKey); err != nil {
		s.log(ctx).Warn("release idempotency key failed", zap.String("key", key), zap.Error(err))
	}
}

// releaseIdempotencyKey frees a key after a failed attempt so the client may
// retry. It runs detached because the request context may be the reason the
// attempt failed.
func (s *QueueService) releaseIdempotencyKey(key string) {
	ctx, cancel := s.detached()
	defer cancel()
	if err := s.cache.Delete(ctx, idempotencyKeyPrefix+key); err != nil {
		s.logger.Warn("release idempotency key failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *QueueService) detached() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.OperationTimeout)
}

func (s *QueueService) invalidateSnapshot(ctx context.Context) {
	if !s.cfg.SnapshotCache {
		return
	}
	if err := s.cache.Delete(ctx, snapshotCacheKey); err != nil {
		s.log(ctx).Warn("invalidate snapshot cache failed", zap.Error(err))
	}
}

// storageError maps a failure to the typed error surfaced to callers.
func (s *QueueService) storageError(ctx context.Context, err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if isTimeout(ctx, err) {
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, "queue operation timed out")
	}
	if errors.Is(err, repository.ErrActiveConsultation) {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "a patient is already in consultation")
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "duplicate patient record")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *QueueService) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// clock returns the current instant at the precision Postgres stores.
func (s *QueueService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *QueueService) dayWindow(now time.Time) (time.Time, time.Time) {
	local := now.In(s.cfg.Location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(appErrors.FromError(err).Code)
}

func validationMessage(fe validator.FieldError) *appErrors.Error {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return appErrors.Field(field, fmt.Sprintf("%s is required", field))
	case "max":
		return appErrors.Field(field, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	default:
		return appErrors.Field(field, fmt.Sprintf("%s is invalid", field))
	}
}

// NewValidator returns a validator that reports fields by their JSON names,
// which is what registration errors carry in their field attribute.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}
