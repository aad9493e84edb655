package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-queue-api/internal/dto"
	"github.com/noah-isme/clinic-queue-api/internal/models"
	appErrors "github.com/noah-isme/clinic-queue-api/pkg/errors"
	"github.com/noah-isme/clinic-queue-api/pkg/response"
)

// IdempotencyHeader carries the client's retry key for registrations.
const IdempotencyHeader = "Idempotency-Key"

type queueService interface {
	Register(ctx context.Context, req dto.RegisterPatientRequest, idempotencyKey string) (*models.PatientRecord, error)
	Get(ctx context.Context, id string) (*models.PatientRecord, error)
	Complete(ctx context.Context, id string) (*models.PatientRecord, error)
	ListQueue(ctx context.Context, query dto.QueueQuery) ([]models.PatientRecord, error)
	PeekNext(ctx context.Context) (*models.PatientRecord, error)
	CallNext(ctx context.Context) (*models.PatientRecord, error)
	Current(ctx context.Context) (*models.PatientRecord, error)
	ListCompleted(ctx context.Context, limit int) ([]models.PatientRecord, error)
	Snapshot(ctx context.Context) ([]dto.QueueSnapshotItem, error)
	Dashboard(ctx context.Context) (*dto.Dashboard, error)
	Sequences(ctx context.Context) ([]models.DepartmentSequence, error)
}

// QueueHandler exposes the registration desk and staff queue endpoints.
type QueueHandler struct {
	service queueService
}

// NewQueueHandler constructs the handler.
func NewQueueHandler(service queueService) *QueueHandler {
	return &QueueHandler{service: service}
}

// Register godoc
// @Summary Register a walk-in patient
// @Tags Patients
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Retry key; replays return the original registration"
// @Param payload body dto.RegisterPatientRequest true "Patient details"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /patients [post]
func (h *QueueHandler) Register(c *gin.Context) {
	var req dto.RegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	record, err := h.service.Register(c.Request.Context(), req, c.GetHeader(IdempotencyHeader))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Get godoc
// @Summary Get a patient visit
// @Tags Patients
// @Produce json
// @Param id path string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /patients/{id} [get]
func (h *QueueHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Complete godoc
// @Summary Complete the consultation of a patient
// @Tags Patients
// @Produce json
// @Param id path string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /patients/{id}/complete [post]
func (h *QueueHandler) Complete(c *gin.Context) {
	record, err := h.service.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// List godoc
// @Summary List the queue in display order
// @Tags Queue
// @Produce json
// @Param department query string false "Only this department"
// @Success 200 {object} response.Envelope
// @Router /queue [get]
func (h *QueueHandler) List(c *gin.Context) {
	records, err := h.service.ListQueue(c.Request.Context(), dto.QueueQuery{Department: c.Query("department")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, nonNil(records), map[string]interface{}{"count": len(records)})
}

// PeekNext godoc
// @Summary Show who will be called next
// @Tags Queue
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /queue/next [get]
func (h *QueueHandler) PeekNext(c *gin.Context) {
	record, err := h.service.PeekNext(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// CallNext godoc
// @Summary Call the next waiting patient into consultation
// @Description Returns null data when nobody is waiting.
// @Tags Queue
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 504 {object} response.Envelope
// @Router /queue/next [post]
func (h *QueueHandler) CallNext(c *gin.Context) {
	record, err := h.service.CallNext(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if record == nil {
		response.JSON(c, http.StatusOK, nil, map[string]interface{}{"message": "no patients waiting"})
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Current godoc
// @Summary Show the patient in consultation
// @Tags Queue
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /queue/current [get]
func (h *QueueHandler) Current(c *gin.Context) {
	record, err := h.service.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Completed godoc
// @Summary List recently completed visits
// @Tags Queue
// @Produce json
// @Param limit query int false "Maximum rows (default 10, at most 100)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /queue/completed [get]
func (h *QueueHandler) Completed(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.Error(c, appErrors.Field("limit", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	records, err := h.service.ListCompleted(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, nonNil(records))
}

// Snapshot godoc
// @Summary Polling snapshot of the whole queue
// @Description Bare JSON array of flat records with "YYYY-MM-DD HH:MM:SS" timestamps.
// @Tags Queue
// @Produce json
// @Success 200 {array} dto.QueueSnapshotItem
// @Router /queue/snapshot [get]
func (h *QueueHandler) Snapshot(c *gin.Context) {
	items, err := h.service.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []dto.QueueSnapshotItem{}
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, items)
}

// Dashboard godoc
// @Summary Staff dashboard counters
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *QueueHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard)
}

// Sequences godoc
// @Summary Department token counters
// @Tags Queue
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments/sequences [get]
func (h *QueueHandler) Sequences(c *gin.Context) {
	seqs, err := h.service.Sequences(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if seqs == nil {
		seqs = []models.DepartmentSequence{}
	}
	response.JSON(c, http.StatusOK, seqs)
}

func nonNil(records []models.PatientRecord) []models.PatientRecord {
	if records == nil {
		return []models.PatientRecord{}
	}
	return records
}
