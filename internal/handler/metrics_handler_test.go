package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-queue-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	checks := map[string]func(context.Context) error{
		"database": func(context.Context) error { return nil },
	}
	r := gin.New()
	r.GET("/ready", NewMetricsHandler(nil, checks).Ready)

	w := perform(r, http.MethodGet, "/ready", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok"}}`, w.Body.String())

	checks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	w = perform(r, http.MethodGet, "/ready", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	metrics.RecordRegistration("Cardiology")

	r := gin.New()
	h := NewMetricsHandler(metrics, nil)
	r.GET("/metrics", h.Prometheus)
	r.GET("/system/metrics", h.Summary)

	w := perform(r, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `clinic_queue_registrations_total{department="Cardiology"} 1`)

	w = perform(r, http.MethodGet, "/system/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"registrations":1`)
}
