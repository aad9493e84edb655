package models

import "time"

// SystemMetrics is a JSON-friendly digest of the Prometheus collectors.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	Registrations            uint64    `json:"registrations"`
	Consultations            uint64    `json:"consultations"`
	Completions              uint64    `json:"completions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
