package health

import "time"

// BasicHealthResponse represents the basic health check response
type BasicHealthResponse struct {
	Message string `json:"message"`
}

// HealthCheck represents an individual dependency check result
type HealthCheck struct {
	Status  string `json:"status"`
	Latency int64  `json:"latency_ms"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents a detailed health check response
type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	DurationMs int64                  `json:"duration_ms"`
	Checks     map[string]HealthCheck `json:"checks"`
}
