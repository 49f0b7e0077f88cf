package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/coursehub/paygate/gateway"
	"github.com/coursehub/paygate/infra/config"
	"github.com/coursehub/paygate/infra/response"
	"github.com/coursehub/paygate/store"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	store     *store.Store
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(st *store.Store) *HealthHandler {
	return &HealthHandler{
		store:     st,
		startTime: time.Now(),
	}
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Uptime      string          `json:"uptime"`
	Environment string          `json:"environment"`
	Database    *DatabaseHealth `json:"database"`
	Drivers     []string        `json:"drivers"`
}

// DatabaseHealth represents database health status
type DatabaseHealth struct {
	Status       string `json:"status"`
	Connected    bool   `json:"connected"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

// Health handles health check requests
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := &HealthStatus{
		Status:      "ok",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Environment: string(config.CurrentEnvironment()),
		Drivers:     gateway.DefaultRegistry.DriverNames(),
	}

	dbHealth := &DatabaseHealth{Status: "ok", Connected: true}
	start := time.Now()
	if h.store == nil {
		dbHealth.Status = "unavailable"
		dbHealth.Connected = false
	} else if err := h.store.Ping(ctx); err != nil {
		dbHealth.Status = "error"
		dbHealth.Connected = false
		dbHealth.Error = err.Error()
		status.Status = "degraded"
	}
	dbHealth.ResponseTime = time.Since(start).Round(time.Millisecond).String()
	status.Database = dbHealth

	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	response.Success(w, code, "Service health", status)
}
