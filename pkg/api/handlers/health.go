// Package handlers implements the monitoring HTTP handlers.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/marmos91/objio/pkg/objectstore"
)

// Response is the envelope of every health response.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// StoreHealth is the readiness payload.
type StoreHealth struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store     objectstore.Store
	storeType string
	timeout   time.Duration
}

// NewHealthHandler creates a handler. store may be nil.
func NewHealthHandler(store objectstore.Store, storeType string) *HealthHandler {
	return &HealthHandler{store: store, storeType: storeType, timeout: 5 * time.Second}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data:      map[string]string{"service": "objio"},
	})
}

// Readiness handles GET /health/ready by running the object store health
// check. Returns 503 when the store is missing or unhealthy.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Status:    "unhealthy",
			Timestamp: time.Now().UTC(),
			Error:     "object store not initialized",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	start := time.Now()
	err := h.store.HealthCheck(ctx)
	health := StoreHealth{
		Type:    h.storeType,
		Status:  "healthy",
		Latency: time.Since(start).String(),
	}

	if err != nil {
		health.Status = "unhealthy"
		health.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Status:    "unhealthy",
			Timestamp: time.Now().UTC(),
			Data:      health,
			Error:     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data:      health,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
