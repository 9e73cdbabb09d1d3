package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudconsole/engine/internal/api/types"
)

// Check is one readiness probe such as a database or broker ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type HealthHandler struct {
	checks []Check
}

func NewHealthHandler(checks ...Check) *HealthHandler { return &HealthHandler{checks: checks} }

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]string{"status": "ok"}})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	results := map[string]string{}
	ready := true
	for _, c := range h.checks {
		if err := c.Fn(ctx); err != nil {
			results[c.Name] = err.Error()
			ready = false
			continue
		}
		results[c.Name] = "ok"
	}
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, types.APIResponse{
			Success: false,
			Data:    results,
			Error:   &types.APIError{Code: "unavailable", Message: "not ready"},
		})
		return
	}
	results["status"] = "ready"
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: results})
}
