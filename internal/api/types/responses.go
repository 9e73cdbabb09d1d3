package types

import (
	"time"

	"github.com/cloudconsole/engine/internal/services"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Total     int64  `json:"total,omitempty"`
}

type DeployResponse struct {
	Success      bool   `json:"success"`
	DeploymentID string `json:"deploymentId"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type StatusResponse struct {
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Error       string     `json:"error,omitempty"`
}

type DeploymentSummary struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"accountId"`
	Provider    string     `json:"provider,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Error       string     `json:"error,omitempty"`
}

type ResourcesResponse struct {
	Deployments []services.DeploymentResources `json:"deployments"`
}
