package handlers

import (
	"net/http"

	"github.com/cloudconsole/engine/internal/api/types"
	"github.com/cloudconsole/engine/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type DeploymentsHandler struct {
	svc      services.DeploymentService
	validate *validator.Validate
}

func NewDeploymentsHandler(svc services.DeploymentService) *DeploymentsHandler {
	return &DeploymentsHandler{svc: svc, validate: newValidator()}
}

// Deploy accepts a deployment and answers before provisioning starts.
func (h *DeploymentsHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req services.DeployInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.svc.Deploy(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, types.DeployResponse{Success: true, DeploymentID: id})
}

func (h *DeploymentsHandler) Status(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.StatusResponse{
		Status:      string(e.Status),
		StartedAt:   e.StartedAt,
		CompletedAt: e.CompletedAt,
		Error:       e.Error,
	})
}

func (h *DeploymentsHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListDeployments(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]types.DeploymentSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, types.DeploymentSummary{
			ID:          e.ID,
			AccountID:   e.AccountID,
			Provider:    e.Provider,
			Status:      string(e.Status),
			StartedAt:   e.StartedAt,
			CompletedAt: e.CompletedAt,
			Error:       e.Error,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DeploymentsHandler) DestroyResource(w http.ResponseWriter, r *http.Request) {
	var req types.DestroyResourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, validationError(err))
		return
	}
	if err := h.svc.DestroyResource(r.Context(), req.DeploymentID, req.ResourceID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{
		Success: true,
		Message: "resource " + req.ResourceID + " destroyed",
	})
}

func (h *DeploymentsHandler) DestroyDeployment(w http.ResponseWriter, r *http.Request) {
	var req types.DestroyDeploymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, validationError(err))
		return
	}
	if err := h.svc.Destroy(r.Context(), req.DeploymentID, req.AccountID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.MessageResponse{
		Success: true,
		Message: "deployment " + req.DeploymentID + " destroyed",
	})
}

func (h *DeploymentsHandler) Resources(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.GetResources(r.Context(), r.URL.Query().Get("accountId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ResourcesResponse{Deployments: out})
}
