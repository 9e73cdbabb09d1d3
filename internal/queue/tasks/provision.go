package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudconsole/engine/pkg/logger"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeApply is the asynq task type of an apply job.
const TypeApply = "deployment:apply"

// ProvisionPayload is the task payload for apply tasks.
type ProvisionPayload struct {
	DeploymentID string `json:"deployment_id"`
}

// Applier runs the apply job of one deployment. The deployment record and credentials
// are loaded by the applier, so the payload carries only the id.
type Applier interface {
	RunApply(ctx context.Context, deploymentID string) error
}

// NewApplyTask builds an apply task that is never retried automatically.
func NewApplyTask(deploymentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ProvisionPayload{DeploymentID: deploymentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeApply, payload, asynq.MaxRetry(0)), nil
}

// ProvisionTaskHandler handles apply tasks.
type ProvisionTaskHandler struct {
	applier Applier
}

func NewProvisionTaskHandler(applier Applier) *ProvisionTaskHandler {
	return &ProvisionTaskHandler{applier: applier}
}

// Register binds the handler to mux.
func (h *ProvisionTaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeApply, h.HandleApply)
}

func (h *ProvisionTaskHandler) HandleApply(ctx context.Context, t *asynq.Task) error {
	var p ProvisionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid apply task payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.DeploymentID == "" {
		logger.L().Error("apply task without deployment id")
		return fmt.Errorf("missing deployment id: %w", asynq.SkipRetry)
	}

	log := logger.ForDeployment(p.DeploymentID)
	log.Info("handling apply task")

	if err := h.applier.RunApply(ctx, p.DeploymentID); err != nil {
		log.Error("apply task failed", zap.Error(err))
		// a half-applied deployment must not be re-run blindly
		return fmt.Errorf("apply %s: %v: %w", p.DeploymentID, err, asynq.SkipRetry)
	}
	log.Info("apply task completed")
	return nil
}
