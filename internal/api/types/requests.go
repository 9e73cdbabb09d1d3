package types

type DestroyResourceRequest struct {
	DeploymentID string `json:"deploymentId" validate:"required"`
	ResourceID   string `json:"resourceId" validate:"required"`
}

type DestroyDeploymentRequest struct {
	DeploymentID string `json:"deploymentId" validate:"required"`
	AccountID    string `json:"accountId" validate:"required"`
}
