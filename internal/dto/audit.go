package dto

import "github.com/noah-isme/linkage-api/internal/models"

// AuditRequest captures POST /audits payload.
type AuditRequest struct {
	Format models.AuditFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// AuditJobResponse is returned after enqueueing an audit report.
type AuditJobResponse struct {
	ID       string             `json:"id"`
	Status   models.AuditStatus `json:"status"`
	Progress int                `json:"progress"`
}

// AuditStatusResponse exposes job progress metadata.
type AuditStatusResponse struct {
	ID          string             `json:"id"`
	Status      models.AuditStatus `json:"status"`
	Progress    int                `json:"progress"`
	OrphanCount int                `json:"orphanCount"`
	ResultURL   *string            `json:"resultUrl,omitempty"`
	Error       *string            `json:"error,omitempty"`
}
