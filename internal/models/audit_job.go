package models

import "time"

// AuditFormat enumerates supported export formats.
type AuditFormat string

const (
	AuditFormatCSV AuditFormat = "csv"
	AuditFormatPDF AuditFormat = "pdf"
)

// Valid reports whether the format can be rendered.
func (f AuditFormat) Valid() bool {
	return f == AuditFormatCSV || f == AuditFormatPDF
}

// AuditStatus captures background job lifecycle states.
type AuditStatus string

const (
	AuditStatusQueued     AuditStatus = "QUEUED"
	AuditStatusProcessing AuditStatus = "PROCESSING"
	AuditStatusFinished   AuditStatus = "FINISHED"
	AuditStatusFailed     AuditStatus = "FAILED"
)

// AuditJob is the metadata of an asynchronous orphan report export.
type AuditJob struct {
	ID           string      `json:"id"`
	Format       AuditFormat `json:"format"`
	Status       AuditStatus `json:"status"`
	Progress     int         `json:"progress"`
	OrphanCount  int         `json:"orphan_count"`
	ResultURL    *string     `json:"result_url,omitempty"`
	CreatedBy    string      `json:"created_by"`
	CreatedAt    time.Time   `json:"created_at"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`
	ErrorMessage *string     `json:"error_message,omitempty"`
}
