package handler

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/linkage-api/internal/dto"
	"github.com/noah-isme/linkage-api/internal/middleware"
	"github.com/noah-isme/linkage-api/internal/models"
	"github.com/noah-isme/linkage-api/internal/service"
	appErrors "github.com/noah-isme/linkage-api/pkg/errors"
	"github.com/noah-isme/linkage-api/pkg/response"
)

const (
	defaultOrphanLimit = 1000
	maxOrphanLimit     = 10000
)

type orphanStream interface {
	Orphans(ctx context.Context) iter.Seq2[models.OrphanReport, error]
}

type auditJobService interface {
	CreateJob(ctx context.Context, req dto.AuditRequest, actorID string) (*dto.AuditJobResponse, error)
	GetStatus(ctx context.Context, id string) (*dto.AuditStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.AuditDownload, error)
}

// AuditHandler exposes consistency audit endpoints.
type AuditHandler struct {
	checker orphanStream
	jobs    auditJobService
}

// NewAuditHandler constructs the handler. jobs may be nil when report
// exports are disabled.
func NewAuditHandler(checker orphanStream, jobs auditJobService) *AuditHandler {
	return &AuditHandler{checker: checker, jobs: jobs}
}

// Orphans godoc
// @Summary List orphaned references
// @Description Streams the consistency check and returns at most limit reports.
// @Tags Audits
// @Produce json
// @Param limit query int false "Maximum reports (default 1000, max 10000)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /audits/orphans [get]
func (h *AuditHandler) Orphans(c *gin.Context) {
	limit := defaultOrphanLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxOrphanLimit {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("limit must be between 1 and %d", maxOrphanLimit)))
			return
		}
		limit = n
	}

	reports := make([]models.OrphanReport, 0)
	truncated := false
	for report, err := range h.checker.Orphans(c.Request.Context()) {
		if err != nil {
			response.Error(c, service.AsAppError(err))
			return
		}
		if len(reports) == limit {
			truncated = true
			break
		}
		reports = append(reports, report)
	}

	middleware.SetMeta(c, "count", len(reports))
	middleware.SetMeta(c, "truncated", truncated)
	respond(c, http.StatusOK, reports)
}

// CreateAudit godoc
// @Summary Queue an orphan report export
// @Tags Audits
// @Accept json
// @Produce json
// @Param payload body dto.AuditRequest true "Export format"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /audits [post]
func (h *AuditHandler) CreateAudit(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "audit exports not configured"))
		return
	}
	var req dto.AuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid audit payload"))
		return
	}
	job, err := h.jobs.CreateJob(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// AuditStatus godoc
// @Summary Audit export status
// @Tags Audits
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /audits/{id} [get]
func (h *AuditHandler) AuditStatus(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "audit exports not configured"))
		return
	}
	status, err := h.jobs.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Download godoc
// @Summary Download a finished audit export
// @Tags Audits
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /export/{token} [get]
func (h *AuditHandler) Download(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "audit exports not configured"))
		return
	}
	download, err := h.jobs.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}
	contentType := "text/csv"
	if download.Format == models.AuditFormatPDF {
		contentType = "application/pdf"
	}
	response.Attachment(c, download.Filename, contentType, info.Size(), download.File)
}
