package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/linkage-api/internal/models"
	"github.com/noah-isme/linkage-api/pkg/export"
	"github.com/noah-isme/linkage-api/pkg/storage"
)

type orphanChecker interface {
	Check(ctx context.Context) ([]models.OrphanReport, *CheckSummary, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.AuditFormat
	OrphanCount  int
	ExpiresAt    time.Time
}

// ExportService renders orphan audits and persists them for signed download.
type ExportService struct {
	checker orphanChecker
	storage fileStorage
	csv     datasetRenderer
	pdf     datasetRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(checker orphanChecker, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		checker: checker,
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate runs the consistency check and stores the rendered report.
func (s *ExportService) Generate(ctx context.Context, job *models.AuditJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	reports, summary, err := s.checker.Check(ctx)
	if err != nil {
		return nil, err
	}
	dataset := s.buildDataset(reports, summary)

	var payload []byte
	switch job.Format {
	case models.AuditFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.AuditFormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("audit report stored",
		zap.String("job_id", job.ID),
		zap.String("path", relPath),
		zap.Int("orphans", len(reports)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Format,
		OrphanCount:  len(reports),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.AuditJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("orphans_%s_%s.%s", sanitizeFilename(job.ID), timestamp, job.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(reports []models.OrphanReport, summary *CheckSummary) export.Dataset {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{r.EntityType, r.EntityID.String(), r.DanglingField, r.DanglingValue.String()})
	}
	var footer []string
	if summary != nil {
		for _, ref := range summary.References {
			footer = append(footer, fmt.Sprintf("%s.%s: %d checked, %d orphaned", ref.EntityType, ref.Field, ref.Checked, ref.Orphans))
		}
		footer = append(footer, "Checked at "+summary.CheckedAt.Format(time.RFC3339))
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Orphaned references (%d)", len(reports)),
		Headers: []string{"Entity Type", "Entity ID", "Dangling Field", "Dangling Value"},
		Rows:    rows,
		Footer:  footer,
	}
}
