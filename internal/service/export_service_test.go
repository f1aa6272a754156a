package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/linkage-api/internal/models"
	"github.com/noah-isme/linkage-api/pkg/export"
	"github.com/noah-isme/linkage-api/pkg/storage"
)

type checkerStub struct {
	reports []models.OrphanReport
	err     error
}

func (c checkerStub) Check(ctx context.Context) ([]models.OrphanReport, *CheckSummary, error) {
	if c.err != nil {
		return nil, nil, c.err
	}
	return c.reports, &CheckSummary{
		References: []models.ReferenceSummary{{EntityType: "ChildProfile", Field: models.FieldParentID, Checked: 2, Orphans: len(c.reports)}},
		Orphans:    len(c.reports),
		CheckedAt:  time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}, nil
}

func newExportServiceForTest(t *testing.T, checker orphanChecker) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(checker, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func danglingChild() checkerStub {
	return checkerStub{reports: []models.OrphanReport{{
		EntityType: "ChildProfile", EntityID: "C2", DanglingField: models.FieldParentID, DanglingValue: "P9",
	}}}
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, _ := newExportServiceForTest(t, danglingChild())
	job := &models.AuditJob{ID: "job-1", Format: models.AuditFormatCSV}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, result.OrphanCount)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ChildProfile,C2,parentId,P9")

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t, danglingChild())
	job := &models.AuditJob{ID: "job-2", Format: models.AuditFormatPDF}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	info, err := file.Stat()
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGenerateFailures(t *testing.T) {
	svc, _ := newExportServiceForTest(t, checkerStub{err: errors.New("store down")})
	_, err := svc.Generate(context.Background(), &models.AuditJob{ID: "job-3", Format: models.AuditFormatCSV})
	require.EqualError(t, err, "store down")

	svc, _ = newExportServiceForTest(t, danglingChild())
	_, err = svc.Generate(context.Background(), &models.AuditJob{ID: "job-4", Format: "xlsx"})
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), nil)
	require.Error(t, err)
}

func TestExportServiceBuildFilename(t *testing.T) {
	svc, _ := newExportServiceForTest(t, danglingChild())
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) }

	name := svc.buildFilename(&models.AuditJob{ID: "../evil job", Format: models.AuditFormatCSV})
	assert.Equal(t, "orphans_.-evil_job_20240501_083000.csv", name)
}

func TestExportServiceDeleteAndCleanup(t *testing.T) {
	svc, _ := newExportServiceForTest(t, danglingChild())
	result, err := svc.Generate(context.Background(), &models.AuditJob{ID: "job-5", Format: models.AuditFormatCSV})
	require.NoError(t, err)

	removed, err := svc.Cleanup(0)
	require.NoError(t, err)
	assert.Empty(t, removed)

	require.NoError(t, svc.Delete(result.RelativePath))
	_, err = svc.Open(result.RelativePath)
	require.Error(t, err)
}
