package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/linkage-api/internal/models"
	appErrors "github.com/noah-isme/linkage-api/pkg/errors"
)

const auditJobKeyPrefix = "audit:job:"

type jobCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// UpdateAuditJobParams holds the mutable fields of a job. Nil fields are left
// untouched; an empty ResultURL or ErrorMessage clears the value.
type UpdateAuditJobParams struct {
	Status       *models.AuditStatus
	Progress     *int
	OrphanCount  *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// AuditJobRepository keeps audit job metadata in a key-value cache with a TTL.
type AuditJobRepository struct {
	cache jobCache
	ttl   time.Duration
}

// NewAuditJobRepository creates a repository. Jobs expire after ttl.
func NewAuditJobRepository(cache jobCache, ttl time.Duration) *AuditJobRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuditJobRepository{cache: cache, ttl: ttl}
}

func auditJobKey(id string) string { return auditJobKeyPrefix + id }

// Create assigns an id and creation time when missing and stores the job.
func (r *AuditJobRepository) Create(ctx context.Context, job *models.AuditJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if err := r.cache.Set(ctx, auditJobKey(job.ID), job, r.ttl); err != nil {
		return fmt.Errorf("create audit job: %w", err)
	}
	return nil
}

// GetByID returns ErrRecordNotFound for unknown or expired jobs.
func (r *AuditJobRepository) GetByID(ctx context.Context, id string) (*models.AuditJob, error) {
	var job models.AuditJob
	if err := r.cache.Get(ctx, auditJobKey(id), &job); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("get audit job: %w", err)
	}
	return &job, nil
}

// Update applies params to a stored job.
func (r *AuditJobRepository) Update(ctx context.Context, id string, params UpdateAuditJobParams) error {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.OrphanCount != nil {
		job.OrphanCount = *params.OrphanCount
	}
	if params.ResultURL != nil {
		job.ResultURL = emptyToNil(*params.ResultURL)
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = emptyToNil(*params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		finished := *params.FinishedAt
		job.FinishedAt = &finished
	}
	if err := r.cache.Set(ctx, auditJobKey(id), job, r.ttl); err != nil {
		return fmt.Errorf("update audit job: %w", err)
	}
	return nil
}

// Delete removes a job.
func (r *AuditJobRepository) Delete(ctx context.Context, id string) error {
	if err := r.cache.Delete(ctx, auditJobKey(id)); err != nil {
		return fmt.Errorf("delete audit job: %w", err)
	}
	return nil
}

// ListQueued returns queued jobs oldest first.
func (r *AuditJobRepository) ListQueued(ctx context.Context, limit int) ([]models.AuditJob, error) {
	return r.list(ctx, limit, func(job models.AuditJob) bool {
		return job.Status == models.AuditStatusQueued
	})
}

// ListFinishedBefore returns finished jobs completed before cutoff.
func (r *AuditJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.AuditJob, error) {
	return r.list(ctx, limit, func(job models.AuditJob) bool {
		return job.Status == models.AuditStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff)
	})
}

func (r *AuditJobRepository) list(ctx context.Context, limit int, keep func(models.AuditJob) bool) ([]models.AuditJob, error) {
	keys, err := r.cache.Keys(ctx, auditJobKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list audit jobs: %w", err)
	}
	var jobs []models.AuditJob
	for _, key := range keys {
		job, err := r.GetByID(ctx, strings.TrimPrefix(key, auditJobKeyPrefix))
		if errors.Is(err, ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if keep(*job) {
			jobs = append(jobs, *job)
		}
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
