package service

import (
	"context"
	"errors"
	"iter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/linkage-api/internal/models"
	"github.com/noah-isme/linkage-api/internal/repository"
)

type orphanObserver interface {
	ObserveOrphan(entityType string)
}

// ConsistencyConfig bounds the audit's memory and parallelism.
type ConsistencyConfig struct {
	// BatchSize is the number of candidates read before their targets are looked up.
	BatchSize int
	// Concurrency caps parallel target lookups within a batch.
	Concurrency int
}

// CheckSummary describes a completed audit.
type CheckSummary struct {
	References []models.ReferenceSummary `json:"references"`
	Orphans    int                       `json:"orphans"`
	CheckedAt  time.Time                 `json:"checked_at"`
}

// ConsistencyService reports records whose foreign keys resolve to nothing.
// It never writes.
type ConsistencyService struct {
	store   identityReader
	metrics orphanObserver
	logger  *zap.Logger
	cfg     ConsistencyConfig
}

// NewConsistencyService constructs the checker. metrics may be nil.
func NewConsistencyService(store identityReader, metrics orphanObserver, logger *zap.Logger, cfg ConsistencyConfig) *ConsistencyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &ConsistencyService{store: store, metrics: metrics, logger: logger, cfg: cfg}
}

// Orphans streams orphan reports. References are checked in a fixed order and
// reports follow store order within each collection. The first store failure
// ends the stream with a STORE_UNAVAILABLE error.
func (s *ConsistencyService) Orphans(ctx context.Context) iter.Seq2[models.OrphanReport, error] {
	return s.stream(ctx, nil)
}

// Check runs the whole audit and collects the reports.
func (s *ConsistencyService) Check(ctx context.Context) ([]models.OrphanReport, *CheckSummary, error) {
	refs := models.References()
	summary := &CheckSummary{References: make([]models.ReferenceSummary, len(refs))}
	reports := []models.OrphanReport{}
	for report, err := range s.stream(ctx, summary.References) {
		if err != nil {
			return nil, nil, err
		}
		reports = append(reports, report)
	}
	summary.Orphans = len(reports)
	summary.CheckedAt = time.Now().UTC()
	s.logger.Info("consistency check finished", zap.Int("orphans", summary.Orphans))
	return reports, summary, nil
}

func (s *ConsistencyService) stream(ctx context.Context, summaries []models.ReferenceSummary) iter.Seq2[models.OrphanReport, error] {
	return func(yield func(models.OrphanReport, error) bool) {
		for i, ref := range models.References() {
			var summary *models.ReferenceSummary
			if summaries != nil {
				summary = &summaries[i]
				summary.EntityType = ref.Source.EntityType()
				summary.Field = ref.Field
			}
			if !s.scan(ctx, ref, summary, yield) {
				return
			}
		}
	}
}

func (s *ConsistencyService) scan(ctx context.Context, ref models.Reference, summary *models.ReferenceSummary, yield func(models.OrphanReport, error) bool) bool {
	batch := make([]models.Record, 0, s.cfg.BatchSize)
	flush := func() bool {
		reports, err := s.checkBatch(ctx, ref, batch)
		if summary != nil {
			summary.Checked += len(batch)
			summary.Orphans += len(reports)
		}
		batch = batch[:0]
		if err != nil {
			yield(models.OrphanReport{}, err)
			return false
		}
		for _, report := range reports {
			if s.metrics != nil {
				s.metrics.ObserveOrphan(report.EntityType)
			}
			if !yield(report, nil) {
				return false
			}
		}
		return true
	}

	for rec, err := range s.store.FindBy(ctx, ref.Source, models.MatchAll) {
		if err != nil {
			yield(models.OrphanReport{}, s.storeError(ctx, ref, ref.Source, err))
			return false
		}
		batch = append(batch, rec)
		if len(batch) == s.cfg.BatchSize && !flush() {
			return false
		}
	}
	if len(batch) > 0 {
		return flush()
	}
	return true
}

// checkBatch looks up each distinct target key of the batch concurrently and
// returns the orphans in batch order.
func (s *ConsistencyService) checkBatch(ctx context.Context, ref models.Reference, batch []models.Record) ([]models.OrphanReport, error) {
	values := make([]models.ID, len(batch))
	slots := make(map[models.ID]int)
	var keys []models.ID
	for i, rec := range batch {
		v, _ := rec.Field(ref.Field)
		values[i] = models.ID(v)
		if v == "" {
			continue
		}
		if _, ok := slots[values[i]]; !ok {
			slots[values[i]] = len(keys)
			keys = append(keys, values[i])
		}
	}

	exists := make([]bool, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, key := range keys {
		g.Go(func() error {
			_, err := s.store.Get(gctx, ref.Target, key)
			switch {
			case err == nil:
				exists[i] = true
			case errors.Is(err, repository.ErrRecordNotFound):
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.storeError(ctx, ref, ref.Target, err)
	}

	var reports []models.OrphanReport
	for i, rec := range batch {
		if values[i] != "" && exists[slots[values[i]]] {
			continue
		}
		reports = append(reports, models.OrphanReport{
			EntityType:    ref.Source.EntityType(),
			EntityID:      rec.Key(),
			DanglingField: ref.Field,
			DanglingValue: values[i],
		})
	}
	return reports, nil
}

func (s *ConsistencyService) storeError(ctx context.Context, ref models.Reference, collection models.Collection, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.logger.Warn("consistency check store failure",
		zap.String("entity", ref.Source.EntityType()),
		zap.String("collection", string(collection)),
		zap.Error(err),
	)
	return &ResolutionError{
		Kind:       KindStoreUnavailable,
		Entity:     ref.Source.EntityType(),
		Collection: collection,
		Field:      ref.Field,
		Err:        err,
	}
}
