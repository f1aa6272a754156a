package repository

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/noah-isme/linkage-api/internal/models"
)

type storeObserver interface {
	ObserveStoreQuery(backend, collection, operation, status string, duration time.Duration)
}

// InstrumentedStore bounds lookups by a timeout and records their latency.
// Full-collection scans are bounded by the caller's context only.
type InstrumentedStore struct {
	next    IdentityStore
	backend string
	timeout time.Duration
	metrics storeObserver
}

// NewInstrumentedStore wraps next. A zero timeout disables the bound.
func NewInstrumentedStore(next IdentityStore, backend string, timeout time.Duration, metrics storeObserver) *InstrumentedStore {
	return &InstrumentedStore{next: next, backend: backend, timeout: timeout, metrics: metrics}
}

func (s *InstrumentedStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *InstrumentedStore) observe(c models.Collection, op string, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case errors.Is(err, ErrRecordNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	s.metrics.ObserveStoreQuery(s.backend, string(c), op, status, time.Since(start))
}

func (s *InstrumentedStore) Get(ctx context.Context, collection models.Collection, id models.ID) (models.Record, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	start := time.Now()
	rec, err := s.next.Get(ctx, collection, id)
	s.observe(collection, "get", err, start)
	return rec, err
}

func (s *InstrumentedStore) FindBy(ctx context.Context, collection models.Collection, filter models.Filter) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		op, qctx := "scan", ctx
		if !filter.IsMatchAll() {
			var cancel context.CancelFunc
			op = "find"
			qctx, cancel = s.bound(ctx)
			defer cancel()
		}

		start := time.Now()
		var failure error
		defer func() { s.observe(collection, op, failure, start) }()

		for rec, err := range s.next.FindBy(qctx, collection, filter) {
			if err != nil {
				failure = err
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.next.Ping(ctx)
}
