package repository

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/noah-isme/linkage-api/internal/models"
)

// MemoryIdentityRepository keeps identity snapshots in process. Records are
// returned in insertion order.
type MemoryIdentityRepository struct {
	mu      sync.RWMutex
	records map[models.Collection][]models.Record
	index   map[models.Collection]map[models.ID]int
}

// NewMemoryIdentityRepository creates an empty in-memory store.
func NewMemoryIdentityRepository() *MemoryIdentityRepository {
	return &MemoryIdentityRepository{
		records: make(map[models.Collection][]models.Record),
		index:   make(map[models.Collection]map[models.ID]int),
	}
}

// Put inserts records, replacing any record with the same collection and id.
func (r *MemoryIdentityRepository) Put(records ...models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		c := rec.Collection()
		if !c.Valid() {
			return fmt.Errorf("put record: %w: %q", models.ErrUnknownCollection, c)
		}
		if rec.Key().IsZero() {
			return fmt.Errorf("put %s record: empty id", c)
		}
		if r.index[c] == nil {
			r.index[c] = make(map[models.ID]int)
		}
		if i, ok := r.index[c][rec.Key()]; ok {
			r.records[c][i] = rec
			continue
		}
		r.index[c][rec.Key()] = len(r.records[c])
		r.records[c] = append(r.records[c], rec)
	}
	return nil
}

// Get returns a record by canonical id.
func (r *MemoryIdentityRepository) Get(ctx context.Context, collection models.Collection, id models.ID) (models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !collection.Valid() {
		return nil, fmt.Errorf("get record: %w: %q", models.ErrUnknownCollection, collection)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[collection][id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return r.records[collection][i], nil
}

// FindBy streams the records matching filter from a point-in-time snapshot.
func (r *MemoryIdentityRepository) FindBy(ctx context.Context, collection models.Collection, filter models.Filter) iter.Seq2[models.Record, error] {
	if err := filter.Validate(collection); err != nil {
		return yieldErr(fmt.Errorf("find %s: %w", collection, err))
	}
	return func(yield func(models.Record, error) bool) {
		r.mu.RLock()
		matches := make([]models.Record, 0, len(r.records[collection]))
		for _, rec := range r.records[collection] {
			if filter.Matches(rec) {
				matches = append(matches, rec)
			}
		}
		r.mu.RUnlock()

		for _, rec := range matches {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Ping always succeeds.
func (r *MemoryIdentityRepository) Ping(context.Context) error { return nil }
