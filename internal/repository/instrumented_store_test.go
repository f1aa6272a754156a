package repository

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/linkage-api/internal/models"
)

type observedQuery struct {
	collection, operation, status string
}

type recordingObserver struct {
	mu      sync.Mutex
	queries []observedQuery
}

func (o *recordingObserver) ObserveStoreQuery(_, collection, operation, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queries = append(o.queries, observedQuery{collection, operation, status})
}

// blockingStore never answers until the lookup context is done.
type blockingStore struct{}

func (blockingStore) Get(ctx context.Context, _ models.Collection, _ models.ID) (models.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingStore) FindBy(ctx context.Context, _ models.Collection, _ models.Filter) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		<-ctx.Done()
		yield(nil, ctx.Err())
	}
}

func (blockingStore) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestInstrumentedStoreRecordsOutcomes(t *testing.T) {
	obs := &recordingObserver{}
	store := NewInstrumentedStore(newSeededMemory(t), "memory", time.Second, obs)

	_, err := store.Get(context.Background(), models.CollectionUsers, "U1")
	require.NoError(t, err)
	_, err = store.Get(context.Background(), models.CollectionUsers, "U404")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	collect(t, store, models.CollectionChildProfiles, models.Eq(models.FieldParentID, "P1"))
	collect(t, store, models.CollectionChildProfiles, models.MatchAll)

	assert.Equal(t, []observedQuery{
		{"users", "get", "ok"},
		{"users", "get", "not_found"},
		{"child_profiles", "find", "ok"},
		{"child_profiles", "scan", "ok"},
	}, obs.queries)
}

func TestInstrumentedStoreAppliesTimeout(t *testing.T) {
	obs := &recordingObserver{}
	store := NewInstrumentedStore(blockingStore{}, "mongo", 20*time.Millisecond, obs)

	_, err := store.Get(context.Background(), models.CollectionUsers, "U1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var got error
	for _, err := range store.FindBy(context.Background(), models.CollectionUsers, models.Eq(models.FieldEmail, "a@b.c")) {
		got = err
	}
	assert.ErrorIs(t, got, context.DeadlineExceeded)
	assert.ErrorIs(t, store.Ping(context.Background()), context.DeadlineExceeded)

	require.Len(t, obs.queries, 2)
	assert.Equal(t, "error", obs.queries[0].status)
	assert.Equal(t, "error", obs.queries[1].status)
}
