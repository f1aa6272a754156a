package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/noah-isme/linkage-api/internal/models"
	"github.com/noah-isme/linkage-api/internal/repository"
)

type orphanRecorder struct {
	mu       sync.Mutex
	entities []string
}

func (r *orphanRecorder) ObserveOrphan(entityType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = append(r.entities, entityType)
}

func TestConsistencyCheckReportsDanglingParent(t *testing.T) {
	defer goleak.VerifyNone(t)
	metrics := &orphanRecorder{}
	svc := NewConsistencyService(newLinkStore(t), metrics, nil, ConsistencyConfig{})

	reports, summary, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.OrphanReport{{
		EntityType:    "ChildProfile",
		EntityID:      "C2",
		DanglingField: models.FieldParentID,
		DanglingValue: "P9",
	}}, reports)
	assert.Equal(t, []string{"ChildProfile"}, metrics.entities)

	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Orphans)
	require.Len(t, summary.References, len(models.References()))
	assert.Equal(t, models.ReferenceSummary{EntityType: "ParentProfile", Field: models.FieldUserID, Checked: 1}, summary.References[0])
	assert.Equal(t, models.ReferenceSummary{EntityType: "ChildProfile", Field: models.FieldParentID, Checked: 2, Orphans: 1}, summary.References[2])
	assert.False(t, summary.CheckedAt.IsZero())
}

func TestConsistencyCheckSingleOrphanClassroom(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := repository.NewMemoryIdentityRepository()
	require.NoError(t, store.Put(
		models.User{ID: "U3", Email: "teacher@example.eg", Role: models.RoleTeacher},
		models.TeacherProfile{ID: "T1", UserID: "U3"},
		models.Classroom{ID: "K1", TeacherID: "T1", Name: "Algebra"},
		models.Classroom{ID: "K2", TeacherID: "T404", Name: "Biology"},
	))
	svc := NewConsistencyService(store, nil, nil, ConsistencyConfig{})

	reports, _, err := svc.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Classroom", reports[0].EntityType)
	assert.Equal(t, models.FieldTeacherID, reports[0].DanglingField)
	assert.Equal(t, models.ID("K2"), reports[0].EntityID)
}

func TestConsistencyCheckCleanStoreReturnsEmptySlice(t *testing.T) {
	store := repository.NewMemoryIdentityRepository()
	require.NoError(t, store.Put(
		models.User{ID: "U1", Email: "parent@example.eg", Role: models.RoleParent},
		models.ParentProfile{ID: "P1", UserID: "U1"},
	))
	svc := NewConsistencyService(store, nil, nil, ConsistencyConfig{})

	reports, summary, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, reports)
	assert.Empty(t, reports)
	assert.Zero(t, summary.Orphans)
}

func TestConsistencyCheckTreatsEmptyKeyAndObjectIDMismatchAsOrphans(t *testing.T) {
	oid, err := models.ObjectID("65a1f0c2b3d4e5f601234567")
	require.NoError(t, err)
	store := newLinkStore(t,
		models.ParentProfile{ID: "65a1f0c2b3d4e5f601234567", UserID: "U1"},
		models.ChildProfile{ID: "C3", ParentID: oid},
		models.ChildProfile{ID: "C4"},
	)
	svc := NewConsistencyService(store, nil, nil, ConsistencyConfig{})

	reports, _, err := svc.Check(context.Background())
	require.NoError(t, err)
	var ids []models.ID
	for _, r := range reports {
		ids = append(ids, r.EntityID)
	}
	assert.Equal(t, []models.ID{"C2", "C3", "C4"}, ids)
	assert.Equal(t, oid, reports[1].DanglingValue)
	assert.Empty(t, reports[2].DanglingValue)
}

func TestConsistencyCheckUpperCaseUUIDIsNotOrphaned(t *testing.T) {
	const parent = "0F8FAD5B-D9CB-469F-A165-70867728950E"
	store := newLinkStore(t,
		models.ParentProfile{ID: parent, UserID: "U1"},
		models.ChildProfile{ID: "C8", ParentID: parent},
	)
	svc := NewConsistencyService(store, nil, nil, ConsistencyConfig{})

	reports, _, err := svc.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, models.ID("C2"), reports[0].EntityID)
}

// countingStore tracks concurrent point lookups.
type countingStore struct {
	identityReader
	inFlight atomic.Int32
	peak     atomic.Int32
	gets     atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, c models.Collection, id models.ID) (models.Record, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.gets.Add(1)
	return s.identityReader.Get(ctx, c, id)
}

func TestConsistencyCheckBatchesAndBoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)
	mem := repository.NewMemoryIdentityRepository()
	for i := range 10 {
		require.NoError(t, mem.Put(models.ParentProfile{ID: models.ID(fmt.Sprintf("P%d", i)), UserID: "U1"}))
	}
	require.NoError(t, mem.Put(models.User{ID: "U1", Email: "parent@example.eg", Role: models.RoleParent}))
	for i := range 50 {
		require.NoError(t, mem.Put(models.ChildProfile{
			ID:       models.ID(fmt.Sprintf("C%02d", i)),
			ParentID: models.ID(fmt.Sprintf("P%d", i%12)),
		}))
	}
	store := &countingStore{identityReader: mem}
	svc := NewConsistencyService(store, nil, nil, ConsistencyConfig{BatchSize: 7, Concurrency: 2})

	reports, summary, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, store.peak.Load(), int32(2))
	// P10 and P11 are missing: children 10, 11, 22, 23, 34, 35, 46, 47.
	assert.Len(t, reports, 8)
	assert.Equal(t, 50, summary.References[2].Checked)
	for i := 1; i < len(reports); i++ {
		assert.Less(t, reports[i-1].EntityID, reports[i].EntityID)
	}
	// U1 is looked up once per profile batch, not once per profile.
	assert.Equal(t, int32(2+50), store.gets.Load())
}

func TestConsistencyOrphansStopsOnBreak(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := newLinkStore(t,
		models.ChildProfile{ID: "C3", ParentID: "P8"},
		models.ChildProfile{ID: "C4", ParentID: "P7"},
	)
	svc := NewConsistencyService(store, nil, nil, ConsistencyConfig{BatchSize: 1})

	var seen []models.ID
	for report, err := range svc.Orphans(context.Background()) {
		require.NoError(t, err)
		seen = append(seen, report.EntityID)
		break
	}
	assert.Equal(t, []models.ID{"C2"}, seen)
}

func TestConsistencyCheckSurfacesStoreFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	cause := errors.New("i/o timeout")
	svc := NewConsistencyService(failingStore{err: cause}, nil, nil, ConsistencyConfig{})

	reports, summary, err := svc.Check(context.Background())
	assert.Nil(t, reports)
	assert.Nil(t, summary)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, cause)
	re := requireResolutionError(t, err, KindStoreUnavailable)
	assert.Equal(t, "ParentProfile", re.Entity)
	assert.Equal(t, "ParentProfile: store unavailable reading parent_profiles: i/o timeout", err.Error())
}

// failingGetStore serves scans but fails every point lookup.
type failingGetStore struct {
	identityReader
	err error
}

func (s failingGetStore) Get(context.Context, models.Collection, models.ID) (models.Record, error) {
	return nil, s.err
}

func TestConsistencyCheckSurfacesTargetLookupFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	svc := NewConsistencyService(failingGetStore{identityReader: newLinkStore(t), err: errors.New("reset")}, nil, nil, ConsistencyConfig{Concurrency: 4})

	_, _, err := svc.Check(context.Background())
	re := requireResolutionError(t, err, KindStoreUnavailable)
	assert.Equal(t, models.CollectionUsers, re.Collection)
}

func TestConsistencyCheckLookupTimeoutIsStoreUnavailable(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := repository.NewInstrumentedStore(stalledStore{newLinkStore(t)}, "memory", 20*time.Millisecond, nil)
	svc := NewConsistencyService(store, nil, nil, ConsistencyConfig{Concurrency: 2})

	reports, summary, err := svc.Check(context.Background())
	assert.Nil(t, reports)
	assert.Nil(t, summary)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	re := requireResolutionError(t, err, KindStoreUnavailable)
	assert.Equal(t, "ParentProfile", re.Entity)
	assert.Equal(t, models.CollectionUsers, re.Collection)
	assert.ErrorIs(t, re.Err, context.DeadlineExceeded)
}

func TestConsistencyCheckHonoursCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewConsistencyService(newLinkStore(t), nil, nil, ConsistencyConfig{})

	_, _, err := svc.Check(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
