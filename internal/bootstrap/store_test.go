package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/linkage-api/internal/models"
	"github.com/noah-isme/linkage-api/internal/repository"
	"github.com/noah-isme/linkage-api/pkg/config"
)

type observerStub struct {
	ops []string
}

func (o *observerStub) ObserveStoreQuery(backend, collection, operation, status string, _ time.Duration) {
	o.ops = append(o.ops, backend+"/"+collection+"/"+operation+"/"+status)
}

func TestOpenIdentityStoreMemoryFixture(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{
		Backend:      config.BackendMemory,
		FixturePath:  "../../testdata/identities.json",
		QueryTimeout: time.Second,
	}}
	metrics := &observerStub{}

	store, closeFn, err := OpenIdentityStore(context.Background(), cfg, metrics, nil)
	require.NoError(t, err)
	defer closeFn()

	rec, err := store.Get(context.Background(), models.CollectionUsers, "U1")
	require.NoError(t, err)
	assert.Equal(t, "parent@example.eg", rec.(models.User).Email)

	_, err = store.Get(context.Background(), models.CollectionParentProfiles, "P9")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
	assert.NotEmpty(t, metrics.ops)
	require.NoError(t, store.Ping(context.Background()))
}

func TestOpenIdentityStoreErrors(t *testing.T) {
	_, _, err := OpenIdentityStore(context.Background(), &config.Config{Store: config.StoreConfig{Backend: "cassandra"}}, nil, nil)
	assert.ErrorContains(t, err, "cassandra")

	_, _, err = OpenIdentityStore(context.Background(), &config.Config{Store: config.StoreConfig{
		Backend:     config.BackendMemory,
		FixturePath: "../../testdata/missing.json",
	}}, nil, nil)
	assert.Error(t, err)

	_, _, err = OpenIdentityStore(context.Background(), &config.Config{Store: config.StoreConfig{Backend: config.BackendMongo}}, nil, nil)
	assert.ErrorContains(t, err, "mongo uri is empty")
}

func TestOpenIdentityStoreEmptyMemory(t *testing.T) {
	store, closeFn, err := OpenIdentityStore(context.Background(), &config.Config{}, nil, nil)
	require.NoError(t, err)
	defer closeFn()

	_, err = store.Get(context.Background(), models.CollectionUsers, "U1")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}
