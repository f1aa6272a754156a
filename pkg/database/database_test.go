package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/linkage-api/pkg/config"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "reader",
		Password: "it's secret",
		Name:     "edu_platform",
		SSLMode:  "require",
	})

	assert.Equal(t, `host=db.internal port=5433 user=reader password='it\'s secret' dbname=edu_platform sslmode=require application_name=linkage-api default_transaction_read_only=on`, dsn)
	assert.Contains(t, PostgresDSN(config.DatabaseConfig{}), "password=''")
}

func TestNewMongoRequiresTarget(t *testing.T) {
	_, _, err := NewMongo(context.Background(), config.MongoConfig{Database: "edu"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uri")

	_, _, err = NewMongo(context.Background(), config.MongoConfig{URI: "mongodb://localhost:27017"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}
