package repository

import (
	"context"
	"errors"
	"iter"

	"github.com/noah-isme/linkage-api/internal/models"
)

// ErrRecordNotFound is returned by Get when no record carries the identifier.
var ErrRecordNotFound = errors.New("record not found")

// IdentityStore is the read-only view over the identity collections shared by
// every backend.
type IdentityStore interface {
	Get(ctx context.Context, collection models.Collection, id models.ID) (models.Record, error)
	// FindBy streams the records matching filter. Each range over the returned
	// sequence issues a fresh query.
	FindBy(ctx context.Context, collection models.Collection, filter models.Filter) iter.Seq2[models.Record, error]
	Ping(ctx context.Context) error
}

func yieldErr(err error) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		yield(nil, err)
	}
}
