package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/noah-isme/linkage-api/internal/models"
)

// MongoIdentityRepository reads identities from the legacy document database.
type MongoIdentityRepository struct {
	db *mongo.Database
}

// NewMongoIdentityRepository creates a repository over the given database.
func NewMongoIdentityRepository(db *mongo.Database) *MongoIdentityRepository {
	return &MongoIdentityRepository{db: db}
}

func (r *MongoIdentityRepository) collection(c models.Collection) (*mongo.Collection, error) {
	name, ok := mongoCollections[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownCollection, c)
	}
	return r.db.Collection(name), nil
}

// Get returns the document with the given _id.
func (r *MongoIdentityRepository) Get(ctx context.Context, collection models.Collection, id models.ID) (models.Record, error) {
	coll, err := r.collection(collection)
	if err != nil {
		return nil, err
	}
	key, err := encodeID(id)
	if err != nil {
		return nil, err
	}
	raw, err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("find %s by id: %w", collection, err)
	}
	rec, err := decodeDocument(collection, raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return rec, nil
}

// FindBy streams matching documents through a cursor.
func (r *MongoIdentityRepository) FindBy(ctx context.Context, collection models.Collection, filter models.Filter) iter.Seq2[models.Record, error] {
	coll, err := r.collection(collection)
	if err != nil {
		return yieldErr(err)
	}
	query, err := mongoFilter(collection, filter)
	if err != nil {
		return yieldErr(fmt.Errorf("find %s: %w", collection, err))
	}
	return func(yield func(models.Record, error) bool) {
		cursor, err := coll.Find(ctx, query)
		if err != nil {
			yield(nil, fmt.Errorf("find %s: %w", collection, err))
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			rec, err := decodeDocument(collection, cursor.Current)
			if err != nil {
				yield(nil, fmt.Errorf("decode %s: %w", collection, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate %s: %w", collection, err))
		}
	}
}

// Ping checks the primary is reachable.
func (r *MongoIdentityRepository) Ping(ctx context.Context) error {
	if err := r.db.Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}
