package adapters

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/FingerLiu/django-supertube/internal/tube"
)

// MongoTarget writes transformed records into a MongoDB database, one
// collection per target entity. It implements tube.TargetStore. Mongo has no
// introspectable schema, so callers declare the target descriptor in the
// plan instead.
type MongoTarget struct {
	Client   *mongo.Client
	Database string
}

func (t *MongoTarget) Open(ctx context.Context, target tube.Descriptor) (tube.TargetWriter, error) {
	return &mongoWriter{
		coll: t.Client.Database(t.Database).Collection(target.Entity),
	}, nil
}

type mongoWriter struct {
	coll *mongo.Collection
}

func (w *mongoWriter) Insert(ctx context.Context, values map[string]any) error {
	if _, err := w.coll.InsertOne(ctx, bson.M(values)); err != nil {
		return classifyMongoError(err)
	}
	return nil
}

func (w *mongoWriter) Upsert(ctx context.Context, keyField string, values map[string]any) (bool, error) {
	keyVal, ok := values[keyField]
	if !ok {
		return false, &tube.StoreFault{
			Recoverable: true,
			Err:         fmt.Errorf("identity field %q missing from transformed values", keyField),
		}
	}

	res, err := w.coll.UpdateOne(ctx,
		bson.M{keyField: keyVal},
		bson.M{"$set": bson.M(values)},
		options.Update().SetUpsert(true))
	if err != nil {
		return false, classifyMongoError(err)
	}
	return res.UpsertedCount > 0, nil
}

// Close is a no-op; the client connection pool outlives the run and is
// closed by the caller that opened it.
func (w *mongoWriter) Close() error { return nil }

// classifyMongoError treats write-level errors (duplicate keys, document
// validation) as recoverable and everything else, notably connectivity
// loss, as fatal.
func classifyMongoError(err error) error {
	var we mongo.WriteException
	if mongo.IsDuplicateKeyError(err) || errors.As(err, &we) {
		return &tube.StoreFault{Recoverable: true, Err: err}
	}
	return &tube.StoreFault{Err: err}
}
