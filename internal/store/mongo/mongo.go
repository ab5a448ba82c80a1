// Package mongostore keeps each collection in a MongoDB collection. Documents
// are stored as {_id, rev, doc}; rev drives compare-and-swap updates.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/lms-api/internal/store"
)

const maxAttempts = 16

var errContention = errors.New("mongo store: too much write contention")

type record struct {
	ID  string   `bson:"_id"`
	Rev int64    `bson:"rev"`
	Doc bson.Raw `bson:"doc"`
}

// Driver is a store.Driver backed by MongoDB.
type Driver struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Driver = (*Driver)(nil)

// New wraps a connected client and database. client may be nil when the
// caller owns its lifecycle.
func New(client *mongo.Client, db *mongo.Database) *Driver {
	return &Driver{client: client, db: db}
}

func (d *Driver) Get(ctx context.Context, collection, id string) ([]byte, error) {
	rec, err := d.load(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, store.ErrNotFound
	}
	return fromBSON(rec.Doc)
}

func (d *Driver) Insert(ctx context.Context, collection, id string, doc []byte) error {
	body, err := toBSON(doc)
	if err != nil {
		return err
	}
	_, err = d.db.Collection(collection).InsertOne(ctx, bson.D{
		{Key: "_id", Value: id},
		{Key: "rev", Value: int64(1)},
		{Key: "doc", Value: body},
	})
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return nil
}

func (d *Driver) Modify(ctx context.Context, collection, id string, fn store.ModifyFunc) ([]byte, error) {
	coll := d.db.Collection(collection)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		rec, err := d.load(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		var current []byte
		if rec != nil {
			if current, err = fromBSON(rec.Doc); err != nil {
				return nil, err
			}
		}
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return current, nil
		}
		body, err := toBSON(next)
		if err != nil {
			return nil, err
		}

		if rec == nil {
			_, err = coll.InsertOne(ctx, bson.D{
				{Key: "_id", Value: id},
				{Key: "rev", Value: int64(1)},
				{Key: "doc", Value: body},
			})
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("insert %s/%s: %w", collection, id, err)
			}
			return next, nil
		}

		res, err := coll.UpdateOne(ctx, casFilter(id, rec.Rev), casUpdate(body, rec.Rev))
		if err != nil {
			return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
	}
	return nil, errContention
}

// ModifyAll sends every rewritten document in one unordered bulk write.
// Documents changed concurrently since the read are left as they are.
func (d *Driver) ModifyAll(ctx context.Context, collection string, fn store.ModifyFunc) (int, error) {
	coll := d.db.Collection(collection)
	cursor, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cursor.Close(ctx) //nolint:errcheck

	var writes []mongo.WriteModel
	for cursor.Next(ctx) {
		var rec record
		if err := cursor.Decode(&rec); err != nil {
			return 0, fmt.Errorf("decode %s: %w", collection, err)
		}
		current, err := fromBSON(rec.Doc)
		if err != nil {
			return 0, err
		}
		next, err := fn(current)
		if err != nil {
			return 0, err
		}
		if next == nil {
			continue
		}
		body, err := toBSON(next)
		if err != nil {
			return 0, err
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(casFilter(rec.ID, rec.Rev)).
			SetUpdate(casUpdate(body, rec.Rev)))
	}
	if err := cursor.Err(); err != nil {
		return 0, fmt.Errorf("iterate %s: %w", collection, err)
	}
	if len(writes) == 0 {
		return 0, nil
	}
	res, err := coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("bulk update %s: %w", collection, err)
	}
	return int(res.ModifiedCount), nil
}

func (d *Driver) Scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := d.db.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return fmt.Errorf("find %s: %w", collection, err)
	}
	defer cursor.Close(ctx) //nolint:errcheck

	for cursor.Next(ctx) {
		var rec record
		if err := cursor.Decode(&rec); err != nil {
			return fmt.Errorf("decode %s: %w", collection, err)
		}
		doc, err := fromBSON(rec.Doc)
		if err != nil {
			return err
		}
		if err := fn(rec.ID, doc); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (d *Driver) Close(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	return d.client.Disconnect(ctx)
}

func (d *Driver) load(ctx context.Context, collection, id string) (*record, error) {
	var rec record
	err := d.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", collection, id, err)
	}
	return &rec, nil
}

func casFilter(id string, rev int64) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "rev", Value: rev}}
}

func casUpdate(body bson.D, rev int64) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "doc", Value: body},
		{Key: "rev", Value: rev + 1},
	}}}
}

// toBSON converts a JSON document into an ordered BSON document so fields stay
// queryable from the mongo shell.
func toBSON(doc []byte) (bson.D, error) {
	var out bson.D
	if err := bson.UnmarshalExtJSON(doc, false, &out); err != nil {
		return nil, fmt.Errorf("convert json to bson: %w", err)
	}
	return out, nil
}

func fromBSON(raw bson.Raw) ([]byte, error) {
	out, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("convert bson to json: %w", err)
	}
	return out, nil
}
