// Package bolt persists documents in a local bbolt file, one bucket per
// collection. Every mutation runs inside a single read-write transaction.
package bolt

import (
	"context"

	"go.etcd.io/bbolt"

	"github.com/noah-isme/lms-api/internal/store"
)

// Driver is a store.Driver backed by bbolt.
type Driver struct {
	db *bbolt.DB
}

var _ store.Driver = (*Driver)(nil)

// New wraps an opened bbolt database.
func New(db *bbolt.DB) *Driver {
	return &Driver{db: db}
}

func (d *Driver) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return store.ErrNotFound
		}
		v := b.Get([]byte(id))
		if v == nil {
			return store.ErrNotFound
		}
		out = clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Driver) Insert(ctx context.Context, collection, id string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		if b.Get([]byte(id)) != nil {
			return store.ErrConflict
		}
		return b.Put([]byte(id), doc)
	})
}

func (d *Driver) Modify(ctx context.Context, collection, id string, fn store.ModifyFunc) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := d.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		current := clone(b.Get([]byte(id)))
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			out = current
			return nil
		}
		out = clone(next)
		return b.Put([]byte(id), next)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Driver) ModifyAll(ctx context.Context, collection string, fn store.ModifyFunc) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	changed := 0
	err := d.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		staged := make(map[string][]byte)
		if err := b.ForEach(func(k, v []byte) error {
			next, err := fn(clone(v))
			if err != nil {
				return err
			}
			if next != nil {
				staged[string(k)] = next
			}
			return nil
		}); err != nil {
			return err
		}
		for id, doc := range staged {
			if err := b.Put([]byte(id), doc); err != nil {
				return err
			}
		}
		changed = len(staged)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// Scan reads the bucket in one transaction and visits the copies after it
// closes, so fn may write through the driver.
func (d *Driver) Scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	type entry struct {
		id  string
		doc []byte
	}
	var entries []entry
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			entries = append(entries, entry{id: string(k), doc: clone(v)})
			return nil
		})
	})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := fn(e.id, e.doc); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) Close(context.Context) error {
	return d.db.Close()
}

// bbolt values are only valid for the life of the transaction.
func clone(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
