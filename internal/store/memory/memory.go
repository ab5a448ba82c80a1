// Package memory implements an in-process store driver. It is the default
// backend for development and the backend used by service tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/noah-isme/lms-api/internal/store"
)

// Driver keeps documents in maps guarded by a single RWMutex.
type Driver struct {
	mu     sync.RWMutex
	tables map[string]map[string][]byte
}

var _ store.Driver = (*Driver)(nil)

// New returns an empty in-memory driver.
func New() *Driver {
	return &Driver{tables: make(map[string]map[string][]byte)}
}

func (d *Driver) Get(ctx context.Context, collection, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc, ok := d.tables[collection][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(doc), nil
}

func (d *Driver) Insert(ctx context.Context, collection, id string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	table := d.table(collection)
	if _, exists := table[id]; exists {
		return store.ErrConflict
	}
	table[id] = clone(doc)
	return nil
}

func (d *Driver) Modify(ctx context.Context, collection, id string, fn store.ModifyFunc) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	table := d.table(collection)
	current, exists := table[id]
	var in []byte
	if exists {
		in = clone(current)
	}
	next, err := fn(in)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return in, nil
	}
	table[id] = clone(next)
	return clone(next), nil
}

func (d *Driver) ModifyAll(ctx context.Context, collection string, fn store.ModifyFunc) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	table := d.table(collection)
	staged := make(map[string][]byte)
	for id, doc := range table {
		next, err := fn(clone(doc))
		if err != nil {
			return 0, err
		}
		if next != nil {
			staged[id] = clone(next)
		}
	}
	for id, doc := range staged {
		table[id] = doc
	}
	return len(staged), nil
}

// Scan copies the collection under the read lock and visits it afterwards,
// so fn may call back into the driver.
func (d *Driver) Scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	table := d.tables[collection]
	ids := make([]string, 0, len(table))
	docs := make(map[string][]byte, len(table))
	for id, doc := range table {
		ids = append(ids, id)
		docs[id] = clone(doc)
	}
	d.mu.RUnlock()

	sort.Strings(ids)
	for _, id := range ids {
		if err := fn(id, docs[id]); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) Close(context.Context) error {
	return nil
}

func (d *Driver) table(collection string) map[string][]byte {
	table, ok := d.tables[collection]
	if !ok {
		table = make(map[string][]byte)
		d.tables[collection] = table
	}
	return table
}

func clone(doc []byte) []byte {
	if doc == nil {
		return nil
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out
}
