package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection is a typed view over one driver collection.
type Collection[T any] struct {
	driver Driver
	name   string
}

// NewCollection binds a typed collection to a driver.
func NewCollection[T any](driver Driver, name string) *Collection[T] {
	return &Collection[T]{driver: driver, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Create inserts v under id. ErrConflict is returned when id is taken.
func (c *Collection[T]) Create(ctx context.Context, id string, v *T) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	return c.driver.Insert(ctx, c.name, id, doc)
}

// Get loads the document stored under id.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := c.driver.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}
	return c.decode(doc)
}

// Update applies fn to an existing document. ErrNotFound when absent.
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	doc, err := c.driver.Modify(ctx, c.name, id, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, ErrNotFound
		}
		v, err := c.decode(current)
		if err != nil {
			return nil, err
		}
		if err := fn(v); err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return nil, err
	}
	return c.decode(doc)
}

// Upsert atomically inserts or updates the document under id. fn receives nil
// when the document does not exist yet and returns the value to store.
func (c *Collection[T]) Upsert(ctx context.Context, id string, fn func(current *T) (*T, error)) (*T, error) {
	doc, err := c.driver.Modify(ctx, c.name, id, func(current []byte) ([]byte, error) {
		var existing *T
		if current != nil {
			v, err := c.decode(current)
			if err != nil {
				return nil, err
			}
			existing = v
		}
		next, err := fn(existing)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		return json.Marshal(next)
	})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return c.decode(doc)
}

// Find returns every document matching pred. A nil pred matches all.
func (c *Collection[T]) Find(ctx context.Context, pred func(*T) bool) ([]T, error) {
	result := make([]T, 0)
	err := c.driver.Scan(ctx, c.name, func(_ string, doc []byte) error {
		v, err := c.decode(doc)
		if err != nil {
			return err
		}
		if pred == nil || pred(v) {
			result = append(result, *v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// All returns every document in id order.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	return c.Find(ctx, nil)
}

// FindOne returns the first document matching pred or ErrNotFound.
func (c *Collection[T]) FindOne(ctx context.Context, pred func(*T) bool) (*T, error) {
	var found *T
	errFound := errors.New("found")
	err := c.driver.Scan(ctx, c.name, func(_ string, doc []byte) error {
		v, err := c.decode(doc)
		if err != nil {
			return err
		}
		if pred(v) {
			found = v
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// UpdateWhere rewrites every document matching pred in a single batch.
func (c *Collection[T]) UpdateWhere(ctx context.Context, pred func(*T) bool, fn func(*T)) (int, error) {
	return c.driver.ModifyAll(ctx, c.name, func(current []byte) ([]byte, error) {
		v, err := c.decode(current)
		if err != nil {
			return nil, err
		}
		if !pred(v) {
			return nil, nil
		}
		fn(v)
		return json.Marshal(v)
	})
}

func (c *Collection[T]) decode(doc []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return &v, nil
}
