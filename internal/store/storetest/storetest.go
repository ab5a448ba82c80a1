// Package storetest holds the behaviour every store driver must satisfy.
package storetest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/store"
)

// Factory builds a fresh, empty driver for one subtest.
type Factory func(t *testing.T) store.Driver

type counter struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Value int    `json:"value"`
	Read  bool   `json:"read"`
}

// Run executes the driver conformance suite.
func Run(t *testing.T, newDriver Factory) {
	t.Run("insert and get", func(t *testing.T) {
		d := newDriver(t)
		ctx := context.Background()

		require.NoError(t, d.Insert(ctx, "items", "a", []byte(`{"id":"a"}`)))
		doc, err := d.Get(ctx, "items", "a")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"a"}`, string(doc))

		err = d.Insert(ctx, "items", "a", []byte(`{"id":"a"}`))
		assert.ErrorIs(t, err, store.ErrConflict)

		_, err = d.Get(ctx, "items", "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = d.Get(ctx, "other", "a")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("modify creates updates and skips", func(t *testing.T) {
		d := newDriver(t)
		ctx := context.Background()

		doc, err := d.Modify(ctx, "items", "k", func(current []byte) ([]byte, error) {
			assert.Nil(t, current)
			return []byte(`{"value":1}`), nil
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"value":1}`, string(doc))

		doc, err = d.Modify(ctx, "items", "k", func(current []byte) ([]byte, error) {
			assert.JSONEq(t, `{"value":1}`, string(current))
			return nil, nil
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"value":1}`, string(doc))

		boom := errors.New("boom")
		_, err = d.Modify(ctx, "items", "k", func([]byte) ([]byte, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)

		stored, err := d.Get(ctx, "items", "k")
		require.NoError(t, err)
		assert.JSONEq(t, `{"value":1}`, string(stored))
	})

	t.Run("scan visits ids in order", func(t *testing.T) {
		d := newDriver(t)
		ctx := context.Background()
		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, d.Insert(ctx, "items", id, []byte(`{"id":"`+id+`"}`)))
		}
		var seen []string
		require.NoError(t, d.Scan(ctx, "items", func(id string, _ []byte) error {
			seen = append(seen, id)
			return nil
		}))
		assert.Equal(t, []string{"a", "b", "c"}, seen)

		require.NoError(t, d.Scan(ctx, "empty", func(string, []byte) error {
			t.Fatal("unexpected document")
			return nil
		}))
	})

	t.Run("concurrent modify is atomic", func(t *testing.T) {
		d := newDriver(t)
		col := store.NewCollection[counter](d, "counters")
		ctx := context.Background()

		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := col.Upsert(ctx, "shared", func(current *counter) (*counter, error) {
					if current == nil {
						return &counter{ID: "shared", Value: 1}, nil
					}
					current.Value++
					return current, nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := col.Get(ctx, "shared")
		require.NoError(t, err)
		assert.Equal(t, workers, got.Value)
	})

	t.Run("typed collection", func(t *testing.T) {
		d := newDriver(t)
		col := store.NewCollection[counter](d, "counters")
		ctx := context.Background()

		for i := 0; i < 4; i++ {
			id := strconv.Itoa(i)
			owner := "u1"
			if i%2 == 1 {
				owner = "u2"
			}
			require.NoError(t, col.Create(ctx, id, &counter{ID: id, Owner: owner, Value: i}))
		}

		_, err := col.Update(ctx, "missing", func(*counter) error { return nil })
		assert.ErrorIs(t, err, store.ErrNotFound)

		updated, err := col.Update(ctx, "2", func(c *counter) error {
			c.Value = 20
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 20, updated.Value)

		mine, err := col.Find(ctx, func(c *counter) bool { return c.Owner == "u1" })
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		one, err := col.FindOne(ctx, func(c *counter) bool { return c.Value == 20 })
		require.NoError(t, err)
		assert.Equal(t, "2", one.ID)
		_, err = col.FindOne(ctx, func(c *counter) bool { return c.Value == 99 })
		assert.ErrorIs(t, err, store.ErrNotFound)

		n, err := col.UpdateWhere(ctx, func(c *counter) bool { return c.Owner == "u2" }, func(c *counter) { c.Read = true })
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		read, err := col.Find(ctx, func(c *counter) bool { return c.Read })
		require.NoError(t, err)
		assert.Len(t, read, 2)
		for _, c := range read {
			assert.Equal(t, "u2", c.Owner)
		}

		all, err := col.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "0", all[0].ID)
	})
}
