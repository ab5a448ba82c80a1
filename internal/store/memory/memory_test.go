package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/store"
	"github.com/noah-isme/lms-api/internal/store/storetest"
)

func TestDriverConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Driver { return New() })
}

func TestDriverReturnsCopies(t *testing.T) {
	d := New()
	ctx := context.Background()
	doc := []byte(`{"a":1}`)
	require.NoError(t, d.Insert(ctx, "c", "1", doc))
	doc[2] = 'b'

	got, err := d.Get(ctx, "c", "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	got[2] = 'z'
	again, err := d.Get(ctx, "c", "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(again))
}

func TestDriverHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Get(ctx, "c", "1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInstrumentReportsOperations(t *testing.T) {
	type call struct {
		op, collection string
		err            error
	}
	var calls []call
	d := store.Instrument(New(), func(op, collection string, _ time.Duration, err error) {
		calls = append(calls, call{op, collection, err})
	})
	ctx := context.Background()

	require.NoError(t, d.Insert(ctx, "users", "1", []byte(`{}`)))
	_, err := d.Get(ctx, "users", "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, d.Scan(ctx, "users", func(string, []byte) error { return nil }))

	require.Len(t, calls, 3)
	assert.Equal(t, call{"insert", "users", nil}, calls[0])
	assert.Equal(t, "get", calls[1].op)
	assert.ErrorIs(t, calls[1].err, store.ErrNotFound)
	assert.Equal(t, "scan", calls[2].op)

	plain := New()
	assert.Equal(t, store.Driver(plain), store.Instrument(plain, nil))
}
