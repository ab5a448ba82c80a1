package store

import (
	"context"
	"time"
)

// Observer receives the outcome of every driver call.
type Observer func(operation, collection string, duration time.Duration, err error)

type instrumented struct {
	next    Driver
	observe Observer
}

// Instrument wraps d so each call is reported to observe.
func Instrument(d Driver, observe Observer) Driver {
	if observe == nil {
		return d
	}
	return &instrumented{next: d, observe: observe}
}

func (i *instrumented) Get(ctx context.Context, collection, id string) ([]byte, error) {
	start := time.Now()
	doc, err := i.next.Get(ctx, collection, id)
	i.observe("get", collection, time.Since(start), err)
	return doc, err
}

func (i *instrumented) Insert(ctx context.Context, collection, id string, doc []byte) error {
	start := time.Now()
	err := i.next.Insert(ctx, collection, id, doc)
	i.observe("insert", collection, time.Since(start), err)
	return err
}

func (i *instrumented) Modify(ctx context.Context, collection, id string, fn ModifyFunc) ([]byte, error) {
	start := time.Now()
	doc, err := i.next.Modify(ctx, collection, id, fn)
	i.observe("modify", collection, time.Since(start), err)
	return doc, err
}

func (i *instrumented) ModifyAll(ctx context.Context, collection string, fn ModifyFunc) (int, error) {
	start := time.Now()
	n, err := i.next.ModifyAll(ctx, collection, fn)
	i.observe("modify_all", collection, time.Since(start), err)
	return n, err
}

func (i *instrumented) Scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error {
	start := time.Now()
	err := i.next.Scan(ctx, collection, fn)
	i.observe("scan", collection, time.Since(start), err)
	return err
}

func (i *instrumented) Close(ctx context.Context) error {
	return i.next.Close(ctx)
}
