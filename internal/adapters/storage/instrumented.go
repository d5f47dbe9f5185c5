package storage

import (
	"context"
	"time"
)

// Observer receives the outcome of each store operation.
type Observer func(op string, elapsed time.Duration, err error)

// Instrument wraps s so every operation is reported to observe.
// Subscribe is reported when the subscription is opened, not per delivery.
func Instrument(s Store, observe Observer) Store {
	if observe == nil {
		return s
	}
	return &instrumented{next: s, observe: observe}
}

type instrumented struct {
	next    Store
	observe Observer
}

func (i *instrumented) Read(ctx context.Context, path string) (Value, error) {
	start := time.Now()
	v, err := i.next.Read(ctx, path)
	i.observe("read", time.Since(start), err)
	return v, err
}

func (i *instrumented) Write(ctx context.Context, path string, value any) error {
	start := time.Now()
	err := i.next.Write(ctx, path, value)
	i.observe("write", time.Since(start), err)
	return err
}

func (i *instrumented) Update(ctx context.Context, path string, fields map[string]any) error {
	start := time.Now()
	err := i.next.Update(ctx, path, fields)
	i.observe("update", time.Since(start), err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, path string) error {
	start := time.Now()
	err := i.next.Delete(ctx, path)
	i.observe("delete", time.Since(start), err)
	return err
}

func (i *instrumented) Subscribe(ctx context.Context, path string, fn Listener) (Subscription, error) {
	start := time.Now()
	sub, err := i.next.Subscribe(ctx, path, fn)
	i.observe("subscribe", time.Since(start), err)
	return sub, err
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
