package cache

import (
	"context"
	"time"
)

// Entry is a typed view of a Snapshot.
type Entry[T any] struct {
	Key       Key
	State     State
	Value     T
	HasValue  bool
	FetchedAt time.Time
	Err       error
}

// Typed converts a snapshot. A value of another type is reported as absent.
func Typed[T any](s Snapshot) Entry[T] {
	e := Entry[T]{
		Key:       s.Key,
		State:     s.State,
		FetchedAt: s.FetchedAt,
		Err:       s.Err,
	}
	if v, ok := s.Value.(T); ok && s.HasValue {
		e.Value = v
		e.HasValue = true
	}
	return e
}

func loader[T any](load func(ctx context.Context) (T, error)) Loader {
	return func(ctx context.Context) (any, error) {
		return load(ctx)
	}
}

// Get is the typed form of Store.Get.
func Get[T any](s *Store, key Key) Entry[T] {
	return Typed[T](s.Get(key))
}

// Fetch is the typed form of Store.Fetch.
func Fetch[T any](ctx context.Context, s *Store, key Key, load func(ctx context.Context) (T, error)) (Entry[T], error) {
	snap, err := s.Fetch(ctx, key, loader(load))
	return Typed[T](snap), err
}

// Refresh is the typed form of Store.Refresh.
func Refresh[T any](ctx context.Context, s *Store, key Key, load func(ctx context.Context) (T, error)) Entry[T] {
	return Typed[T](s.Refresh(ctx, key, loader(load)))
}
