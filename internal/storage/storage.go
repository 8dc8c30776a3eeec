package storage

import "context"

// ObjectStore is the slice of object storage the pipeline needs: confirming an
// upload landed and purging uploads of discarded jobs.
type ObjectStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	Remove(ctx context.Context, path string) error
}

// NoopStore is used when object storage is disabled. Every object is assumed present.
type NoopStore struct{}

func (NoopStore) Exists(context.Context, string) (bool, error) {
	return true, nil
}

func (NoopStore) Remove(context.Context, string) error {
	return nil
}
