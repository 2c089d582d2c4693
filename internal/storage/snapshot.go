// Package storage defines the blob interfaces used to archive raw rendered
// pages for extraction debugging.
package storage

import "context"

// SnapshotStore writes raw artifacts and returns a URI. Snapshot archival is
// best-effort debugging aid; callers log failures and continue.
type SnapshotStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// NoOpSnapshotStore discards snapshots. Used when archival is disabled.
type NoOpSnapshotStore struct{}

// PutObject discards the data and returns an empty URI.
func (NoOpSnapshotStore) PutObject(context.Context, string, string, []byte) (string, error) {
	return "", nil
}
