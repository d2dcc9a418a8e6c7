package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key is missing from a scope.
var ErrNotFound = errors.New("store: key not found")

// KV is one storage scope: a flat string key/value namespace.
// Writes replace whole values; there is no read-modify-write isolation.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set replaces the value for key.
	Set(ctx context.Context, key, value string) error

	// SetMany replaces several keys in one atomic write.
	SetMany(ctx context.Context, values map[string]string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying connection.
	Close() error
}

// Keys of the device-local runtime record.
const (
	KeyOrgID        = "orgId"
	KeyUsage        = "usage"
	KeyLastFetch    = "lastFetch"
	KeyError        = "error"
	KeyLastNotified = "lastNotified"
	KeyInstalledAt  = "installedAt"
)

// KeySettings is the single key of the synced scope.
const KeySettings = "settings"
