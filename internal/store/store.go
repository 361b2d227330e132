// Package store persists the client's local storage entries.
package store

import "errors"

// Named entries of local storage. They are written and cleared together by
// the auth coordinator.
const (
	KeyToken = "jwtToken"
	KeyUser  = "user"
)

var ErrClosed = errors.New("store is closed")

// Store is durable key/value storage
type Store interface {
	// Get returns the value for key and whether it exists
	Get(key string) (string, bool, error)

	// Set writes several entries atomically
	Set(entries map[string]string) error

	// Delete removes keys atomically; missing keys are ignored
	Delete(keys ...string) error

	Close() error
}
