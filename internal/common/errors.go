// Package common defines shared sentinel errors used across the sheetsync
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Remote/credential errors.
	ErrUnauthenticated = errors.New("unauthenticated")

	// Sync engine flow control.
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrOffline        = errors.New("device is offline")
	ErrNoAuthToken    = errors.New("no auth token set")
)
