package models

import "time"

// SyncState describes the most recent sync attempt for a table.
type SyncState string

const (
	SyncStateIdle    SyncState = "idle"
	SyncStateSyncing SyncState = "syncing"
	SyncStateError   SyncState = "error"
)

// SyncMetadata is the per-table sync bookkeeping row.
type SyncMetadata struct {
	// TableName keys the row; at most one row exists per synchronized table.
	TableName string

	// LastSyncAt is the watermark: the start time of the last fully
	// successful reconciliation cycle. Nil means no cycle ever succeeded.
	LastSyncAt *time.Time

	// Status reflects only the most recent attempt.
	Status SyncState

	// Error holds the failure message when Status is SyncStateError.
	Error string
}

// SyncResult is returned by every Sync invocation. It is always a value,
// never an error, so callers can render sync outcomes without exception
// handling.
type SyncResult struct {
	Success      bool
	PushedCount  int
	PulledCount  int
	Conflicts    int
	ErrorMessage string
}

// SyncStatus is the host-facing status snapshot.
type SyncStatus struct {
	// LastSync is the current watermark, nil before the first success.
	LastSync *time.Time

	// PendingChanges counts local records the next cycle would push.
	PendingChanges int

	Status       SyncState
	ErrorMessage string
}
