package syncmeta

import (
	"context"
	"time"

	"github.com/aryklein/sheetsync/internal/models"
)

// Repository persists per-table sync bookkeeping: the watermark of the last
// fully successful cycle and the status of the most recent attempt.
type Repository interface {
	// Watermark returns the last successful sync time for the table, or nil
	// when no cycle ever succeeded ("beginning of time").
	Watermark(ctx context.Context, tableName string) (*time.Time, error)

	// RecordSuccess advances the watermark and marks the table idle.
	RecordSuccess(ctx context.Context, tableName string, at time.Time) error

	// RecordFailure marks the table errored with a message. The watermark is
	// left untouched.
	RecordFailure(ctx context.Context, tableName string, message string) error

	// Get returns the full metadata row, or common.ErrNotFound when the table
	// has never been synced or recorded a failure.
	Get(ctx context.Context, tableName string) (*models.SyncMetadata, error)
}
