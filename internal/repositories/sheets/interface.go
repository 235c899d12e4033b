package sheets

import (
	"context"
	"time"

	"github.com/aryklein/sheetsync/internal/models"
)

// SortKey selects the ordering column for List.
type SortKey string

const (
	SortByName      SortKey = "name"
	SortByLevel     SortKey = "level"
	SortByUpdatedAt SortKey = "updated_at"
)

// ListFilter narrows and orders the result set of List.
// Zero values mean "no restriction".
type ListFilter struct {
	// Class matches the payload's class field exactly.
	Class string

	// MinLevel/MaxLevel bound the payload's level field (inclusive).
	MinLevel *int
	MaxLevel *int

	// NameContains is a case-insensitive substring match on the name.
	NameContains string

	SortBy   SortKey
	SortDesc bool

	// Limit/Offset paginate the result. Limit <= 0 disables pagination.
	Limit  int
	Offset int
}

// Repository describes CRUD and sync-support operations for character sheets.
// All operations are scoped by owner: a sheet owned by a different user
// behaves as not found, never as an authorization error.
type Repository interface {
	// Create inserts a new sheet with a fresh id and current timestamps.
	Create(ctx context.Context, ownerID string, input models.SheetInput) (*models.Sheet, error)

	// GetByID returns a live (non-tombstoned) sheet, or common.ErrNotFound.
	GetByID(ctx context.Context, id, ownerID string) (*models.Sheet, error)

	// List returns live sheets matching the filter plus the total match count
	// computed before pagination.
	List(ctx context.Context, ownerID string, filter ListFilter) ([]models.Sheet, int, error)

	// Update merges patch into the existing payload (nested objects key-by-key,
	// arrays and scalars replaced), refreshes denormalized columns, and bumps
	// updated_at. Returns common.ErrNotFound for missing or foreign sheets.
	Update(ctx context.Context, id, ownerID string, patch models.Payload) (*models.Sheet, error)

	// Delete tombstones a sheet and bumps updated_at so the deletion becomes a
	// push candidate. Returns common.ErrNotFound when nothing matched.
	Delete(ctx context.Context, id, ownerID string) error

	// GetByIDAny returns a sheet regardless of its tombstone flag.
	// Used by the sync engine when applying pulled records.
	GetByIDAny(ctx context.Context, id, ownerID string) (*models.Sheet, error)

	// ListUpdatedSince returns sheets (tombstones included) whose updated_at is
	// strictly greater than since — the push candidate set.
	ListUpdatedSince(ctx context.Context, ownerID string, since time.Time) ([]models.Sheet, error)

	// CountUpdatedSince counts the sheets ListUpdatedSince would return.
	CountUpdatedSince(ctx context.Context, ownerID string, since time.Time) (int, error)

	// Upsert writes a sheet verbatim, timestamps included. Used by the sync
	// engine to apply pulled remote records idempotently.
	Upsert(ctx context.Context, sheet *models.Sheet) error
}
