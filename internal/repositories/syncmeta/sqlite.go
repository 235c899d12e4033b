package syncmeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aryklein/sheetsync/internal/common"
	"github.com/aryklein/sheetsync/internal/dbx"
	"github.com/aryklein/sheetsync/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Watermark(ctx context.Context, tableName string) (*time.Time, error) {
	var n sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT last_sync_at FROM sync_metadata WHERE table_name = ?`, tableName).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watermark[%s]: %w", tableName, err)
	}
	if !n.Valid {
		return nil, nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t, nil
}

func (r *SQLiteRepository) RecordSuccess(ctx context.Context, tableName string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_metadata (table_name, last_sync_at, sync_status, sync_error)
		VALUES (?, ?, ?, '')
		ON CONFLICT(table_name) DO UPDATE SET last_sync_at = excluded.last_sync_at,
			sync_status = excluded.sync_status,
			sync_error = ''
	`, tableName, at.UnixNano(), string(models.SyncStateIdle))
	if err != nil {
		return fmt.Errorf("failed to record sync success[%s]: %w", tableName, err)
	}
	return nil
}

func (r *SQLiteRepository) RecordFailure(ctx context.Context, tableName string, message string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_metadata (table_name, last_sync_at, sync_status, sync_error)
		VALUES (?, NULL, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET sync_status = excluded.sync_status,
			sync_error = excluded.sync_error
	`, tableName, string(models.SyncStateError), message)
	if err != nil {
		return fmt.Errorf("failed to record sync failure[%s]: %w", tableName, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, tableName string) (*models.SyncMetadata, error) {
	var (
		m      models.SyncMetadata
		n      sql.NullInt64
		status string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT table_name, last_sync_at, sync_status, sync_error FROM sync_metadata WHERE table_name = ?`,
		tableName).Scan(&m.TableName, &n, &status, &m.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync metadata[%s]: %w", tableName, err)
	}
	if n.Valid {
		t := time.Unix(0, n.Int64).UTC()
		m.LastSyncAt = &t
	}
	m.Status = models.SyncState(status)
	return &m, nil
}
